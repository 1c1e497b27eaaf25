package store

import "sync"

// Op is the kind of change that happened.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event signals that rows changed in a table owned by a user. It carries
// no row payload: subscribers must refetch to learn the new state.
type Event struct {
	Table string `json:"table"`
	Op    Op     `json:"op"`
}

// Subscription is a registered listener. Close releases it; C is closed
// afterwards.
type Subscription struct {
	C <-chan Event

	bus *Bus
	id  int
}

func (s *Subscription) Close() {
	if s.bus != nil {
		s.bus.remove(s.id)
		s.bus = nil
	}
}

type subscriber struct {
	table  string
	userID uint
	ch     chan Event
}

// Bus fans change events out to per-table, per-user subscribers. Publish
// never blocks: a subscriber whose buffer is full simply misses the event,
// which is fine because an already-queued event forces the same refetch.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

func (b *Bus) Subscribe(table string, userID uint) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscriber{table: table, userID: userID, ch: make(chan Event, 8)}
	b.subs[b.nextID] = sub
	return &Subscription{C: sub.ch, bus: b, id: b.nextID}
}

func (b *Bus) Publish(table string, userID uint, op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.table != table || sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- Event{Table: table, Op: op}:
		default:
		}
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}
