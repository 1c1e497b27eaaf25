package feed

import (
	"context"
	"sync"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/store"
	"github.com/invoicify/invoicify/internal/tier"

	"github.com/sirupsen/logrus"
)

// ClientFeed keeps the user's client list synchronized with the store.
type ClientFeed struct {
	store  ClientStore
	gate   *tier.Gate
	userID uint
	tier   models.SubscriptionTier
	log    logrus.FieldLogger

	mu      sync.Mutex
	clients []models.Client
	loading bool
	err     error
	gen     uint64
	sub     *store.Subscription
}

func NewClientFeed(s ClientStore, gate *tier.Gate, userID uint, t models.SubscriptionTier, log logrus.FieldLogger) *ClientFeed {
	return &ClientFeed{store: s, gate: gate, userID: userID, tier: t, log: log}
}

// Load performs the initial fetch. While pending the feed reports loading;
// on failure the error is surfaced and any previous cache is left intact.
func (f *ClientFeed) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loading = true
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	clients, err := f.store.ListClients(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if err != nil {
		f.err = err
		return err
	}
	f.err = nil
	if gen == f.gen {
		f.clients = clients
	}
	return nil
}

// Start subscribes to realtime change events; each event triggers a
// background refetch with no loading indicator. Close to stop.
func (f *ClientFeed) Start(ctx context.Context) {
	f.sub = f.store.Subscribe(store.TableClients, f.userID)
	go func() {
		for {
			select {
			case _, ok := <-f.sub.C:
				if !ok {
					return
				}
				f.refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (f *ClientFeed) Close() {
	if f.sub != nil {
		f.sub.Close()
	}
}

// refresh replaces the cache with fresh server state unless a newer fetch
// or a local mutation superseded this response.
func (f *ClientFeed) refresh(ctx context.Context) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	clients, err := f.store.ListClients(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		// background refresh failures are logged, never surfaced
		f.log.WithError(err).Warn("client refresh failed")
		return
	}
	if gen != f.gen {
		return
	}
	f.clients = clients
}

// Snapshot returns a copy of the cached clients plus loading/error state.
func (f *ClientFeed) Snapshot() ([]models.Client, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneClients(f.clients), f.loading, f.err
}

// CanAdd applies the tier gate against the cached client count.
func (f *ClientFeed) CanAdd() error {
	f.mu.Lock()
	count := int64(len(f.clients))
	f.mu.Unlock()
	return f.gate.CanCreateClient(f.tier, count)
}

// Add creates a client optimistically: the entry appears in the cache
// before the store acknowledges, is reconciled with the server-assigned
// row on success, and is rolled back on failure. The tier gate runs first,
// so a rejected create never touches cache or store.
func (f *ClientFeed) Add(ctx context.Context, c models.Client) (models.Client, error) {
	if err := f.CanAdd(); err != nil {
		return models.Client{}, err
	}

	f.mu.Lock()
	prev := cloneClients(f.clients)
	optimistic := c
	optimistic.ID = 0 // placeholder until the server assigns one
	optimistic.UserID = f.userID
	f.clients = append([]models.Client{optimistic}, f.clients...)
	f.gen++
	f.mu.Unlock()

	created, err := f.store.CreateClient(ctx, f.userID, c)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if err != nil {
		f.clients = prev
		return models.Client{}, err
	}
	for i := range f.clients {
		if f.clients[i].ID == 0 {
			f.clients[i] = created
			break
		}
	}
	return created, nil
}

// Update patches a client optimistically with rollback on failure.
func (f *ClientFeed) Update(ctx context.Context, id uint, patch store.ClientPatch) (models.Client, error) {
	f.mu.Lock()
	prev := cloneClients(f.clients)
	for i := range f.clients {
		if f.clients[i].ID == id {
			applyClientPatch(&f.clients[i], patch)
			break
		}
	}
	f.gen++
	f.mu.Unlock()

	updated, err := f.store.UpdateClient(ctx, f.userID, id, patch)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if err != nil {
		f.clients = prev
		return models.Client{}, err
	}
	for i := range f.clients {
		if f.clients[i].ID == id {
			f.clients[i] = updated
			break
		}
	}
	return updated, nil
}

// Delete removes a client optimistically with rollback on failure. The
// store cascades the deletion to the client's invoices.
func (f *ClientFeed) Delete(ctx context.Context, id uint) error {
	f.mu.Lock()
	prev := cloneClients(f.clients)
	kept := f.clients[:0:0]
	for _, c := range f.clients {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	f.clients = kept
	f.gen++
	f.mu.Unlock()

	err := f.store.DeleteClient(ctx, f.userID, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if err != nil {
		f.clients = prev
	}
	return err
}

// applyClientPatch mirrors the store's merge rules for the optimistic copy.
func applyClientPatch(c *models.Client, p store.ClientPatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.VATNumber != nil {
		c.VATNumber = *p.VATNumber
	}
}
