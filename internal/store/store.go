// Package store is the persistence boundary: table-oriented CRUD over
// clients, invoices (joined with their line items), and settings, with
// every operation scoped to the owning user, plus a change-notification
// bus for realtime cache invalidation.
package store

import (
	"errors"

	"gorm.io/gorm"
)

// Table names used for change notification.
const (
	TableClients  = "clients"
	TableInvoices = "invoices"
	TableSettings = "settings"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotAuthenticated is returned when no caller identity is supplied.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the caller acts on a row it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when a store-side invariant is violated.
	ErrInvalid = errors.New("invalid")
)

// Store exposes the entity operations. All methods take the authenticated
// user id explicitly; a zero id fails with ErrNotAuthenticated before any
// query runs.
type Store struct {
	db  *gorm.DB
	bus *Bus
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, bus: NewBus()}
}

// Bus returns the change-notification bus; mutations publish to it after
// they commit.
func (s *Store) Bus() *Bus { return s.bus }

// Subscribe registers for change events on one table scoped to one user.
func (s *Store) Subscribe(table string, userID uint) *Subscription {
	return s.bus.Subscribe(table, userID)
}

func (s *Store) authed(userID uint) error {
	if userID == 0 {
		return ErrNotAuthenticated
	}
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
