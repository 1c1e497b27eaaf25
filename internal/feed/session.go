package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/store"
	"github.com/invoicify/invoicify/internal/tier"

	"github.com/sirupsen/logrus"
)

// View is the transient, session-only navigation state: a tagged union
// selecting which screen and which entity id is active. Never persisted.
type View interface{ isView() }

type DashboardView struct{}
type ClientsView struct{}
type ClientDetailView struct{ ID uint }
type InvoicesView struct{}

// InvoiceFormView with ID 0 is the new-invoice form; otherwise edit.
type InvoiceFormView struct{ ID uint }
type InvoiceDetailView struct{ ID uint }
type SettingsView struct{}

// NotFoundView is the fallback when a detail view targets an entity that
// no longer exists; From records where the navigation pointed.
type NotFoundView struct{ From View }

func (DashboardView) isView()     {}
func (ClientsView) isView()       {}
func (ClientDetailView) isView()  {}
func (InvoicesView) isView()      {}
func (InvoiceFormView) isView()   {}
func (InvoiceDetailView) isView() {}
func (SettingsView) isView()      {}
func (NotFoundView) isView()      {}

// Session bundles the three feeds for one authenticated user plus the
// active view.
type Session struct {
	Clients  *ClientFeed
	Invoices *InvoiceFeed
	Settings *SettingsFeed

	store *store.Store

	mu   sync.Mutex
	view View
}

func NewSession(s *store.Store, gate *tier.Gate, userID uint, t models.SubscriptionTier, log logrus.FieldLogger) *Session {
	return &Session{
		Clients:  NewClientFeed(s, gate, userID, t, log),
		Invoices: NewInvoiceFeed(s, gate, userID, t, log),
		Settings: NewSettingsFeed(s, userID, log),
		store:    s,
		view:     DashboardView{},
	}
}

// Start loads all feeds and begins realtime watching. Initial-load
// failures are surfaced; the caller decides whether to proceed degraded.
func (s *Session) Start(ctx context.Context) error {
	var firstErr error
	for _, load := range []func(context.Context) error{s.Clients.Load, s.Invoices.Load, s.Settings.Load} {
		if err := load(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.Clients.Start(ctx)
	s.Invoices.Start(ctx)
	s.Settings.Start(ctx)
	return firstErr
}

func (s *Session) Close() {
	s.Clients.Close()
	s.Invoices.Close()
	s.Settings.Close()
}

// View returns the active view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Navigate switches the active view. Detail views targeting an entity that
// no longer exists resolve to NotFoundView, giving the presentation layer
// a path back to the list.
func (s *Session) Navigate(ctx context.Context, v View) View {
	resolved := v
	switch target := v.(type) {
	case ClientDetailView:
		if _, err := s.store.GetClient(ctx, s.Clients.userID, target.ID); isGone(err) {
			resolved = NotFoundView{From: v}
		}
	case InvoiceDetailView:
		if _, err := s.store.GetInvoice(ctx, s.Invoices.userID, target.ID); isGone(err) {
			resolved = NotFoundView{From: v}
		}
	case InvoiceFormView:
		if target.ID != 0 {
			if _, err := s.store.GetInvoice(ctx, s.Invoices.userID, target.ID); isGone(err) {
				resolved = NotFoundView{From: v}
			}
		}
	}
	s.mu.Lock()
	s.view = resolved
	s.mu.Unlock()
	return resolved
}

func isGone(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrForbidden)
}
