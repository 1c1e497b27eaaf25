// Package feed presents entity state to a presentation layer as
// {data, loading, error} plus intent functions, keeping a per-session
// cache consistent with the store: optimistic mutation with rollback on
// failure, reconciliation with server-assigned fields on success, and
// realtime-driven background refetch.
//
// The cache is an explicit object owned by each feed, guarded by a mutex;
// realtime invalidation arrives over the store bus channel, and every
// fetch is generation-tagged so a slow stale response can never overwrite
// a fresher one. The reconciliation policy is refetch-wins.
package feed

import (
	"context"
	"time"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/store"
)

// ClientStore is the slice of the entity store the client feed consumes.
type ClientStore interface {
	ListClients(ctx context.Context, userID uint) ([]models.Client, error)
	CreateClient(ctx context.Context, userID uint, c models.Client) (models.Client, error)
	UpdateClient(ctx context.Context, userID, id uint, patch store.ClientPatch) (models.Client, error)
	DeleteClient(ctx context.Context, userID, id uint) error
	Subscribe(table string, userID uint) *store.Subscription
}

// InvoiceStore is the slice of the entity store the invoice feed consumes.
type InvoiceStore interface {
	ListInvoicesPage(ctx context.Context, userID uint, page, pageSize int) ([]models.Invoice, int64, error)
	GetInvoice(ctx context.Context, userID, id uint) (models.Invoice, error)
	CreateInvoice(ctx context.Context, userID uint, draft store.InvoiceDraft) (models.Invoice, error)
	UpdateInvoice(ctx context.Context, userID, id uint, patch store.InvoicePatch) (models.Invoice, error)
	MarkInvoicePaid(ctx context.Context, userID, id uint) (models.Invoice, error)
	DeleteInvoice(ctx context.Context, userID, id uint) error
	InvoiceCountThisMonth(ctx context.Context, userID uint, now time.Time) (int64, error)
	Subscribe(table string, userID uint) *store.Subscription
}

// SettingsStore is the slice of the entity store the settings feed consumes.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID uint) (models.Settings, error)
	UpdateSettings(ctx context.Context, userID uint, patch store.SettingsPatch) (models.Settings, error)
	Subscribe(table string, userID uint) *store.Subscription
}

func cloneClients(in []models.Client) []models.Client {
	out := make([]models.Client, len(in))
	copy(out, in)
	return out
}

func cloneInvoices(in []models.Invoice) []models.Invoice {
	out := make([]models.Invoice, len(in))
	copy(out, in)
	for i := range out {
		items := make([]models.InvoiceLineItem, len(in[i].Items))
		copy(items, in[i].Items)
		out[i].Items = items
	}
	return out
}
