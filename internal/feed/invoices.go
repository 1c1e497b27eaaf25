package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/store"
	"github.com/invoicify/invoicify/internal/tier"
	"github.com/invoicify/invoicify/validation"

	"github.com/sirupsen/logrus"
)

// DefaultPageSize is the invoice list window size.
const DefaultPageSize = 20

// ValidationError carries pre-submit violations; these are resolved
// locally and never reach the store.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Violations)
}

// InvoiceSnapshot is the state handed to the presentation layer.
type InvoiceSnapshot struct {
	Invoices   []models.Invoice
	Loading    bool
	Err        error
	Page       int
	PageSize   int
	TotalCount int64
	TotalPages int
}

// InvoiceFeed keeps one page of the user's invoices synchronized with the
// store and owns the pagination state.
type InvoiceFeed struct {
	store  InvoiceStore
	gate   *tier.Gate
	userID uint
	tier   models.SubscriptionTier
	log    logrus.FieldLogger
	now    func() time.Time

	mu       sync.Mutex
	invoices []models.Invoice
	total    int64
	page     int
	pageSize int
	loading  bool
	err      error
	gen      uint64
	sub      *store.Subscription
}

func NewInvoiceFeed(s InvoiceStore, gate *tier.Gate, userID uint, t models.SubscriptionTier, log logrus.FieldLogger) *InvoiceFeed {
	return &InvoiceFeed{
		store:    s,
		gate:     gate,
		userID:   userID,
		tier:     t,
		log:      log,
		now:      time.Now,
		page:     1,
		pageSize: DefaultPageSize,
	}
}

// Load performs the initial fetch of the current page. On failure the
// error is surfaced and any previous cache is left intact.
func (f *InvoiceFeed) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loading = true
	page := f.page
	f.mu.Unlock()

	err := f.fetchPage(ctx, page)

	f.mu.Lock()
	f.loading = false
	f.err = err
	f.mu.Unlock()
	return err
}

// Start subscribes to realtime change events; each event refetches the
// current page in the background, no loading indicator. Close to stop.
func (f *InvoiceFeed) Start(ctx context.Context) {
	f.sub = f.store.Subscribe(store.TableInvoices, f.userID)
	go func() {
		for {
			select {
			case _, ok := <-f.sub.C:
				if !ok {
					return
				}
				f.mu.Lock()
				page := f.page
				f.mu.Unlock()
				if err := f.fetchPage(ctx, page); err != nil {
					// background refresh failures are logged, never surfaced
					f.log.WithError(err).Warn("invoice refresh failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (f *InvoiceFeed) Close() {
	if f.sub != nil {
		f.sub.Close()
	}
}

// fetchPage fetches one page and installs the result unless a newer fetch
// or local mutation superseded it (generation tag staleness guard).
func (f *InvoiceFeed) fetchPage(ctx context.Context, page int) error {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	pageSize := f.pageSize
	f.mu.Unlock()

	invoices, total, err := f.store.ListInvoicesPage(ctx, f.userID, page, pageSize)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return nil
	}
	f.invoices = invoices
	f.total = total
	f.page = page
	return nil
}

// Snapshot returns a deep copy of the cached page plus pagination state.
func (f *InvoiceFeed) Snapshot() InvoiceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return InvoiceSnapshot{
		Invoices:   cloneInvoices(f.invoices),
		Loading:    f.loading,
		Err:        f.err,
		Page:       f.page,
		PageSize:   f.pageSize,
		TotalCount: f.total,
		TotalPages: totalPages(f.total, f.pageSize),
	}
}

func totalPages(total int64, pageSize int) int {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if pages < 1 {
		return 1
	}
	return pages
}

// NextPage advances one page and refetches; no-op on the last page.
func (f *InvoiceFeed) NextPage(ctx context.Context) error {
	f.mu.Lock()
	if f.page >= totalPages(f.total, f.pageSize) {
		f.mu.Unlock()
		return nil
	}
	page := f.page + 1
	f.mu.Unlock()
	return f.fetchPage(ctx, page)
}

// PrevPage retreats one page and refetches; no-op on page 1.
func (f *InvoiceFeed) PrevPage(ctx context.Context) error {
	f.mu.Lock()
	if f.page <= 1 {
		f.mu.Unlock()
		return nil
	}
	page := f.page - 1
	f.mu.Unlock()
	return f.fetchPage(ctx, page)
}

// GoToPage jumps to page n and refetches; no-op outside [1, totalPages].
func (f *InvoiceFeed) GoToPage(ctx context.Context, n int) error {
	f.mu.Lock()
	if n < 1 || n > totalPages(f.total, f.pageSize) {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()
	return f.fetchPage(ctx, n)
}

// CanAdd applies the tier gate against this month's invoice count.
func (f *InvoiceFeed) CanAdd(ctx context.Context) error {
	if f.tier == models.TierPro {
		return nil
	}
	count, err := f.store.InvoiceCountThisMonth(ctx, f.userID, f.now())
	if err != nil {
		return err
	}
	return f.gate.CanCreateInvoice(f.tier, count)
}

// Create validates the submit (client chosen, due date set, at least one
// populated line item), applies the tier gate, then creates the invoice
// optimistically. The server-assigned number arrives at reconcile time.
func (f *InvoiceFeed) Create(ctx context.Context, draft store.InvoiceDraft) (models.Invoice, error) {
	v := validation.Violations{}
	items := make([]validation.LineItemInput, len(draft.Items))
	for i, it := range draft.Items {
		items[i] = validation.LineItemInput{Description: it.Description, Quantity: it.Quantity, Rate: it.Rate}
	}
	dueDate := ""
	if draft.DueDate != nil {
		dueDate = draft.DueDate.Format("2006-01-02")
	}
	validation.InvoiceForm(draft.ClientID, dueDate, items, v)
	if !v.Empty() {
		return models.Invoice{}, &ValidationError{Violations: v}
	}
	return f.create(ctx, draft)
}

// create runs the tier gate and the optimistic create; duplication reuses
// it without form validation (a duplicate legitimately has no due date).
func (f *InvoiceFeed) create(ctx context.Context, draft store.InvoiceDraft) (models.Invoice, error) {
	if err := f.CanAdd(ctx); err != nil {
		return models.Invoice{}, err
	}

	f.mu.Lock()
	prev := cloneInvoices(f.invoices)
	prevTotal := f.total
	optimistic := models.Invoice{
		UserID:    f.userID,
		ClientID:  draft.ClientID,
		IssueDate: draft.IssueDate,
		DueDate:   draft.DueDate,
		TaxRate:   draft.TaxRate,
		Notes:     draft.Notes,
		Status:    models.InvoiceStatusPending,
		Items:     draft.Items,
	}
	f.invoices = append([]models.Invoice{optimistic}, f.invoices...)
	f.total++
	f.gen++
	f.mu.Unlock()

	created, err := f.store.CreateInvoice(ctx, f.userID, draft)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if err != nil {
		f.invoices = prev
		f.total = prevTotal
		return models.Invoice{}, err
	}
	for i := range f.invoices {
		if f.invoices[i].ID == 0 {
			f.invoices[i] = created
			break
		}
	}
	return created, nil
}

// Update patches an invoice optimistically (full line-item replace when
// the patch carries items) with rollback on failure.
func (f *InvoiceFeed) Update(ctx context.Context, id uint, patch store.InvoicePatch) (models.Invoice, error) {
	f.mu.Lock()
	prev := cloneInvoices(f.invoices)
	for i := range f.invoices {
		if f.invoices[i].ID == id {
			applyInvoicePatch(&f.invoices[i], patch)
			break
		}
	}
	f.gen++
	f.mu.Unlock()

	updated, err := f.store.UpdateInvoice(ctx, f.userID, id, patch)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if err != nil {
		f.invoices = prev
		return models.Invoice{}, err
	}
	for i := range f.invoices {
		if f.invoices[i].ID == id {
			f.invoices[i] = updated
			break
		}
	}
	return updated, nil
}

// MarkPaid flips status to Paid and nothing else.
func (f *InvoiceFeed) MarkPaid(ctx context.Context, id uint) (models.Invoice, error) {
	f.mu.Lock()
	prev := cloneInvoices(f.invoices)
	for i := range f.invoices {
		if f.invoices[i].ID == id {
			f.invoices[i].Status = models.InvoiceStatusPaid
			break
		}
	}
	f.gen++
	f.mu.Unlock()

	updated, err := f.store.MarkInvoicePaid(ctx, f.userID, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if err != nil {
		f.invoices = prev
		return models.Invoice{}, err
	}
	for i := range f.invoices {
		if f.invoices[i].ID == id {
			f.invoices[i] = updated
			break
		}
	}
	return updated, nil
}

// Delete removes an invoice optimistically. If the deletion empties the
// current page and the page number now exceeds the recomputed page count,
// the feed steps back one page; either way the page is refetched so the
// window backfills from the store.
func (f *InvoiceFeed) Delete(ctx context.Context, id uint) error {
	f.mu.Lock()
	prev := cloneInvoices(f.invoices)
	prevTotal := f.total
	kept := f.invoices[:0:0]
	for _, inv := range f.invoices {
		if inv.ID != id {
			kept = append(kept, inv)
		}
	}
	removed := len(kept) != len(f.invoices)
	f.invoices = kept
	if removed {
		f.total--
	}
	f.gen++
	f.mu.Unlock()

	err := f.store.DeleteInvoice(ctx, f.userID, id)

	f.mu.Lock()
	f.gen++
	if err != nil {
		f.invoices = prev
		f.total = prevTotal
		f.mu.Unlock()
		return err
	}
	page := f.page
	if last := totalPages(f.total, f.pageSize); page > last {
		page = last
	}
	f.mu.Unlock()

	if rerr := f.fetchPage(ctx, page); rerr != nil {
		// the delete itself succeeded; treat the refill like a background refresh
		f.log.WithError(rerr).Warn("page refetch after delete failed")
	}
	return nil
}

// Duplicate creates a copy of an invoice: same client, line items copied
// by value, same tax rate and notes, today's issue date, no due date,
// status reset to Pending, and a fresh sequential number. The tier gate
// applies exactly as for Create.
func (f *InvoiceFeed) Duplicate(ctx context.Context, id uint) (models.Invoice, error) {
	src, err := f.store.GetInvoice(ctx, f.userID, id)
	if err != nil {
		return models.Invoice{}, err
	}
	items := make([]models.InvoiceLineItem, len(src.Items))
	for i, it := range src.Items {
		items[i] = models.InvoiceLineItem{Description: it.Description, Quantity: it.Quantity, Rate: it.Rate}
	}
	draft := store.InvoiceDraft{
		ClientID:  src.ClientID,
		IssueDate: f.now(),
		DueDate:   nil,
		TaxRate:   src.TaxRate,
		Notes:     src.Notes,
		Items:     items,
	}
	return f.create(ctx, draft)
}

// applyInvoicePatch mirrors the store's merge rules for the optimistic copy.
func applyInvoicePatch(inv *models.Invoice, p store.InvoicePatch) {
	if p.ClientID != nil {
		inv.ClientID = *p.ClientID
	}
	if p.IssueDate != nil {
		inv.IssueDate = *p.IssueDate
	}
	if p.ClearDueDate {
		inv.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		inv.DueDate = &d
	}
	if p.TaxRate != nil {
		inv.TaxRate = *p.TaxRate
	}
	if p.Notes != nil {
		inv.Notes = *p.Notes
	}
	if p.Items != nil {
		items := make([]models.InvoiceLineItem, len(p.Items))
		copy(items, p.Items)
		inv.Items = items
	}
}
