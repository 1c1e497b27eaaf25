package handlers

import (
	"net/http"
	"time"

	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/internal/services"
	"github.com/invoicify/invoicify/internal/store"

	"gorm.io/gorm"
)

type DashboardHandler struct {
	DB    *gorm.DB
	Store *store.Store
	Svc   *services.InvoiceService
}

func NewDashboardHandler(db *gorm.DB, s *store.Store, svc *services.InvoiceService) *DashboardHandler {
	return &DashboardHandler{DB: db, Store: s, Svc: svc}
}

// Stats: GET /api/dashboard – the headline numbers plus the latest
// invoices for the activity list.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	ctx := r.Context()

	clientCount, err := h.Store.ClientCount(ctx, user.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	recent, invoiceCount, err := h.Store.ListInvoicesPage(ctx, user.ID, 1, 5)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	monthCount, err := h.Store.InvoiceCountThisMonth(ctx, user.ID, time.Now())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	pending, paid, err := h.Svc.Revenue(user.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"client_count":        clientCount,
		"invoice_count":       invoiceCount,
		"invoices_this_month": monthCount,
		"pending_revenue":     pending,
		"paid_revenue":        paid,
		"recent_invoices":     recent,
	})
}
