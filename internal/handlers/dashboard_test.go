package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/services"
)

func TestDashboardStats(t *testing.T) {
	db, s := setupHandlerDB(t)
	user := seedUser(t, db, models.TierPro)
	clients := NewClientHandler(db, s, testGate(), services.NewInvoiceService(db))
	invoices := NewInvoiceHandler(db, s, testGate())
	h := NewDashboardHandler(db, s, services.NewInvoiceService(db))

	w := httptest.NewRecorder()
	clients.Collection(w, authedRequest(user, http.MethodPost, "/api/clients", `{"name":"Acme","email":"a@test"}`))
	var client models.Client
	decodeBody(t, w, &client)

	body := fmt.Sprintf(`{"client_id":%d,"due_date":"2026-09-30","tax_rate":0,"items":[{"description":"Work","quantity":1,"rate":100}]}`, client.ID)
	var first models.Invoice
	for i := 0; i < 7; i++ {
		w = httptest.NewRecorder()
		invoices.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", body))
		if i == 0 {
			decodeBody(t, w, &first)
		}
	}
	w = httptest.NewRecorder()
	invoices.MarkPaid(w, authedRequest(user, http.MethodPost, fmt.Sprintf("/api/invoices/paid?id=%d", first.ID), ""))

	w = httptest.NewRecorder()
	h.Stats(w, authedRequest(user, http.MethodGet, "/api/dashboard", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("stats: got %d body=%s", w.Code, w.Body.String())
	}
	var stats struct {
		ClientCount       int64            `json:"client_count"`
		InvoiceCount      int64            `json:"invoice_count"`
		InvoicesThisMonth int64            `json:"invoices_this_month"`
		PendingRevenue    float64          `json:"pending_revenue"`
		PaidRevenue       float64          `json:"paid_revenue"`
		RecentInvoices    []models.Invoice `json:"recent_invoices"`
	}
	decodeBody(t, w, &stats)
	if stats.ClientCount != 1 || stats.InvoiceCount != 7 || stats.InvoicesThisMonth != 7 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.PendingRevenue != 600 || stats.PaidRevenue != 100 {
		t.Fatalf("unexpected revenue: pending=%v paid=%v", stats.PendingRevenue, stats.PaidRevenue)
	}
	if len(stats.RecentInvoices) != 5 {
		t.Fatalf("recent list should cap at 5, got %d", len(stats.RecentInvoices))
	}
}
