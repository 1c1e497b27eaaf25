package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/invoicify/invoicify/internal/models"
)

func newInvoiceHandlerUnderTest(t *testing.T, tier models.SubscriptionTier) (*InvoiceHandler, models.User, models.Client) {
	t.Helper()
	db, s := setupHandlerDB(t)
	user := seedUser(t, db, tier)
	client, err := s.CreateClient(httptest.NewRequest(http.MethodGet, "/", nil).Context(), user.ID, models.Client{Name: "Acme", Email: "a@test"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return NewInvoiceHandler(db, s, testGate()), user, client
}

func invoiceBody(clientID uint) string {
	return fmt.Sprintf(`{"client_id":%d,"due_date":"2026-09-30","tax_rate":10,"items":[{"description":"Design","quantity":2,"rate":100},{"description":"Hosting","quantity":1,"rate":50}]}`, clientID)
}

func TestInvoiceCreateAssignsSequentialNumbers(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierPro)

	for i, want := range []string{"INV-0001", "INV-0002", "INV-0003"} {
		w := httptest.NewRecorder()
		h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
		if w.Code != http.StatusCreated {
			t.Fatalf("create %d: got %d body=%s", i, w.Code, w.Body.String())
		}
		var inv models.Invoice
		decodeBody(t, w, &inv)
		if inv.Number != want {
			t.Fatalf("number: want %s got %s", want, inv.Number)
		}
		if inv.Status != models.InvoiceStatusPending {
			t.Fatalf("new invoices start pending, got %s", inv.Status)
		}
	}
}

func TestInvoiceCreateValidationAndDefaults(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierPro)

	// missing due date and items
	w := httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", fmt.Sprintf(`{"client_id":%d}`, client.ID)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	for _, field := range []string{"due_date", "line_items"} {
		if !strings.Contains(w.Body.String(), field) {
			t.Fatalf("missing violation %s in %s", field, w.Body.String())
		}
	}

	// omitted tax rate falls back to the settings default
	if _, err := h.Store.EnsureSettings(authedRequest(user, http.MethodGet, "/", "").Context(), user.ID, defaultSettings()); err != nil {
		t.Fatalf("settings: %v", err)
	}
	body := fmt.Sprintf(`{"client_id":%d,"due_date":"2026-09-30","items":[{"description":"Work","quantity":1,"rate":100}]}`, client.ID)
	w = httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
	}
	var inv models.Invoice
	decodeBody(t, w, &inv)
	if inv.TaxRate != 20 {
		t.Fatalf("expected default tax rate 20, got %v", inv.TaxRate)
	}
}

func TestInvoiceListPagination(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierPro)
	for i := 0; i < 45; i++ {
		w := httptest.NewRecorder()
		h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
		if w.Code != http.StatusCreated {
			t.Fatalf("seed %d: got %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodGet, "/api/invoices?page=3", ""))
	var page struct {
		Items      []models.Invoice `json:"items"`
		Total      int64            `json:"total"`
		Page       int              `json:"page"`
		TotalPages int              `json:"total_pages"`
	}
	decodeBody(t, w, &page)
	if page.Total != 45 || page.TotalPages != 3 || page.Page != 3 {
		t.Fatalf("unexpected page meta: %+v", page)
	}
	if len(page.Items) != 5 {
		t.Fatalf("page 3 should hold 5 invoices, got %d", len(page.Items))
	}
	// items come joined with their lines
	if len(page.Items[0].Items) != 2 {
		t.Fatalf("line items missing from listing: %+v", page.Items[0])
	}
}

func TestInvoiceUpdateAndDelete(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierPro)

	w := httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
	var inv models.Invoice
	decodeBody(t, w, &inv)

	// replace lines and clear the due date
	body := `{"due_date":"","items":[{"description":"Consulting","quantity":3,"rate":200}]}`
	w = httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPut, fmt.Sprintf("/api/invoices?id=%d", inv.ID), body))
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d body=%s", w.Code, w.Body.String())
	}
	var updated models.Invoice
	decodeBody(t, w, &updated)
	if updated.DueDate != nil {
		t.Fatalf("empty due_date must clear, got %v", updated.DueDate)
	}
	if len(updated.Items) != 1 || updated.Items[0].Description != "Consulting" {
		t.Fatalf("items not replaced: %+v", updated.Items)
	}
	if updated.Number != inv.Number {
		t.Fatalf("number must never change, got %s", updated.Number)
	}

	w = httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodDelete, fmt.Sprintf("/api/invoices?id=%d", inv.ID), ""))
	if w.Code != http.StatusOK {
		t.Fatalf("delete: got %d", w.Code)
	}
	w = httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodGet, fmt.Sprintf("/api/invoices?id=%d", inv.ID), ""))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestInvoiceMarkPaidAndDuplicate(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierPro)

	w := httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
	var inv models.Invoice
	decodeBody(t, w, &inv)

	w = httptest.NewRecorder()
	h.MarkPaid(w, authedRequest(user, http.MethodPost, fmt.Sprintf("/api/invoices/paid?id=%d", inv.ID), ""))
	if w.Code != http.StatusOK {
		t.Fatalf("mark paid: got %d", w.Code)
	}
	var paid models.Invoice
	decodeBody(t, w, &paid)
	if paid.Status != models.InvoiceStatusPaid {
		t.Fatalf("status: %s", paid.Status)
	}

	w = httptest.NewRecorder()
	h.Duplicate(w, authedRequest(user, http.MethodPost, fmt.Sprintf("/api/invoices/duplicate?id=%d", inv.ID), ""))
	if w.Code != http.StatusCreated {
		t.Fatalf("duplicate: got %d body=%s", w.Code, w.Body.String())
	}
	var dup models.Invoice
	decodeBody(t, w, &dup)
	if dup.Number == inv.Number {
		t.Fatalf("duplicate must take a new number")
	}
	if dup.Status != models.InvoiceStatusPending {
		t.Fatalf("duplicate of a paid invoice starts pending, got %s", dup.Status)
	}
	if dup.DueDate != nil {
		t.Fatalf("duplicate has no due date, got %v", dup.DueDate)
	}
	if len(dup.Items) != 2 || dup.Items[0].Description != "Design" {
		t.Fatalf("items not copied: %+v", dup.Items)
	}
}

func TestInvoiceMonthlyCapOnCreateAndDuplicate(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierFree)

	var firstID uint
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
		if w.Code != http.StatusCreated {
			t.Fatalf("create %d: got %d", i, w.Code)
		}
		if i == 0 {
			var inv models.Invoice
			decodeBody(t, w, &inv)
			firstID = inv.ID
		}
	}
	w := httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
	if w.Code != http.StatusForbidden || !strings.Contains(w.Body.String(), "invoice_limit_reached") {
		t.Fatalf("expected 403 invoice_limit_reached, got %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.Duplicate(w, authedRequest(user, http.MethodPost, fmt.Sprintf("/api/invoices/duplicate?id=%d", firstID), ""))
	if w.Code != http.StatusForbidden {
		t.Fatalf("duplicate must respect the cap, got %d", w.Code)
	}
}

func TestInvoicePDFEndpoint(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierPro)
	ctx := authedRequest(user, http.MethodGet, "/", "").Context()
	if _, err := h.Store.EnsureSettings(ctx, user.ID, defaultSettings()); err != nil {
		t.Fatalf("settings: %v", err)
	}

	w := httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
	var inv models.Invoice
	decodeBody(t, w, &inv)

	w = httptest.NewRecorder()
	h.RenderPDF(w, authedRequest(user, http.MethodGet, fmt.Sprintf("/api/invoices/pdf?id=%d", inv.ID), ""))
	if w.Code != http.StatusOK {
		t.Fatalf("pdf: got %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, inv.Number+".pdf") {
		t.Fatalf("filename must be the invoice number, got %s", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Fatalf("body is not a PDF")
	}
}

func TestInvoiceForeignAccess(t *testing.T) {
	h, user, client := newInvoiceHandlerUnderTest(t, models.TierPro)

	w := httptest.NewRecorder()
	h.Collection(w, authedRequest(user, http.MethodPost, "/api/invoices", invoiceBody(client.ID)))
	var inv models.Invoice
	decodeBody(t, w, &inv)

	other := models.User{Email: "intruder@test", Password: "x", Tier: models.TierPro}
	if err := h.DB.Create(&other).Error; err != nil {
		t.Fatalf("other: %v", err)
	}
	for _, tc := range []struct {
		name string
		run  func(w *httptest.ResponseRecorder)
	}{
		{"get", func(w *httptest.ResponseRecorder) {
			h.Collection(w, authedRequest(other, http.MethodGet, fmt.Sprintf("/api/invoices?id=%d", inv.ID), ""))
		}},
		{"paid", func(w *httptest.ResponseRecorder) {
			h.MarkPaid(w, authedRequest(other, http.MethodPost, fmt.Sprintf("/api/invoices/paid?id=%d", inv.ID), ""))
		}},
		{"delete", func(w *httptest.ResponseRecorder) {
			h.Collection(w, authedRequest(other, http.MethodDelete, fmt.Sprintf("/api/invoices?id=%d", inv.ID), ""))
		}},
	} {
		w := httptest.NewRecorder()
		tc.run(w)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 got %d", tc.name, w.Code)
		}
	}

	// the row is untouched
	var check models.Invoice
	if err := h.DB.First(&check, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if check.Status != models.InvoiceStatusPending {
		t.Fatalf("foreign mark-paid must not land, got %s", check.Status)
	}
}
