package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/i18n"
	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/store"
	"github.com/invoicify/invoicify/internal/tier"
	"github.com/invoicify/invoicify/pdf"
	"github.com/invoicify/invoicify/validation"

	"gorm.io/gorm"
)

const (
	dateLayout      = "2006-01-02"
	defaultPageSize = 20
	maxPageSize     = 100
)

type InvoiceHandler struct {
	DB    *gorm.DB
	Store *store.Store
	Gate  *tier.Gate
}

func NewInvoiceHandler(db *gorm.DB, s *store.Store, gate *tier.Gate) *InvoiceHandler {
	return &InvoiceHandler{DB: db, Store: s, Gate: gate}
}

// Collection dispatches /api/invoices by method.
func (h *InvoiceHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	case http.MethodPut, http.MethodPatch:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		methodNotAllowed(w, "GET,POST,PUT,PATCH,DELETE")
	}
}

type lineItemRequest struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

func toLineItems(reqs []lineItemRequest) []models.InvoiceLineItem {
	items := make([]models.InvoiceLineItem, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, models.InvoiceLineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
		})
	}
	return items
}

// list: GET /api/invoices?page=&page_size=, or one invoice with ?id=
func (h *InvoiceHandler) list(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if id := queryID(r, "id"); id != 0 {
		inv, err := h.Store.GetInvoice(r.Context(), user.ID, id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, inv)
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	pageSize := defaultPageSize
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageSize {
			pageSize = n
		}
	}
	invoices, total, err := h.Store.ListInvoicesPage(r.Context(), user.ID, page, pageSize)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":       invoices,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
	})
}

type invoiceRequest struct {
	ClientID  uint              `json:"client_id"`
	IssueDate string            `json:"issue_date"`
	DueDate   string            `json:"due_date"`
	TaxRate   *float64          `json:"tax_rate"`
	Notes     string            `json:"notes"`
	Items     []lineItemRequest `json:"items"`
}

// create: POST /api/invoices – form rules first, then the monthly tier cap.
func (h *InvoiceHandler) create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	violations := validation.Violations{}
	formItems := make([]validation.LineItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		formItems = append(formItems, validation.LineItemInput{Description: it.Description, Quantity: it.Quantity, Rate: it.Rate})
	}
	validation.InvoiceForm(req.ClientID, req.DueDate, formItems, violations)
	if !violations.Empty() {
		httpx.JSONErrorMessage(w, http.StatusBadRequest, "validation_failed", i18n.T(lang(r), "validation_failed"), violations)
		return
	}

	draft, err := h.draftFromRequest(r, user, req)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_date", map[string]string{"format": dateLayout})
		return
	}
	count, err := h.Store.InvoiceCountThisMonth(r.Context(), user.ID, time.Now())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := h.Gate.CanCreateInvoice(user.Tier, count); err != nil {
		writeStoreError(w, r, err)
		return
	}
	created, err := h.Store.CreateInvoice(r.Context(), user.ID, draft)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

// draftFromRequest fills date defaults and the user's default tax rate.
func (h *InvoiceHandler) draftFromRequest(r *http.Request, user models.User, req invoiceRequest) (store.InvoiceDraft, error) {
	draft := store.InvoiceDraft{
		ClientID: req.ClientID,
		Notes:    req.Notes,
		Items:    toLineItems(req.Items),
	}
	draft.IssueDate = time.Now()
	if req.IssueDate != "" {
		d, err := time.Parse(dateLayout, req.IssueDate)
		if err != nil {
			return store.InvoiceDraft{}, err
		}
		draft.IssueDate = d
	}
	if req.DueDate != "" {
		d, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			return store.InvoiceDraft{}, err
		}
		draft.DueDate = &d
	}
	if req.TaxRate != nil {
		draft.TaxRate = *req.TaxRate
	} else if settings, err := h.Store.GetSettings(r.Context(), user.ID); err == nil {
		draft.TaxRate = settings.DefaultTaxRate
	}
	return draft, nil
}

type invoicePatchRequest struct {
	ClientID  *uint              `json:"client_id"`
	IssueDate *string            `json:"issue_date"`
	DueDate   *string            `json:"due_date"`
	TaxRate   *float64           `json:"tax_rate"`
	Notes     *string            `json:"notes"`
	Items     *[]lineItemRequest `json:"items"`
}

// update: PUT /api/invoices?id= – an explicit empty due_date clears it; a
// present items array replaces the whole line-item set.
func (h *InvoiceHandler) update(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	id := queryID(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req invoicePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := store.InvoicePatch{ClientID: req.ClientID, TaxRate: req.TaxRate, Notes: req.Notes}
	if req.IssueDate != nil {
		d, err := time.Parse(dateLayout, *req.IssueDate)
		if err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_date", map[string]string{"format": dateLayout})
			return
		}
		patch.IssueDate = &d
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			patch.ClearDueDate = true
		} else {
			d, err := time.Parse(dateLayout, *req.DueDate)
			if err != nil {
				httpx.JSONError(w, http.StatusBadRequest, "invalid_date", map[string]string{"format": dateLayout})
				return
			}
			patch.DueDate = &d
		}
	}
	if req.Items != nil {
		patch.Items = toLineItems(*req.Items)
	}
	updated, err := h.Store.UpdateInvoice(r.Context(), user.ID, id, patch)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *InvoiceHandler) delete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	id := queryID(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Store.DeleteInvoice(r.Context(), user.ID, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MarkPaid: POST /api/invoices/paid?id= – the only status transition.
func (h *InvoiceHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	id := queryID(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	updated, err := h.Store.MarkInvoicePaid(r.Context(), user.ID, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// Duplicate: POST /api/invoices/duplicate?id= – copies the line items by
// value onto a fresh Pending invoice dated today with no due date. The
// copy takes the next sequential number and counts against the monthly cap.
func (h *InvoiceHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	id := queryID(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	src, err := h.Store.GetInvoice(r.Context(), user.ID, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	count, err := h.Store.InvoiceCountThisMonth(r.Context(), user.ID, time.Now())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := h.Gate.CanCreateInvoice(user.Tier, count); err != nil {
		writeStoreError(w, r, err)
		return
	}
	items := make([]models.InvoiceLineItem, 0, len(src.Items))
	for _, it := range src.Items {
		items = append(items, models.InvoiceLineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
		})
	}
	created, err := h.Store.CreateInvoice(r.Context(), user.ID, store.InvoiceDraft{
		ClientID:  src.ClientID,
		IssueDate: time.Now(),
		TaxRate:   src.TaxRate,
		Notes:     src.Notes,
		Items:     items,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

// RenderPDF: GET /api/invoices/pdf?id= – streams the invoice as a PDF
// named after its number.
func (h *InvoiceHandler) RenderPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	id := queryID(r, "id")
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	inv, err := h.Store.GetInvoice(r.Context(), user.ID, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	client, err := h.Store.GetClient(r.Context(), user.ID, inv.ClientID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	settings, err := h.Store.GetSettings(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	data, err := pdf.Render(inv, client, settings)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+inv.Number+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
