package handlers

import (
	"net/http"

	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/i18n"
	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/services"
	"github.com/invoicify/invoicify/internal/store"
	"github.com/invoicify/invoicify/internal/tier"

	"gorm.io/gorm"
)

type ClientHandler struct {
	DB    *gorm.DB
	Store *store.Store
	Gate  *tier.Gate
	Svc   *services.InvoiceService
}

func NewClientHandler(db *gorm.DB, s *store.Store, gate *tier.Gate, svc *services.InvoiceService) *ClientHandler {
	return &ClientHandler{DB: db, Store: s, Gate: gate, Svc: svc}
}

// Collection dispatches /api/clients by method.
func (h *ClientHandler) Collection(w http.ResponseWriter, r *http.Request) {
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

// list: GET /api/clients, or one client with ?id=
func (h *ClientHandler) list(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if id := queryID(r, "id"); id != 0 {
		client, err := h.Store.GetClient(r.Context(), user.ID, id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, client)
		return
	}
	clients, err := h.Store.ListClients(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": clients, "total": len(clients)})
}

type clientRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	VATNumber string `json:"vat_number"`
}

// create: POST /api/clients – gated by the free-tier client cap.
func (h *ClientHandler) create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	count, err := h.Store.ClientCount(r.Context(), user.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := h.Gate.CanCreateClient(user.Tier, count); err != nil {
		writeStoreError(w, r, err)
		return
	}
	violations := map[string]string{}
	if req.Name == "" {
		violations["name"] = "required"
	}
	if req.Email == "" {
		violations["email"] = "required"
	}
	if len(violations) > 0 {
		httpx.JSONErrorMessage(w, http.StatusBadRequest, "validation_failed", i18n.T(lang(r), "validation_failed"), violations)
		return
	}
	created, err := h.Store.CreateClient(r.Context(), user.ID, models.Client{
		Name:      req.Name,
		Email:     req.Email,
		Address:   req.Address,
		VATNumber: req.VATNumber,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type clientPatchRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	VATNumber *string `json:"vat_number"`
}

// update: PUT /api/clients?id=
func (h *ClientHandler) update(w http.ResponseWriter, r *http.Request) {
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
	var req clientPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.Store.UpdateClient(r.Context(), user.ID, id, store.ClientPatch{
		Name:      req.Name,
		Email:     req.Email,
		Address:   req.Address,
		VATNumber: req.VATNumber,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// delete: DELETE /api/clients?id= – cascades to the client's invoices.
func (h *ClientHandler) delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Store.DeleteClient(r.Context(), user.ID, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Revenue: GET /api/clients/revenue?id= – lifetime and paid totals.
func (h *ClientHandler) Revenue(w http.ResponseWriter, r *http.Request) {
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
	if _, err := h.Store.GetClient(r.Context(), user.ID, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	lifetime, paid, err := h.Svc.ClientRevenue(user.ID, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"lifetime": lifetime, "paid": paid})
}

// Invoices: GET /api/clients/invoices?id= – the client's invoice history.
func (h *ClientHandler) Invoices(w http.ResponseWriter, r *http.Request) {
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
	if _, err := h.Store.GetClient(r.Context(), user.ID, id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	invoices, err := h.Store.InvoicesByClient(r.Context(), user.ID, id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": invoices, "total": len(invoices)})
}
