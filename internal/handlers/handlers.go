// Package handlers exposes the JSON API. Each handler owns one resource
// and registers its routes on the shared mux.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/i18n"
	"github.com/invoicify/invoicify/internal/store"
	"github.com/invoicify/invoicify/internal/tier"
)

// lang picks the response language from the request.
func lang(r *http.Request) string {
	return i18n.DetectLanguage(r.Header.Get("Accept-Language"))
}

// queryID parses the id query parameter. Zero means absent or invalid.
func queryID(r *http.Request, name string) uint {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return uint(n)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

// writeStoreError maps store and tier sentinels onto HTTP statuses with a
// localized message. Unknown errors become an opaque 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	l := lang(r)
	var limitErr *tier.LimitError
	switch {
	case errors.Is(err, store.ErrNotAuthenticated):
		httpx.JSONErrorMessage(w, http.StatusUnauthorized, "unauthorized", i18n.T(l, "unauthorized"), nil)
	case errors.Is(err, store.ErrForbidden):
		httpx.JSONErrorMessage(w, http.StatusForbidden, "forbidden", i18n.T(l, "forbidden"), nil)
	case errors.Is(err, store.ErrNotFound):
		httpx.JSONErrorMessage(w, http.StatusNotFound, "not_found", i18n.T(l, "not_found"), nil)
	case errors.As(err, &limitErr):
		code := "client_limit_reached"
		if limitErr.Resource == "invoices" {
			code = "invoice_limit_reached"
		}
		httpx.JSONErrorMessage(w, http.StatusForbidden, code, i18n.T(l, code), map[string]int{"limit": limitErr.Limit})
	case errors.Is(err, store.ErrInvalid):
		httpx.JSONErrorMessage(w, http.StatusBadRequest, "validation_failed", i18n.T(l, "validation_failed"), nil)
	default:
		httpx.JSONErrorMessage(w, http.StatusInternalServerError, "internal_error", i18n.T(l, "remote_error"), nil)
	}
}
