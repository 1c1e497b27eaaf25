package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/internal/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxLogoBytes caps logo uploads at 2 MiB.
const maxLogoBytes = 2 << 20

type SettingsHandler struct {
	DB        *gorm.DB
	Store     *store.Store
	UploadDir string
}

func NewSettingsHandler(db *gorm.DB, s *store.Store, uploadDir string) *SettingsHandler {
	return &SettingsHandler{DB: db, Store: s, UploadDir: uploadDir}
}

// Settings dispatches /api/settings by method.
func (h *SettingsHandler) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut, http.MethodPatch:
		h.update(w, r)
	default:
		methodNotAllowed(w, "GET,PUT,PATCH")
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	settings, err := h.Store.EnsureSettings(r.Context(), user.ID, defaultSettings())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

type settingsPatchRequest struct {
	CompanyName    *string  `json:"company_name"`
	CompanyEmail   *string  `json:"company_email"`
	CompanyAddress *string  `json:"company_address"`
	CompanyVAT     *string  `json:"company_vat"`
	LogoURL        *string  `json:"logo_url"`
	PrimaryColor   *string  `json:"primary_color"`
	SecondaryColor *string  `json:"secondary_color"`
	CurrencySymbol *string  `json:"currency_symbol"`
	DefaultTaxRate *float64 `json:"default_tax_rate"`
	Language       *string  `json:"language"`
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	var req settingsPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DefaultTaxRate != nil && (*req.DefaultTaxRate < 0 || *req.DefaultTaxRate > 100) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"default_tax_rate": "out_of_range"})
		return
	}
	updated, err := h.Store.UpdateSettings(r.Context(), user.ID, store.SettingsPatch{
		CompanyName:    req.CompanyName,
		CompanyEmail:   req.CompanyEmail,
		CompanyAddress: req.CompanyAddress,
		CompanyVAT:     req.CompanyVAT,
		LogoURL:        req.LogoURL,
		PrimaryColor:   req.PrimaryColor,
		SecondaryColor: req.SecondaryColor,
		CurrencySymbol: req.CurrencySymbol,
		DefaultTaxRate: req.DefaultTaxRate,
		Language:       req.Language,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// UploadLogo: POST multipart "logo" file. The file lands under UploadDir
// with a random name and the settings row points at its public URL.
func (h *SettingsHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes)
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_upload", nil)
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "missing_file", nil)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp":
	default:
		httpx.JSONError(w, http.StatusBadRequest, "unsupported_file_type", nil)
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		writeStoreError(w, r, err)
		return
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.UploadDir, name))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		writeStoreError(w, r, err)
		return
	}

	logoURL := "/uploads/" + name
	updated, err := h.Store.UpdateSettings(r.Context(), user.ID, store.SettingsPatch{LogoURL: &logoURL})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}
