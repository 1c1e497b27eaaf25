package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/invoicify/invoicify/auth"
	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/i18n"
	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/store"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB    *gorm.DB
	Store *store.Store
}

func NewAuthHandler(db *gorm.DB, s *store.Store) *AuthHandler {
	return &AuthHandler{DB: db, Store: s}
}

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/signup", h.signup)
	mux.HandleFunc("/api/login", h.login)
	mux.HandleFunc("/api/logout", h.logout)
}

type userResponse struct {
	ID    uint                    `json:"id"`
	Email string                  `json:"email"`
	Name  string                  `json:"name"`
	Tier  models.SubscriptionTier `json:"tier"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Tier: u.Tier}
}

// defaultSettings are provisioned at signup so the first settings read
// never 404s.
func defaultSettings() models.Settings {
	return models.Settings{
		PrimaryColor:   "#4F46E5",
		SecondaryColor: "#6B7280",
		CurrencySymbol: "$",
		DefaultTaxRate: 20,
		Language:       "en",
	}
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	violations := map[string]string{}
	if req.Email == "" {
		violations["email"] = "required"
	}
	if len(req.Password) < 8 {
		violations["password"] = "too_short"
	}
	if len(violations) > 0 {
		httpx.JSONErrorMessage(w, http.StatusBadRequest, "validation_failed", i18n.T(lang(r), "validation_failed"), violations)
		return
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		writeStoreError(w, r, err)
		return
	}
	if count > 0 {
		httpx.JSONErrorMessage(w, http.StatusConflict, "email_taken", i18n.T(lang(r), "email_taken"), nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	user := models.User{Email: req.Email, Password: string(hash), Name: strings.TrimSpace(req.Name), Tier: models.TierFree}
	if err := h.DB.Create(&user).Error; err != nil {
		writeStoreError(w, r, err)
		return
	}
	if _, err := h.Store.EnsureSettings(r.Context(), user.ID, defaultSettings()); err != nil {
		writeStoreError(w, r, err)
		return
	}

	auth.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := h.DB.Where("email = ?", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil) {
		httpx.JSONErrorMessage(w, http.StatusUnauthorized, "invalid_credentials", i18n.T(lang(r), "invalid_credentials"), nil)
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	auth.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	auth.ClearSession(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	user, err := currentUser(h.DB, r)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

// currentUser loads the session user. A session pointing at a deleted
// user reads as not authenticated.
func currentUser(db *gorm.DB, r *http.Request) (models.User, error) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		return models.User{}, store.ErrNotAuthenticated
	}
	var user models.User
	if err := db.First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, store.ErrNotAuthenticated
		}
		return models.User{}, err
	}
	return user, nil
}
