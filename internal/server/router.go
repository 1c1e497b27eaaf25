package server

import (
	"context"
	"net/http"
	"time"

	"github.com/invoicify/invoicify/auth"
	"github.com/invoicify/invoicify/httpx"
	"github.com/invoicify/invoicify/internal/config"
	"github.com/invoicify/invoicify/internal/handlers"
	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/services"
	"github.com/invoicify/invoicify/internal/store"
	"github.com/invoicify/invoicify/internal/tier"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// New constructs the root http.Handler with all routes and middlewares
// applied.
func New(db *gorm.DB, cfg config.Config, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()

	st := store.New(db)
	gate := tier.NewGate(tier.Limits{
		MaxClients:          cfg.FreeMaxClients,
		MaxInvoicesPerMonth: cfg.FreeMaxInvoicesPerMonth,
	})
	svc := services.NewInvoiceService(db)

	// RequireAuth verifies the session user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	// Health endpoints
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public auth endpoints
	authHandler := handlers.NewAuthHandler(db, st)
	authHandler.Register(mux)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(auth.RequireAuth(h))
	}
	mux.Handle("/api/me", protect(authHandler.Me))

	ch := handlers.NewClientHandler(db, st, gate, svc)
	mux.Handle("/api/clients", protect(ch.Collection))
	mux.Handle("/api/clients/revenue", protect(ch.Revenue))
	mux.Handle("/api/clients/invoices", protect(ch.Invoices))

	ih := handlers.NewInvoiceHandler(db, st, gate)
	mux.Handle("/api/invoices", protect(ih.Collection))
	mux.Handle("/api/invoices/paid", protect(ih.MarkPaid))
	mux.Handle("/api/invoices/duplicate", protect(ih.Duplicate))
	mux.Handle("/api/invoices/pdf", protect(ih.RenderPDF))

	sh := handlers.NewSettingsHandler(db, st, cfg.UploadDir)
	mux.Handle("/api/settings", protect(sh.Settings))
	mux.Handle("/api/settings/logo", protect(sh.UploadLogo))

	dh := handlers.NewDashboardHandler(db, st, svc)
	mux.Handle("/api/dashboard", protect(dh.Stats))

	eh := handlers.NewEventsHandler(db, st, log)
	mux.Handle("/api/events", protect(eh.Stream))

	// Uploaded logos are public, immutable blobs under random names.
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"service": "invoicify", "status": "ok"})
	})

	return withRecover(withLogging(mux, log), log)
}

func withLogging(next http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func withRecover(next http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", rec).Error("handler panic")
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
