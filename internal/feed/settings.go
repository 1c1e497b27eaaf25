package feed

import (
	"context"
	"sync"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/store"

	"github.com/sirupsen/logrus"
)

// SettingsFeed keeps the user's settings row synchronized with the store.
// Settings are created at account provisioning and never deleted, so the
// feed only reads and patches.
type SettingsFeed struct {
	store  SettingsStore
	userID uint
	log    logrus.FieldLogger

	mu       sync.Mutex
	settings models.Settings
	loaded   bool
	loading  bool
	err      error
	gen      uint64
	sub      *store.Subscription
}

func NewSettingsFeed(s SettingsStore, userID uint, log logrus.FieldLogger) *SettingsFeed {
	return &SettingsFeed{store: s, userID: userID, log: log}
}

// Load performs the initial fetch.
func (f *SettingsFeed) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loading = true
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	settings, err := f.store.GetSettings(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if err != nil {
		f.err = err
		return err
	}
	f.err = nil
	if gen == f.gen {
		f.settings = settings
		f.loaded = true
	}
	return nil
}

// Start subscribes to realtime change events. Close to stop.
func (f *SettingsFeed) Start(ctx context.Context) {
	f.sub = f.store.Subscribe(store.TableSettings, f.userID)
	go func() {
		for {
			select {
			case _, ok := <-f.sub.C:
				if !ok {
					return
				}
				f.refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (f *SettingsFeed) Close() {
	if f.sub != nil {
		f.sub.Close()
	}
}

func (f *SettingsFeed) refresh(ctx context.Context) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	settings, err := f.store.GetSettings(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.log.WithError(err).Warn("settings refresh failed")
		return
	}
	if gen != f.gen {
		return
	}
	f.settings = settings
	f.loaded = true
}

// Snapshot returns the cached settings plus loading/error state. The bool
// reports whether a row has been loaded at all.
func (f *SettingsFeed) Snapshot() (models.Settings, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loading {
		return f.settings, false, f.err
	}
	return f.settings, f.loaded, f.err
}

// Update patches the settings optimistically with rollback on failure.
func (f *SettingsFeed) Update(ctx context.Context, patch store.SettingsPatch) (models.Settings, error) {
	f.mu.Lock()
	prev := f.settings
	applySettingsPatch(&f.settings, patch)
	f.gen++
	f.mu.Unlock()

	updated, err := f.store.UpdateSettings(ctx, f.userID, patch)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	if err != nil {
		f.settings = prev
		return models.Settings{}, err
	}
	f.settings = updated
	f.loaded = true
	return updated, nil
}

// applySettingsPatch mirrors the store's merge rules for the optimistic copy.
func applySettingsPatch(s *models.Settings, p store.SettingsPatch) {
	if p.CompanyName != nil {
		s.CompanyName = *p.CompanyName
	}
	if p.CompanyEmail != nil {
		s.CompanyEmail = *p.CompanyEmail
	}
	if p.CompanyAddress != nil {
		s.CompanyAddress = *p.CompanyAddress
	}
	if p.CompanyVAT != nil {
		s.CompanyVAT = *p.CompanyVAT
	}
	if p.LogoURL != nil {
		s.LogoURL = *p.LogoURL
	}
	if p.PrimaryColor != nil {
		s.PrimaryColor = *p.PrimaryColor
	}
	if p.SecondaryColor != nil {
		s.SecondaryColor = *p.SecondaryColor
	}
	if p.CurrencySymbol != nil {
		s.CurrencySymbol = *p.CurrencySymbol
	}
	if p.DefaultTaxRate != nil {
		s.DefaultTaxRate = *p.DefaultTaxRate
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
}
