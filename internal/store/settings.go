package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoicify/invoicify/internal/models"
)

// SettingsPatch lists exactly the fields a settings update may touch.
type SettingsPatch struct {
	CompanyName    *string
	CompanyEmail   *string
	CompanyAddress *string
	CompanyVAT     *string
	LogoURL        *string
	PrimaryColor   *string
	SecondaryColor *string
	CurrencySymbol *string
	DefaultTaxRate *float64
	Language       *string
}

func (p SettingsPatch) apply(s *models.Settings) {
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

// GetSettings loads the user's settings row.
func (s *Store) GetSettings(ctx context.Context, userID uint) (models.Settings, error) {
	var set models.Settings
	if err := s.authed(userID); err != nil {
		return set, err
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&set).Error; err != nil {
		return models.Settings{}, notFoundOr(err)
	}
	return set, nil
}

// EnsureSettings creates the user's settings row with the given defaults
// if it does not exist yet. Called during account provisioning.
func (s *Store) EnsureSettings(ctx context.Context, userID uint, defaults models.Settings) (models.Settings, error) {
	if err := s.authed(userID); err != nil {
		return models.Settings{}, err
	}
	existing, err := s.GetSettings(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Settings{}, err
	}
	defaults.ID = 0
	defaults.UserID = userID
	if err := s.db.WithContext(ctx).Create(&defaults).Error; err != nil {
		// concurrent provisioning may have won the race on the unique index
		if again, gerr := s.GetSettings(ctx, userID); gerr == nil {
			return again, nil
		}
		return models.Settings{}, fmt.Errorf("create settings: %w", err)
	}
	s.bus.Publish(TableSettings, userID, OpInsert)
	return defaults, nil
}

// UpdateSettings applies a patch to the user's settings row. Settings are
// never deleted by this system.
func (s *Store) UpdateSettings(ctx context.Context, userID uint, patch SettingsPatch) (models.Settings, error) {
	set, err := s.GetSettings(ctx, userID)
	if err != nil {
		return models.Settings{}, err
	}
	patch.apply(&set)
	if err := s.db.WithContext(ctx).Save(&set).Error; err != nil {
		return models.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	s.bus.Publish(TableSettings, userID, OpUpdate)
	return set, nil
}

// AllModels returns every gorm model the store persists, for migration.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.Client{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.Settings{},
	}
}
