package models

import "time"

// Settings holds per-user branding, tax, and company identity. Exactly one
// row per user, created alongside account provisioning; never deleted.
type Settings struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	CompanyName    string `gorm:"size:255" json:"company_name"`
	CompanyEmail   string `gorm:"size:255" json:"company_email"`
	CompanyAddress string `gorm:"size:500" json:"company_address"`
	CompanyVAT     string `gorm:"size:50" json:"company_vat,omitempty"`

	LogoURL        string `gorm:"size:500" json:"logo_url,omitempty"`
	PrimaryColor   string `gorm:"size:7;default:'#4F46E5'" json:"primary_color"`
	SecondaryColor string `gorm:"size:7;default:'#6B7280'" json:"secondary_color"`

	CurrencySymbol string  `gorm:"size:8;default:'$'" json:"currency_symbol"`
	DefaultTaxRate float64 `gorm:"default:20" json:"default_tax_rate"`
	Language       string  `gorm:"size:8;default:'en'" json:"language"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetUserID implements Ownable.
func (s *Settings) GetUserID() uint { return s.UserID }

// Ownable is implemented by every row type that belongs to a user; the
// store uses it for ownership checks on loaded rows.
type Ownable interface {
	GetUserID() uint
}
