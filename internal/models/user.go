package models

import "time"

// SubscriptionTier gates resource-creation limits (see internal/tier).
type SubscriptionTier string

const (
	TierFree SubscriptionTier = "free"
	TierPro  SubscriptionTier = "pro"
)

// User is an account owner. Every Client, Invoice, and Settings row is
// scoped to exactly one user.
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string `gorm:"size:255;not null" json:"-"`
	Name      string `gorm:"size:255" json:"name"`
	Tier      SubscriptionTier `gorm:"size:20;not null;default:'free'" json:"tier"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
