package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of an invoice. The only exposed
// transition is Pending -> Paid.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "Pending"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
)

// NumberPrefix prefixes every generated invoice number.
const NumberPrefix = "INV-"

// Invoice is a billing invoice owned by a user. It weakly references a
// Client by id and owns its line items exclusively.
type Invoice struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index:idx_invoices_user_number,unique" json:"user_id"`

	// Number is server-assigned: NumberPrefix plus a 4-digit zero-padded
	// suffix, monotonically increasing per user. Unique per user, not
	// globally: every user starts at INV-0001.
	Number string `gorm:"size:50;not null;index:idx_invoices_user_number,unique" json:"invoice_number"`

	ClientID uint `gorm:"index;not null" json:"client_id"`

	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	TaxRate float64       `gorm:"not null;default:0" json:"tax_rate"`
	Status  InvoiceStatus `gorm:"size:20;not null;default:'Pending'" json:"status"`
	Notes   string        `gorm:"type:text" json:"notes,omitempty"`

	Items []InvoiceLineItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"line_items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetUserID implements Ownable.
func (i *Invoice) GetUserID() uint { return i.UserID }

// IsPaid returns true once the invoice has been marked as paid.
func (i *Invoice) IsPaid() bool { return i.Status == InvoiceStatusPaid }

// InvoiceLineItem is one billed line. Its identity has no meaning outside
// its parent invoice; updates replace the whole set.
type InvoiceLineItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	InvoiceID   uint    `gorm:"index;not null" json:"invoice_id"`
	Description string  `gorm:"size:500" json:"description"`
	Quantity    float64 `gorm:"type:decimal(10,3);not null;default:0" json:"quantity"`
	Rate        float64 `gorm:"type:decimal(12,2);not null;default:0" json:"rate"`
}

// Amount is the line amount: quantity times rate.
func (item *InvoiceLineItem) Amount() float64 {
	return item.Quantity * item.Rate
}

// NextInvoiceNumber assigns the next invoice number for a user: the highest
// existing numeric suffix plus one, zero-padded to 4 digits. Call inside the
// same transaction as the insert so concurrent creates cannot collide.
func NextInvoiceNumber(tx *gorm.DB, userID uint) (string, error) {
	var numbers []string
	if err := tx.Model(&Invoice{}).Where("user_id = ?", userID).Pluck("number", &numbers).Error; err != nil {
		return "", err
	}
	highest := 0
	for _, n := range numbers {
		suffix := strings.TrimPrefix(n, NumberPrefix)
		if v, err := strconv.Atoi(suffix); err == nil && v > highest {
			highest = v
		}
	}
	return fmt.Sprintf("%s%04d", NumberPrefix, highest+1), nil
}
