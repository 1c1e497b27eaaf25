package services

import (
	"github.com/invoicify/invoicify/internal/models"

	"gorm.io/gorm"
)

// Totals is the computed money block of an invoice. Values keep full
// floating precision; formatting to 2 decimals happens at display time.
type Totals struct {
	Subtotal  float64 `json:"subtotal"`
	TaxAmount float64 `json:"tax_amount"`
	Total     float64 `json:"total"`
}

// ComputeTotals computes subtotal, tax amount, and total from line items
// and a tax-rate percentage. Order-independent; an empty item list yields
// all zeros. No intermediate rounding.
func ComputeTotals(items []models.InvoiceLineItem, taxRate float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Amount()
	}
	tax := subtotal * (taxRate / 100)
	return Totals{Subtotal: subtotal, TaxAmount: tax, Total: subtotal + tax}
}

// InvoiceTotals computes the totals of one invoice from its own items and
// tax rate.
func InvoiceTotals(inv *models.Invoice) Totals {
	if inv == nil {
		return Totals{}
	}
	return ComputeTotals(inv.Items, inv.TaxRate)
}

// InvoiceService encapsulates invoice-related aggregate queries.
type InvoiceService struct {
	db *gorm.DB
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// ClientRevenue returns a client's lifetime revenue (total across all
// invoices regardless of status) and paid revenue (status=Paid only).
func (s *InvoiceService) ClientRevenue(userID, clientID uint) (lifetime, paid float64, err error) {
	var invoices []models.Invoice
	err = s.db.Where("user_id = ? AND client_id = ?", userID, clientID).
		Preload("Items").
		Find(&invoices).Error
	if err != nil {
		return 0, 0, err
	}
	for _, inv := range invoices {
		total := InvoiceTotals(&inv).Total
		lifetime += total
		if inv.IsPaid() {
			paid += total
		}
	}
	return lifetime, paid, nil
}

// Revenue returns the user's outstanding (pending) and collected (paid)
// revenue across all invoices, for the dashboard.
func (s *InvoiceService) Revenue(userID uint) (pending, paid float64, err error) {
	var invoices []models.Invoice
	err = s.db.Where("user_id = ?", userID).
		Preload("Items").
		Find(&invoices).Error
	if err != nil {
		return 0, 0, err
	}
	for _, inv := range invoices {
		total := InvoiceTotals(&inv).Total
		if inv.IsPaid() {
			paid += total
		} else {
			pending += total
		}
	}
	return pending, paid, nil
}
