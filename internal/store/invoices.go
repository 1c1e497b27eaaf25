package store

import (
	"context"
	"fmt"
	"time"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/tier"

	"gorm.io/gorm"
)

// InvoiceDraft is the client-supplied part of a new invoice. The server
// assigns id, number, and owner; status defaults to Pending.
type InvoiceDraft struct {
	ClientID  uint
	IssueDate time.Time
	DueDate   *time.Time
	TaxRate   float64
	Notes     string
	Items     []models.InvoiceLineItem
}

// InvoicePatch lists exactly the fields an update may touch. Status is
// deliberately absent: the only exposed transition is MarkInvoicePaid.
// A non-nil Items slice replaces the whole line-item set.
type InvoicePatch struct {
	ClientID     *uint
	IssueDate    *time.Time
	DueDate      *time.Time
	ClearDueDate bool
	TaxRate      *float64
	Notes        *string
	Items        []models.InvoiceLineItem
}

func (p InvoicePatch) apply(inv *models.Invoice) {
	if p.ClientID != nil {
		inv.ClientID = *p.ClientID
	}
	if p.IssueDate != nil {
		inv.IssueDate = *p.IssueDate
	}
	if p.ClearDueDate {
		inv.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		inv.DueDate = &d
	}
	if p.TaxRate != nil {
		inv.TaxRate = *p.TaxRate
	}
	if p.Notes != nil {
		inv.Notes = *p.Notes
	}
}

// ListInvoicesPage returns one page of the user's invoices, newest first,
// joined with their line items, plus the total count for page math.
func (s *Store) ListInvoicesPage(ctx context.Context, userID uint, page, pageSize int) ([]models.Invoice, int64, error) {
	if err := s.authed(userID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	var total int64
	if err := q.Model(&models.Invoice{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	var invoices []models.Invoice
	if err := q.Preload("Items").
		Order("created_at desc, id desc").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, total, nil
}

// GetInvoice loads one invoice with its line items. Rows owned by another
// user yield ErrForbidden.
func (s *Store) GetInvoice(ctx context.Context, userID, id uint) (models.Invoice, error) {
	var inv models.Invoice
	if err := s.authed(userID); err != nil {
		return inv, err
	}
	if err := s.db.WithContext(ctx).Preload("Items").First(&inv, id).Error; err != nil {
		return models.Invoice{}, notFoundOr(err)
	}
	if inv.GetUserID() != userID {
		return models.Invoice{}, ErrForbidden
	}
	return inv, nil
}

// InvoicesByClient returns all of one client's invoices, newest first.
func (s *Store) InvoicesByClient(ctx context.Context, userID, clientID uint) ([]models.Invoice, error) {
	if err := s.authed(userID); err != nil {
		return nil, err
	}
	var invoices []models.Invoice
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND client_id = ?", userID, clientID).
		Preload("Items").
		Order("created_at desc, id desc").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("list client invoices: %w", err)
	}
	return invoices, nil
}

// InvoiceCountThisMonth counts the user's invoices created since the local
// start of the current calendar month (tier gate input).
func (s *Store) InvoiceCountThisMonth(ctx context.Context, userID uint, now time.Time) (int64, error) {
	if err := s.authed(userID); err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("user_id = ? AND created_at >= ?", userID, tier.StartOfMonth(now)).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count invoices this month: %w", err)
	}
	return count, nil
}

// CreateInvoice persists a draft. The invoice number is assigned inside the
// insert transaction so sequential creates yield gapless suffixes.
func (s *Store) CreateInvoice(ctx context.Context, userID uint, draft InvoiceDraft) (models.Invoice, error) {
	if err := s.authed(userID); err != nil {
		return models.Invoice{}, err
	}
	if draft.ClientID == 0 {
		return models.Invoice{}, fmt.Errorf("%w: invoice requires a client", ErrInvalid)
	}
	inv := models.Invoice{
		UserID:    userID,
		ClientID:  draft.ClientID,
		IssueDate: draft.IssueDate,
		DueDate:   draft.DueDate,
		TaxRate:   draft.TaxRate,
		Notes:     draft.Notes,
		Status:    models.InvoiceStatusPending,
		Items:     draft.Items,
	}
	for i := range inv.Items {
		inv.Items[i].ID = 0
		inv.Items[i].InvoiceID = 0
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := models.NextInvoiceNumber(tx, userID)
		if err != nil {
			return err
		}
		inv.Number = number
		return tx.Create(&inv).Error
	})
	if err != nil {
		return models.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	s.bus.Publish(TableInvoices, userID, OpInsert)
	return inv, nil
}

// UpdateInvoice applies a patch to an owned invoice; a non-nil item set
// replaces the existing line items wholesale.
func (s *Store) UpdateInvoice(ctx context.Context, userID, id uint, patch InvoicePatch) (models.Invoice, error) {
	inv, err := s.GetInvoice(ctx, userID, id)
	if err != nil {
		return models.Invoice{}, err
	}
	patch.apply(&inv)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if patch.Items != nil {
			if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceLineItem{}).Error; err != nil {
				return err
			}
			items := make([]models.InvoiceLineItem, len(patch.Items))
			copy(items, patch.Items)
			for i := range items {
				items[i].ID = 0
				items[i].InvoiceID = id
			}
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return err
				}
			}
			inv.Items = items
		}
		return tx.Omit("Items").Save(&inv).Error
	})
	if err != nil {
		return models.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	s.bus.Publish(TableInvoices, userID, OpUpdate)
	return s.GetInvoice(ctx, userID, id)
}

// MarkInvoicePaid sets status to Paid and touches nothing else.
func (s *Store) MarkInvoicePaid(ctx context.Context, userID, id uint) (models.Invoice, error) {
	inv, err := s.GetInvoice(ctx, userID, id)
	if err != nil {
		return models.Invoice{}, err
	}
	if !inv.IsPaid() {
		if err := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).
			Update("status", models.InvoiceStatusPaid).Error; err != nil {
			return models.Invoice{}, fmt.Errorf("mark invoice paid: %w", err)
		}
		inv.Status = models.InvoiceStatusPaid
		s.bus.Publish(TableInvoices, userID, OpUpdate)
	}
	return inv, nil
}

// DeleteInvoice removes an invoice and its line items.
func (s *Store) DeleteInvoice(ctx context.Context, userID, id uint) error {
	if _, err := s.GetInvoice(ctx, userID, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceLineItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Invoice{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	s.bus.Publish(TableInvoices, userID, OpDelete)
	return nil
}
