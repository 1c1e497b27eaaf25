package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/invoicify/invoicify/internal/models"

	"gorm.io/gorm"
)

// ClientPatch lists exactly the fields an update may touch. Nil pointers
// leave the current value untouched; id and owner are never patchable.
type ClientPatch struct {
	Name      *string
	Email     *string
	Address   *string
	VATNumber *string
}

func (p ClientPatch) apply(c *models.Client) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.VATNumber != nil {
		c.VATNumber = *p.VATNumber
	}
}

// ListClients returns all of the user's clients, name-ordered.
func (s *Store) ListClients(ctx context.Context, userID uint) ([]models.Client, error) {
	if err := s.authed(userID); err != nil {
		return nil, err
	}
	var clients []models.Client
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name asc").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// GetClient loads one client. A row owned by another user yields
// ErrForbidden, not ErrNotFound, so ownership violations stay visible.
func (s *Store) GetClient(ctx context.Context, userID, id uint) (models.Client, error) {
	var c models.Client
	if err := s.authed(userID); err != nil {
		return c, err
	}
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return models.Client{}, notFoundOr(err)
	}
	if c.GetUserID() != userID {
		return models.Client{}, ErrForbidden
	}
	return c, nil
}

// ClientCount returns the user's total client count (tier gate input).
func (s *Store) ClientCount(ctx context.Context, userID uint) (int64, error) {
	if err := s.authed(userID); err != nil {
		return 0, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return count, nil
}

// CreateClient persists a new client. Name and email are required; the
// server assigns the id.
func (s *Store) CreateClient(ctx context.Context, userID uint, c models.Client) (models.Client, error) {
	if err := s.authed(userID); err != nil {
		return models.Client{}, err
	}
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
		return models.Client{}, fmt.Errorf("%w: client name and email are required", ErrInvalid)
	}
	c.ID = 0
	c.UserID = userID
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return models.Client{}, fmt.Errorf("create client: %w", err)
	}
	s.bus.Publish(TableClients, userID, OpInsert)
	return c, nil
}

// UpdateClient applies a patch to an owned client and returns the stored row.
func (s *Store) UpdateClient(ctx context.Context, userID, id uint, patch ClientPatch) (models.Client, error) {
	c, err := s.GetClient(ctx, userID, id)
	if err != nil {
		return models.Client{}, err
	}
	patch.apply(&c)
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
		return models.Client{}, fmt.Errorf("%w: client name and email are required", ErrInvalid)
	}
	if err := s.db.WithContext(ctx).Save(&c).Error; err != nil {
		return models.Client{}, fmt.Errorf("update client: %w", err)
	}
	s.bus.Publish(TableClients, userID, OpUpdate)
	return c, nil
}

// DeleteClient removes a client and cascades to every invoice referencing
// it, including their line items, in one transaction.
func (s *Store) DeleteClient(ctx context.Context, userID, id uint) error {
	if _, err := s.GetClient(ctx, userID, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoiceIDs []uint
		if err := tx.Model(&models.Invoice{}).
			Where("user_id = ? AND client_id = ?", userID, id).
			Pluck("id", &invoiceIDs).Error; err != nil {
			return err
		}
		if len(invoiceIDs) > 0 {
			if err := tx.Where("invoice_id IN ?", invoiceIDs).Delete(&models.InvoiceLineItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", invoiceIDs).Delete(&models.Invoice{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Client{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	s.bus.Publish(TableClients, userID, OpDelete)
	s.bus.Publish(TableInvoices, userID, OpDelete)
	return nil
}
