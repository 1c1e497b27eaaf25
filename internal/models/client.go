package models

import "time"

// Client is a billable customer. Name and email are required; the id is
// immutable once assigned. Deleting a client cascades to its invoices.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Address   string    `gorm:"size:500" json:"address"`
	VATNumber string    `gorm:"size:50" json:"vat_number,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetUserID implements Ownable.
func (c *Client) GetUserID() uint { return c.UserID }
