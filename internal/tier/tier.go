// Package tier gates creation intents against subscription-tier limits.
// The gate is consulted before any remote write: on violation the creation
// is rejected outright and no partial state exists anywhere.
package tier

import (
	"errors"
	"fmt"
	"time"

	"github.com/invoicify/invoicify/internal/models"
)

// ErrLimitReached is the sentinel matched by errors.Is for any tier-limit
// rejection; the concrete error is always a *LimitError.
var ErrLimitReached = errors.New("tier limit reached")

// LimitError names which limit was hit so callers can surface a message
// distinct from generic failures.
type LimitError struct {
	Resource string // "clients" or "invoices"
	Limit    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("free tier limit reached: maximum %d %s", e.Limit, e.Resource)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitReached }

// Limits are the free-tier caps. Pro performs no check at all.
type Limits struct {
	MaxClients          int
	MaxInvoicesPerMonth int
}

// DefaultLimits mirror the product defaults: 3 clients, 10 invoices per
// calendar month.
var DefaultLimits = Limits{MaxClients: 3, MaxInvoicesPerMonth: 10}

// Gate decides whether a creation intent is permitted.
type Gate struct {
	limits Limits
}

func NewGate(limits Limits) *Gate { return &Gate{limits: limits} }

// CanCreateClient checks the total client count against the tier cap.
func (g *Gate) CanCreateClient(t models.SubscriptionTier, count int64) error {
	if t == models.TierPro {
		return nil
	}
	if count >= int64(g.limits.MaxClients) {
		return &LimitError{Resource: "clients", Limit: g.limits.MaxClients}
	}
	return nil
}

// CanCreateInvoice checks the current-calendar-month invoice count against
// the tier cap.
func (g *Gate) CanCreateInvoice(t models.SubscriptionTier, monthCount int64) error {
	if t == models.TierPro {
		return nil
	}
	if monthCount >= int64(g.limits.MaxInvoicesPerMonth) {
		return &LimitError{Resource: "invoices", Limit: g.limits.MaxInvoicesPerMonth}
	}
	return nil
}

// StartOfMonth returns the local wall-clock month boundary for now: start
// of the first day of the month. An invoice created at 23:59:59 on the last
// day of a month counts against that month, not the next.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
