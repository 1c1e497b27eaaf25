// Package validation implements the pre-submit checks that are resolved
// locally and never reach the store.
package validation

import "strings"

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

// LineItemInput is the subset of a line item the form validator needs.
type LineItemInput struct {
	Description string
	Quantity    float64
	Rate        float64
}

// Populated reports whether the line carries any user input at all.
// Blank placeholder rows do not count toward the one-line-item minimum.
func (l LineItemInput) Populated() bool {
	return strings.TrimSpace(l.Description) != "" || l.Quantity != 0 || l.Rate != 0
}

// InvoiceForm checks the invoice submit rules: a client must be selected,
// a due date set, and at least one populated line item present. Quantity
// and rate positivity is checked here only; the store accepts any values.
func InvoiceForm(clientID uint, dueDate string, items []LineItemInput, v Violations) {
	if clientID == 0 {
		v["client_id"] = "client_required"
	}
	Required("due_date", dueDate, v)
	populated := 0
	for _, it := range items {
		if !it.Populated() {
			continue
		}
		populated++
		if it.Quantity < 0 {
			v["quantity"] = "must_not_be_negative"
		}
		if it.Rate < 0 {
			v["rate"] = "must_not_be_negative"
		}
	}
	if populated == 0 {
		v["line_items"] = "line_items_required"
	}
}
