// Package pdf renders invoices as PDF documents branded with the
// user's company settings.
package pdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/invoicify/invoicify/internal/models"
	"github.com/invoicify/invoicify/internal/services"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const dateLayout = "02/01/2006"

// Render produces the PDF bytes for an invoice. The client fills the
// bill-to block and the settings provide branding, currency and the
// issuer's details.
func Render(inv models.Invoice, client models.Client, settings models.Settings) ([]byte, error) {
	m := newDocument()

	primary := parseHexColor(settings.PrimaryColor, props.Color{Red: 79, Green: 70, Blue: 229})
	secondary := parseHexColor(settings.SecondaryColor, props.Color{Red: 107, Green: 114, Blue: 128})

	addHeader(m, inv, settings, primary, secondary)
	addParties(m, inv, client, settings, secondary)
	addItemsTable(m, inv, settings, primary, secondary)
	addTotals(m, inv, settings, primary)
	if inv.Notes != "" {
		addNotes(m, inv.Notes, secondary)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithRightMargin(15).
		WithTopMargin(15).
		Build()
	return maroto.New(cfg)
}

func addHeader(m core.Maroto, inv models.Invoice, settings models.Settings, primary, secondary props.Color) {
	company := settings.CompanyName
	if company == "" {
		company = "Invoice"
	}
	m.AddRow(12,
		text.NewCol(7, company, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Color: &primary,
		}),
		text.NewCol(5, inv.Number, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	due := "—"
	if inv.DueDate != nil {
		due = inv.DueDate.Format(dateLayout)
	}
	m.AddRow(6,
		text.NewCol(7, string(inv.Status), props.Text{Size: 9, Color: &secondary}),
		text.NewCol(5, fmt.Sprintf("Issued %s · Due %s", inv.IssueDate.Format(dateLayout), due), props.Text{
			Size:  9,
			Align: align.Right,
			Color: &secondary,
		}),
	)
	m.AddRows(line.NewRow(4))
}

func addParties(m core.Maroto, inv models.Invoice, client models.Client, settings models.Settings, secondary props.Color) {
	from := partyLines(settings.CompanyName, settings.CompanyEmail, settings.CompanyAddress, settings.CompanyVAT)
	to := partyLines(client.Name, client.Email, client.Address, client.VATNumber)

	m.AddRow(5,
		text.NewCol(6, "From", props.Text{Size: 8, Style: fontstyle.Bold, Color: &secondary}),
		text.NewCol(6, "Bill to", props.Text{Size: 8, Style: fontstyle.Bold, Color: &secondary}),
	)
	lines := len(from)
	if len(to) > lines {
		lines = len(to)
	}
	for i := 0; i < lines; i++ {
		var left, right string
		if i < len(from) {
			left = from[i]
		}
		if i < len(to) {
			right = to[i]
		}
		m.AddRow(5,
			text.NewCol(6, left, props.Text{Size: 9}),
			text.NewCol(6, right, props.Text{Size: 9}),
		)
	}
	m.AddRows(line.NewRow(6))
}

func partyLines(parts ...string) []string {
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

func addItemsTable(m core.Maroto, inv models.Invoice, settings models.Settings, primary, secondary props.Color) {
	header := props.Text{Size: 9, Style: fontstyle.Bold, Color: &primary}
	m.AddRow(7,
		text.NewCol(6, "Description", header),
		text.NewCol(2, "Qty", mergeAlign(header, align.Right)),
		text.NewCol(2, "Rate", mergeAlign(header, align.Right)),
		text.NewCol(2, "Amount", mergeAlign(header, align.Right)),
	)
	m.AddRows(line.NewRow(2))

	cell := props.Text{Size: 9}
	right := mergeAlign(cell, align.Right)
	for _, item := range inv.Items {
		m.AddRow(6,
			text.NewCol(6, item.Description, cell),
			text.NewCol(2, trimFloat(item.Quantity), right),
			text.NewCol(2, money(settings.CurrencySymbol, item.Rate), right),
			text.NewCol(2, money(settings.CurrencySymbol, item.Amount()), right),
		)
	}
	m.AddRows(line.NewRow(4))
}

func addTotals(m core.Maroto, inv models.Invoice, settings models.Settings, primary props.Color) {
	totals := services.InvoiceTotals(&inv)
	label := props.Text{Size: 9, Align: align.Right}
	value := props.Text{Size: 9, Align: align.Right}

	m.AddRow(5,
		col.New(8),
		text.NewCol(2, "Subtotal", label),
		text.NewCol(2, money(settings.CurrencySymbol, totals.Subtotal), value),
	)
	m.AddRow(5,
		col.New(8),
		text.NewCol(2, fmt.Sprintf("Tax (%s%%)", trimFloat(inv.TaxRate)), label),
		text.NewCol(2, money(settings.CurrencySymbol, totals.TaxAmount), value),
	)
	m.AddRow(7,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right, Color: &primary}),
		text.NewCol(2, money(settings.CurrencySymbol, totals.Total), props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right, Color: &primary}),
	)
}

func addNotes(m core.Maroto, notes string, secondary props.Color) {
	m.AddRows(line.NewRow(6))
	m.AddRow(5, text.NewCol(12, "Notes", props.Text{Size: 8, Style: fontstyle.Bold, Color: &secondary}))
	m.AddRow(10, text.NewCol(12, notes, props.Text{Size: 9}))
}

func money(symbol string, v float64) string {
	if symbol == "" {
		symbol = "$"
	}
	return fmt.Sprintf("%s%.2f", symbol, v)
}

// trimFloat drops trailing zeros so quantities read "2" not "2.00".
func trimFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// parseHexColor turns a "#RRGGBB" setting into a maroto color, falling
// back when the stored value is malformed.
func parseHexColor(hex string, fallback props.Color) props.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return fallback
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return props.Color{
		Red:   int(n >> 16 & 0xFF),
		Green: int(n >> 8 & 0xFF),
		Blue:  int(n & 0xFF),
	}
}

func mergeAlign(p props.Text, a align.Type) props.Text {
	p.Align = a
	return p
}
