// Package pdf implementa la representación gráfica de la factura electrónica ZATCA.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Vendedor + VAT       │  Tipo, N° Factura, Fecha     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  VENDEDOR: Dirección                                         │
//	│  COMPRADOR: Nombre + VAT/CRN (solo si existe)                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | P.Unit | IVA% | IVA | Neto      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Base imponible / IVA / TOTAL CON IVA               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER ZATCA: QR (TLV) + UUID + ICV + hash + estado         │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	appbilling "github.com/jhoicas/zatca-einvoice/internal/application/billing"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

var _ appbilling.InvoicePDFGenerator = (*MarotoPDFGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 108, Blue: 53}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa billing.InvoicePDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct {
	vatRate decimal.Decimal
}

// NewMarotoPDFGenerator construye el generador. vatRate es la tasa estándar (nil = 15).
func NewMarotoPDFGenerator(vatRate *decimal.Decimal) *MarotoPDFGenerator {
	return &MarotoPDFGenerator{vatRate: pkgzatca.StandardVATRate(vatRate)}
}

// GenerateInvoicePDF genera el PDF y devuelve sus bytes.
func (g *MarotoPDFGenerator) GenerateInvoicePDF(_ context.Context, rec *entity.InvoiceRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("pdf: factura nula")
	}
	inv := &rec.Invoice
	totals, err := domzatca.DeriveTotals(inv, g.vatRate)
	if err != nil {
		return nil, fmt.Errorf("pdf: derivar totales: %w", err)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(documentTitle(inv), true).
		WithAuthor(inv.Seller.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(sellerRow(inv.Seller))
	if inv.Buyer != nil {
		m.AddRows(buyerRow(*inv.Buyer))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(inv.LineItems, totals.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(rec))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(zatcaFooterRows(rec)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func documentTitle(inv *entity.Invoice) string {
	if inv.IsStandard() {
		return "Tax Invoice"
	}
	return "Simplified Tax Invoice"
}

// headerRow: vendedor + VAT (izq) y tipo, número y fecha (der).
func headerRow(inv *entity.Invoice) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(inv.Seller.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("VAT: "+inv.Seller.VATNumber, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(strings.ToUpper(documentTitle(inv)), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(inv.ID, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Issue: "+inv.IssueDate+" "+inv.IssueTime, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func sellerRow(p entity.Party) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("SELLER", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(addressLine(p.Address), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func buyerRow(p entity.Party) core.Row {
	ids := "VAT: " + nonEmpty(p.VATNumber, "—")
	if p.CRN != "" {
		ids += "   |   CRN: " + p.CRN
	}
	return row.New(18).Add(
		col.New(12).Add(
			text.New("BUYER", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(p.Name, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(ids, props.Text{Size: 8, Top: 11, Color: colorGray}),
			text.New(addressLine(p.Address), props.Text{Size: 8, Top: 15, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Qty", 1, align.Center),
		h("Description", 4, align.Left),
		h("Unit price", 2, align.Right),
		h("VAT %", 1, align.Center),
		h("VAT", 2, align.Right),
		h("Net", 2, align.Right),
	)
}

func tableDetailRows(items []entity.LineItem, lines []domzatca.LineTotal) []core.Row {
	result := make([]core.Row, 0, len(items))
	for i, it := range items {
		var lt domzatca.LineTotal
		if i < len(lines) {
			lt = lines[i]
		}
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(it.Quantity.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(4).Add(text.New(it.Name, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(formatMoney(it.UnitPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(domzatca.FormatRate(lt.Rate)+" "+it.TaxCategory, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(formatMoney(lt.VAT), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(formatMoney(lt.Net), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func totalsRow(rec *entity.InvoiceRecord) core.Row {
	label := func(s string, top float64, grand bool) core.Component {
		p := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top}
		if grand {
			p.Size, p.Color = 10, colorPrimary
		}
		return text.New(s, p)
	}
	value := func(s string, top float64, grand bool) core.Component {
		p := props.Text{Size: 9, Align: align.Right, Right: 1, Top: top}
		if grand {
			p.Style, p.Size, p.Color = fontstyle.Bold, 10, colorPrimary
		}
		return text.New(s, p)
	}
	cur := " " + rec.Currency

	return row.New(20).Add(
		col.New(4),
		col.New(4).Add(
			label("Total (excluding VAT):", 1, false),
			label("Total VAT:", 7, false),
			label("TOTAL AMOUNT DUE:", 13, true),
		),
		col.New(4).Add(
			value(formatMoney(rec.TaxableAmount)+cur, 1, false),
			value(formatMoney(rec.VATAmount)+cur, 7, false),
			value(formatMoney(rec.TotalAmount)+cur, 13, true),
		),
	)
}

// zatcaFooterRows: QR TLV + identificadores de la cadena + estado ante ZATCA.
func zatcaFooterRows(rec *entity.InvoiceRecord) []core.Row {
	info := []string{
		"UUID: " + rec.UUID,
		fmt.Sprintf("ICV: %d", rec.Counter),
		"Invoice hash: " + rec.InvoiceHash,
		"Status: " + rec.Status,
	}
	if rec.ClearedUUID != "" {
		info = append(info, "Cleared UUID: "+rec.ClearedUUID)
	}

	details := make([]core.Component, 0, len(info))
	for i, s := range info {
		details = append(details, text.New(s, props.Text{Size: 7, Top: float64(4 + i*5), Left: 3, Color: colorGray}))
	}
	return []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("ZATCA E-INVOICE", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
		row.New(45).Add(
			col.New(4).Add(code.NewQr(rec.QRData, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(details...),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func addressLine(a entity.Address) string {
	parts := make([]string, 0, 5)
	for _, s := range []string{a.BuildingNumber, a.Street, a.District, a.City, a.PostalCode} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, ", ")
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney formatea con 2 decimales y separador de miles: 1234567.5 → "1,234,567.50".
func formatMoney(d decimal.Decimal) string {
	s := domzatca.FormatAmount(d)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	if n <= 3 {
		return sign + s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	return sign + string(buf) + "." + frac
}
