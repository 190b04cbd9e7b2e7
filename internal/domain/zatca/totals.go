package zatca

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// CategoryTotal subtotal por categoría de IVA (un cac:TaxSubtotal en el XML).
type CategoryTotal struct {
	Category            string
	Rate                decimal.Decimal
	Taxable             decimal.Decimal
	VAT                 decimal.Decimal
	ExemptionReasonCode string
	ExemptionReason     string
}

// LineTotal montos de una línea ya redondeados.
type LineTotal struct {
	Net     decimal.Decimal
	VAT     decimal.Decimal
	Rounded decimal.Decimal
	Rate    decimal.Decimal
}

// InvoiceTotals resultado de derivar y conciliar los montos de una factura.
type InvoiceTotals struct {
	Amounts
	Categories []CategoryTotal
	Lines      []LineTotal
}

type categoryAcc struct {
	rate   decimal.Decimal
	net    decimal.Decimal
	vat    decimal.Decimal
	reason entity.LineItem
}

// DeriveTotals calcula base e IVA del documento y los concilia con las líneas.
// Con una sola tasa los montos salen de SplitTotal; con tasas mixtas el IVA es la suma
// por categoría y la base es total - IVA. Una diferencia mayor a 0.01 es ErrLineTotalMismatch.
func DeriveTotals(inv *entity.Invoice, standardRate decimal.Decimal) (*InvoiceTotals, error) {
	if standardRate.IsNegative() {
		return nil, newValidationError(ErrInvalidRate, "vatRatePercent", ">= 0", standardRate.String())
	}
	if !inv.TotalAmountInclusiveOfTax.IsPositive() {
		return nil, newValidationError(ErrInvalidAmount, "totalAmountInclusiveOfTax", "> 0", inv.TotalAmountInclusiveOfTax.String())
	}

	if len(inv.LineItems) == 0 {
		return nil, newValidationError(ErrInvalidInvoice, "lineItems", "al menos una línea", "0")
	}

	accs := make(map[string]*categoryAcc)
	lines := make([]LineTotal, 0, len(inv.LineItems))
	lineNet, lineVAT := decimal.Zero, decimal.Zero
	for _, l := range inv.LineItems {
		rate := pkgzatca.CategoryRate(l.TaxCategory, standardRate)
		net := l.NetAmount()
		vat := net.Mul(rate).Div(hundred)
		lineNet = lineNet.Add(net)
		lineVAT = lineVAT.Add(vat)

		acc, ok := accs[l.TaxCategory]
		if !ok {
			acc = &categoryAcc{rate: rate, net: decimal.Zero, vat: decimal.Zero, reason: l}
			accs[l.TaxCategory] = acc
		}
		acc.net = acc.net.Add(net)
		acc.vat = acc.vat.Add(vat)

		rn, rv := net.Round(2), vat.Round(2)
		lines = append(lines, LineTotal{Net: rn, VAT: rv, Rounded: rn.Add(rv), Rate: rate})
	}

	singleRate := true
	var firstRate *decimal.Decimal
	for _, acc := range accs {
		if firstRate == nil {
			r := acc.rate
			firstRate = &r
		} else if !acc.rate.Equal(*firstRate) {
			singleRate = false
		}
	}

	var amounts Amounts
	if singleRate && firstRate != nil {
		a, err := SplitTotal(inv.TotalAmountInclusiveOfTax, *firstRate)
		if err != nil {
			return nil, err
		}
		amounts = a
	} else {
		vat := decimal.Zero
		for _, acc := range accs {
			vat = vat.Add(acc.vat.Round(2))
		}
		t := inv.TotalAmountInclusiveOfTax.Round(2)
		amounts = Amounts{Total: t, Taxable: t.Sub(vat), VAT: vat}
	}

	if !withinTolerance(lineVAT.Round(2), amounts.VAT) {
		return nil, newValidationError(ErrLineTotalMismatch, "lineItems.vat", FormatAmount(amounts.VAT), FormatAmount(lineVAT))
	}
	if !withinTolerance(lineNet.Round(2), amounts.Taxable) {
		return nil, newValidationError(ErrLineTotalMismatch, "lineItems.net", FormatAmount(amounts.Taxable), FormatAmount(lineNet))
	}

	totals := &InvoiceTotals{Amounts: amounts, Lines: lines}
	for _, cat := range pkgzatca.VATCategoryOrder {
		acc, ok := accs[cat]
		if !ok {
			continue
		}
		ct := CategoryTotal{
			Category:            cat,
			Rate:                acc.rate,
			Taxable:             acc.net.Round(2),
			VAT:                 acc.vat.Round(2),
			ExemptionReasonCode: acc.reason.ExemptionReasonCode,
			ExemptionReason:     acc.reason.ExemptionReason,
		}
		if len(accs) == 1 {
			ct.Taxable, ct.VAT = amounts.Taxable, amounts.VAT
		}
		totals.Categories = append(totals.Categories, ct)
	}
	return totals, nil
}
