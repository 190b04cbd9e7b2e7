package entity

import "github.com/shopspring/decimal"

// LineItem representa una línea de la factura. El orden dentro de Invoice.LineItems es significativo.
type LineItem struct {
	ID            string
	Name          string
	Quantity      decimal.Decimal // > 0
	UnitPrice     decimal.Decimal // >= 0, sin IVA
	UnitOfMeasure string          // UN/ECE Rec 20 (PCE, HUR, ...)
	TaxCategory   string          // S, Z, E, O
	Currency      string          // Vacío = moneda de la factura

	// Motivo de exención para categorías Z, E y O.
	ExemptionReasonCode string
	ExemptionReason     string
}

// NetAmount importe sin IVA sin redondear (unitPrice × quantity).
func (l LineItem) NetAmount() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}
