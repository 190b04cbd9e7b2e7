package zatca

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// MinorUnit tolerancia de conciliación: una unidad monetaria menor.
	MinorUnit = decimal.New(1, -2)
)

// Amounts montos derivados del total con IVA incluido.
type Amounts struct {
	Total   decimal.Decimal
	Taxable decimal.Decimal
	VAT     decimal.Decimal
}

// TaxableAmount = total / (1 + rate/100), redondeado a 2 decimales (half-up).
func TaxableAmount(total, ratePercent decimal.Decimal) (decimal.Decimal, error) {
	if err := checkInputs(total, ratePercent); err != nil {
		return decimal.Zero, err
	}
	divisor := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	// DivRound redondea half-up (alejándose de cero) con la precisión pedida.
	return total.DivRound(divisor, 2), nil
}

// VATAmount = total - TaxableAmount(total, rate). Se deriva por resta para que
// taxable + vat == total exacto a 2 decimales.
func VATAmount(total, ratePercent decimal.Decimal) (decimal.Decimal, error) {
	taxable, err := TaxableAmount(total, ratePercent)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2).Sub(taxable), nil
}

// SplitTotal devuelve base e IVA de una sola vez.
func SplitTotal(total, ratePercent decimal.Decimal) (Amounts, error) {
	taxable, err := TaxableAmount(total, ratePercent)
	if err != nil {
		return Amounts{}, err
	}
	t := total.Round(2)
	return Amounts{Total: t, Taxable: taxable, VAT: t.Sub(taxable)}, nil
}

func checkInputs(total, ratePercent decimal.Decimal) error {
	if !total.IsPositive() {
		return newValidationError(ErrInvalidAmount, "total", "> 0", total.String())
	}
	if ratePercent.IsNegative() {
		return newValidationError(ErrInvalidRate, "vatRatePercent", ">= 0", ratePercent.String())
	}
	return nil
}

// AmountFromFloat convierte un float64 rechazando NaN e infinitos.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, newValidationError(ErrInvalidAmount, "amount", "finite", "non-finite")
	}
	return decimal.NewFromFloat(f), nil
}

// ParseAmount convierte un string decimal ("100.00"). Rechaza "NaN", "Inf" y texto mal formado.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, newValidationError(ErrInvalidAmount, "amount", "decimal", s)
	}
	return d, nil
}

// FormatAmount formatea un monto con 2 decimales fijos, sin separador de miles.
func FormatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// FormatRate formatea un porcentaje con 2 decimales (15.00).
func FormatRate(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// withinTolerance indica si |a-b| <= MinorUnit.
func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MinorUnit)
}
