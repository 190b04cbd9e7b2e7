package zatca_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
)

var rate15 = decimal.NewFromInt(15)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplitTotal_Cien(t *testing.T) {
	a, err := zatca.SplitTotal(dec("100"), rate15)
	require.NoError(t, err)
	assert.Equal(t, "86.96", zatca.FormatAmount(a.Taxable))
	assert.Equal(t, "13.04", zatca.FormatAmount(a.VAT))
	assert.Equal(t, "100.00", zatca.FormatAmount(a.Total))
}

func TestTaxableAndVAT_Casos(t *testing.T) {
	cases := []struct {
		total, rate  string
		taxable, vat string
	}{
		{"115", "15", "100.00", "15.00"},
		{"100", "0", "100.00", "0.00"},
		{"0.01", "15", "0.01", "0.00"},
		{"1", "15", "0.87", "0.13"},
		{"999.99", "5", "952.37", "47.62"},
	}
	for _, c := range cases {
		taxable, err := zatca.TaxableAmount(dec(c.total), dec(c.rate))
		require.NoError(t, err)
		vat, err := zatca.VATAmount(dec(c.total), dec(c.rate))
		require.NoError(t, err)
		assert.Equal(t, c.taxable, zatca.FormatAmount(taxable), "base de %s al %s%%", c.total, c.rate)
		assert.Equal(t, c.vat, zatca.FormatAmount(vat), "IVA de %s al %s%%", c.total, c.rate)
	}
}

// La suma base + IVA reconstruye el total redondeado para cualquier monto.
func TestSplitTotal_SumaExacta(t *testing.T) {
	for cents := int64(1); cents <= 5000; cents += 7 {
		total := decimal.New(cents, -2)
		for _, r := range []string{"0", "5", "15", "17.5"} {
			a, err := zatca.SplitTotal(total, dec(r))
			require.NoError(t, err)
			assert.True(t, a.Taxable.Add(a.VAT).Equal(total),
				"base + IVA debe ser igual al total (%s al %s%%)", total, r)
		}
	}
}

func TestSplitTotal_Errores(t *testing.T) {
	_, err := zatca.SplitTotal(decimal.Zero, rate15)
	assert.ErrorIs(t, err, zatca.ErrInvalidAmount, "total cero no es válido")

	_, err = zatca.SplitTotal(dec("-5"), rate15)
	assert.ErrorIs(t, err, zatca.ErrInvalidAmount, "total negativo no es válido")

	_, err = zatca.TaxableAmount(dec("100"), dec("-1"))
	assert.ErrorIs(t, err, zatca.ErrInvalidRate)

	_, err = zatca.VATAmount(dec("100"), dec("-1"))
	assert.ErrorIs(t, err, zatca.ErrInvalidRate)
}

func TestAmountFromFloat_NoFinito(t *testing.T) {
	_, err := zatca.AmountFromFloat(math.NaN())
	assert.ErrorIs(t, err, zatca.ErrInvalidAmount)
	_, err = zatca.AmountFromFloat(math.Inf(1))
	assert.ErrorIs(t, err, zatca.ErrInvalidAmount)

	d, err := zatca.AmountFromFloat(100.5)
	require.NoError(t, err)
	assert.Equal(t, "100.50", zatca.FormatAmount(d))
}

func TestParseAmount(t *testing.T) {
	d, err := zatca.ParseAmount(" 13.04 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec("13.04")))

	_, err = zatca.ParseAmount("NaN")
	assert.ErrorIs(t, err, zatca.ErrInvalidAmount)
	_, err = zatca.ParseAmount("12,5")
	assert.ErrorIs(t, err, zatca.ErrInvalidAmount)
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "15.00", zatca.FormatRate(rate15))
	assert.Equal(t, "0.00", zatca.FormatRate(decimal.Zero))
}
