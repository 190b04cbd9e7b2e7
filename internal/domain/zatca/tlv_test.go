package zatca_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
)

func samplePayload() zatca.QRPayload {
	return zatca.QRPayload{
		SellerName:   "Test Company",
		VATNumber:    "123456789012345",
		Timestamp:    "2024-01-01T10:00:00Z",
		TotalWithVAT: "100.00",
		VATAmount:    "13.04",
	}
}

func record(tag byte, v string) []byte {
	return append([]byte{tag, byte(len(v))}, v...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Encode
// ──────────────────────────────────────────────────────────────────────────────

func TestEncode_VectorConocido(t *testing.T) {
	var expected []byte
	expected = append(expected, record(1, "Test Company")...)
	expected = append(expected, record(2, "123456789012345")...)
	expected = append(expected, record(3, "2024-01-01T10:00:00Z")...)
	expected = append(expected, record(4, "100.00")...)
	expected = append(expected, record(5, "13.04")...)

	raw, err := samplePayload().Encode()
	require.NoError(t, err)
	assert.Equal(t, expected, raw, "los registros deben ir en orden 1..5 con longitud de un byte")

	b64, err := samplePayload().EncodeBase64()
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(expected), b64)
}

func TestEncodeDecode_IdaYVuelta(t *testing.T) {
	p := samplePayload()
	b64, err := p.EncodeBase64()
	require.NoError(t, err)

	got, err := zatca.DecodeBase64(b64)
	require.NoError(t, err)
	assert.Equal(t, p, got, "decodificar lo codificado devuelve el mismo payload")
}

func TestEncode_UTF8CuentaBytes(t *testing.T) {
	p := samplePayload()
	p.SellerName = "شركة الاختبار"
	raw, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte(len(p.SellerName)), raw[1], "la longitud es en bytes UTF-8, no en runas")

	got, err := zatca.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, p.SellerName, got.SellerName)
}

func TestEncode_CampoDemasiadoLargo(t *testing.T) {
	p := samplePayload()
	p.SellerName = strings.Repeat("a", 256)
	_, err := p.Encode()
	require.ErrorIs(t, err, zatca.ErrFieldTooLong)
	ve, ok := zatca.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "sellerName", ve.Field)

	p.SellerName = strings.Repeat("a", 255)
	_, err = p.Encode()
	assert.NoError(t, err, "255 bytes es el máximo permitido")
}

func TestEncode_CampoObligatorioVacio(t *testing.T) {
	p := samplePayload()
	p.VATAmount = ""
	_, err := p.Encode()
	assert.ErrorIs(t, err, zatca.ErrInvalidInvoice)
}

func TestEncode_TagsExtraOrdenados(t *testing.T) {
	p := samplePayload().WithExtra(8, "pk").WithExtra(6, "hash")
	raw, err := p.Encode()
	require.NoError(t, err)

	base, _ := samplePayload().Encode()
	tail := raw[len(base):]
	expected := append(record(6, "hash"), record(8, "pk")...)
	assert.Equal(t, expected, tail, "los tags extra se emiten en orden ascendente después del 5")

	_, err = samplePayload().WithExtra(zatca.TagVATNumber, "x").Encode()
	assert.Error(t, err, "los tags 1..5 no pueden ir en Extra")
}

func TestWithExtra_NoMutaOriginal(t *testing.T) {
	p := samplePayload().WithExtra(6, "a")
	q := p.WithExtra(7, "b")
	assert.Len(t, p.Extra, 1)
	assert.Len(t, q.Extra, 2)
}

// ──────────────────────────────────────────────────────────────────────────────
// Decode
// ──────────────────────────────────────────────────────────────────────────────

func TestDecode_LongitudExcedeBuffer(t *testing.T) {
	raw := []byte{1, 10, 'A', 'B', 'C'}
	_, err := zatca.Decode(raw)
	assert.ErrorIs(t, err, zatca.ErrTruncatedRecord)
}

func TestDecode_ByteSuelto(t *testing.T) {
	raw, _ := samplePayload().Encode()
	_, err := zatca.Decode(append(raw, 9))
	assert.ErrorIs(t, err, zatca.ErrTruncatedRecord, "un tag sin longitud es un registro truncado")
}

func TestDecode_TagDesconocidoSeConserva(t *testing.T) {
	raw, _ := samplePayload().Encode()
	raw = append(raw, record(42, "futuro")...)
	got, err := zatca.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "futuro", got.Extra[42])
	assert.Equal(t, "Test Company", got.SellerName)
}

func TestDecode_BufferVacio(t *testing.T) {
	got, err := zatca.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, zatca.QRPayload{}, got)
}

func TestDecodeBase64_Invalido(t *testing.T) {
	_, err := zatca.DecodeBase64("***")
	assert.Error(t, err)
}

func TestPayloadFromInvoice(t *testing.T) {
	inv := sampleInvoice()
	amounts, err := zatca.SplitTotal(inv.TotalAmountInclusiveOfTax, rate15)
	require.NoError(t, err)
	assert.Equal(t, samplePayload(), zatca.PayloadFromInvoice(inv, amounts))
}
