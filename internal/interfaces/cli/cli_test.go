package cli_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	"github.com/jhoicas/zatca-einvoice/internal/interfaces/cli"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

const (
	testUUID = "3cf5ee18-ee25-44ea-a444-2c37ba7f28be"
	testVAT  = "123456789012345"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) }
	cmd := cli.NewRootCmd(zerolog.Nop(), cli.WithClock(clock))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const invoiceJSON = `{
  "id": "INV-0001",
  "uuid": "` + testUUID + `",
  "document_type": "simplified",
  "issue_date": "2024-01-01",
  "issue_time": "10:00:00Z",
  "seller": {"name": "Test Company", "vat_number": "` + testVAT + `"},
  "total_amount_inclusive_of_tax": "100.00",
  "line_items": [{"id": "1", "name": "Producto", "quantity": "1", "unit_price": "86.96", "unit_of_measure": "PCE", "tax_category": "S"}]
}`

// ──────────────────────────────────────────────────────────────────────────────
// qr / amounts / hash
// ──────────────────────────────────────────────────────────────────────────────

func TestQR_EncodeDecode(t *testing.T) {
	encoded, err := run(t, "", "qr", "encode",
		"--seller", "Test Company", "--vat", testVAT,
		"--timestamp", "2024-01-01T10:00:00Z", "--total", "100.00", "--vat-amount", "13.04")
	require.NoError(t, err)
	encoded = strings.TrimSpace(encoded)

	out, err := run(t, "", "qr", "decode", encoded)
	require.NoError(t, err)
	var dec dto.QRDecodeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &dec))
	assert.Equal(t, "Test Company", dec.SellerName)
	assert.Equal(t, "2024-01-01T10:00:00Z", dec.Timestamp)
	assert.Equal(t, "100.00", dec.TotalWithVAT)
}

func TestQR_Errores(t *testing.T) {
	_, err := run(t, "", "qr", "encode", "--seller", strings.Repeat("x", 256), "--vat", testVAT,
		"--timestamp", "t", "--total", "1", "--vat-amount", "0")
	assert.ErrorIs(t, err, domzatca.ErrFieldTooLong)

	_, err = run(t, "", "qr", "decode", "AQU=")
	assert.ErrorIs(t, err, domzatca.ErrTruncatedRecord)

	_, err = run(t, "", "qr", "encode", "--seller", "x")
	assert.Error(t, err, "faltan flags obligatorios")
}

func TestAmounts(t *testing.T) {
	out, err := run(t, "", "amounts", "--total", "100")
	require.NoError(t, err)
	var res dto.AmountsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "86.96", res.Taxable)
	assert.Equal(t, "13.04", res.VAT)

	out, err = run(t, "", "amounts", "--total", "115", "--rate", "5")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "109.52", res.Taxable)
	assert.Equal(t, "5.00", res.Rate)

	_, err = run(t, "", "amounts", "--total", "0")
	assert.ErrorIs(t, err, domzatca.ErrInvalidAmount)

	_, err = run(t, "", "amounts", "--total", "10", "--rate", "-1")
	assert.ErrorIs(t, err, domzatca.ErrInvalidRate)
}

func TestHash(t *testing.T) {
	out, err := run(t, "", "hash", "--uuid", testUUID, "--date", "2024-01-01", "--time", "10:00:00Z")
	require.NoError(t, err)

	want, err := domzatca.ContentHash(&entity.Invoice{UUID: testUUID, IssueDate: "2024-01-01", IssueTime: "10:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(out))
}

// ──────────────────────────────────────────────────────────────────────────────
// build / sign / canonicalize / zip
// ──────────────────────────────────────────────────────────────────────────────

func TestBuildSignCanonicalize(t *testing.T) {
	dir := t.TempDir()
	unsigned := filepath.Join(dir, "invoice.xml")
	signed := filepath.Join(dir, "signed.xml")

	_, err := run(t, invoiceJSON, "build", "--out", unsigned)
	require.NoError(t, err)
	xmlDoc, err := os.ReadFile(unsigned)
	require.NoError(t, err)
	assert.Contains(t, string(xmlDoc), testUUID)
	assert.Contains(t, string(xmlDoc), domzatca.GenesisHash, "sin estado se encadena al génesis")

	_, err = run(t, "", "sign", "--in", unsigned, "--out", signed, "--self-signed-vat", testVAT)
	require.NoError(t, err)
	signedDoc, err := os.ReadFile(signed)
	require.NoError(t, err)
	assert.Contains(t, string(signedDoc), "SignatureValue")

	_, err = run(t, "", "sign", "--in", unsigned, "--self-signed-vat", "300000000000003")
	assert.ErrorIs(t, err, domzatca.ErrCertificateMismatch, "el VAT del certificado debe ser el del vendedor")

	_, err = run(t, "", "sign", "--in", unsigned)
	assert.Error(t, err, "sin credenciales")

	c14n, err := run(t, string(xmlDoc), "canonicalize")
	require.NoError(t, err)
	assert.NotContains(t, c14n, "<?xml", "la forma canónica no lleva declaración XML")

	zipPath := filepath.Join(dir, "inv.zip")
	_, err = run(t, "", "zip", "--in", signed, "--out", zipPath)
	require.NoError(t, err)
	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "signed.xml", zr.File[0].Name)
}

func TestBuild_Errores(t *testing.T) {
	_, err := run(t, `{"id": "INV-1"}`, "build")
	assert.Error(t, err, "faltan campos obligatorios")

	mismatch := strings.Replace(invoiceJSON, `"100.00"`, `"300.00"`, 1)
	_, err = run(t, mismatch, "build")
	assert.ErrorIs(t, err, domzatca.ErrLineTotalMismatch)

	_, err = run(t, "no es json", "build")
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// verify-chain
// ──────────────────────────────────────────────────────────────────────────────

func chainJSON(t *testing.T, breakSecond bool) string {
	t.Helper()
	first := map[string]any{
		"id": "INV-1", "uuid": testUUID, "document_type": "simplified",
		"issue_date": "2024-01-01", "issue_time": "10:00:00Z",
		"counter_value": 1, "previous_invoice_hash": domzatca.GenesisHash,
	}
	h, err := domzatca.ContentHash(&entity.Invoice{UUID: testUUID, IssueDate: "2024-01-01", IssueTime: "10:00:00Z"})
	require.NoError(t, err)
	if breakSecond {
		h = domzatca.GenesisHash
	}
	second := map[string]any{
		"id": "INV-2", "uuid": "9e0b1a52-6f2c-4a4e-9a3b-1c0d7e2f4a11", "document_type": "simplified",
		"issue_date": "2024-01-01", "issue_time": "10:05:00Z",
		"counter_value": 2, "previous_invoice_hash": h,
	}
	// Desordenadas a propósito: el comando ordena por contador.
	raw, err := json.Marshal([]any{second, first})
	require.NoError(t, err)
	return string(raw)
}

func TestVerifyChain(t *testing.T) {
	out, err := run(t, chainJSON(t, false), "verify-chain")
	require.NoError(t, err)
	assert.Contains(t, out, "2 facturas")

	_, err = run(t, chainJSON(t, true), "verify-chain")
	require.Error(t, err)
	assert.ErrorIs(t, err, domzatca.ErrChainBreak)
	assert.Contains(t, err.Error(), "invoices[1]")
}

// ──────────────────────────────────────────────────────────────────────────────
// cert / apikey-hash
// ──────────────────────────────────────────────────────────────────────────────

func TestCert(t *testing.T) {
	out, err := run(t, "", "cert", "--self-signed-vat", testVAT)
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, testVAT, info["vat_number"])
	assert.NotEmpty(t, info["digest"])
	assert.Equal(t, false, info["expired"])

	_, err = run(t, "", "cert")
	assert.Error(t, err, "sin credenciales")

	_, err = run(t, "", "cert", "--p12", filepath.Join(t.TempDir(), "no-existe.p12"))
	assert.Error(t, err)
}

func TestAPIKeyHash(t *testing.T) {
	out, err := run(t, "", "apikey-hash", "bootstrap-key")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "$2"), "hash bcrypt")

	_, err = run(t, "", "apikey-hash")
	assert.Error(t, err, "requiere la clave")
}

// ──────────────────────────────────────────────────────────────────────────────
// doctor
// ──────────────────────────────────────────────────────────────────────────────

type doctorOutput struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	HTTPStatus int    `json:"http_status"`
	Error      string `json:"error"`
}

func TestDoctor_PlataformaDisponible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	out, err := run(t, "", "doctor", "--base-url", srv.URL, "--timeout", "2s")
	require.NoError(t, err)
	var rep doctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.Reachable)
	assert.Equal(t, http.StatusUnauthorized, rep.HTTPStatus)
	assert.Equal(t, srv.URL, rep.URL)
}

func TestDoctor_PlataformaCaida(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	out, err := run(t, "", "doctor", "--base-url", srv.URL)
	require.Error(t, err)
	var rep doctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &rep), "el reporte se imprime también en fallo")
	assert.False(t, rep.Reachable)
	assert.Equal(t, http.StatusBadGateway, rep.HTTPStatus)
	assert.Contains(t, rep.Error, "HTTP 502")
}
