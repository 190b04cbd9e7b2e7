package signer_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca/signer"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const testVAT = "123456789012345"

var fixedClock = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC) }

// newTestCert genera una llave P-256 y un certificado autofirmado con el VAT en
// organizationIdentifier (OID 2.5.4.97), como los CSID de ZATCA.
func newTestCert(t *testing.T, vat string) (*ecdsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject: pkix.Name{
			CommonName: "EGS-1",
			ExtraNames: []pkix.AttributeTypeAndValue{
				{Type: asn1.ObjectIdentifier{2, 5, 4, 97}, Value: vat},
			},
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

func newKeySigner(t *testing.T, vat string) *signer.KeySigner {
	t.Helper()
	key, cert := newTestCert(t, vat)
	ks, err := signer.NewKeySigner(key, cert)
	require.NoError(t, err)
	return ks
}

// unsignedDoc construye una factura simplificada de 100 SAR con el builder real.
func unsignedDoc(t *testing.T) []byte {
	t.Helper()
	inv := &entity.Invoice{
		ID:                        "INV-0001",
		UUID:                      "3cf5ee18-ee25-44ea-a444-2c37ba7f28be",
		DocumentType:              entity.DocumentSimplified,
		IssueDate:                 "2024-01-01",
		IssueTime:                 "10:00:00Z",
		Seller:                    entity.Party{Name: "Test Company", VATNumber: testVAT},
		Currency:                  "SAR",
		TotalAmountInclusiveOfTax: decimal.RequireFromString("100.00"),
		LineItems: []entity.LineItem{{
			ID: "1", Name: "Producto", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.RequireFromString("86.96"), UnitOfMeasure: "PCE", TaxCategory: "S",
		}},
		PreviousInvoiceHash: domzatca.GenesisHash,
		CounterValue:        1,
	}
	res, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: inv})
	require.NoError(t, err)
	return res.XML
}

// ──────────────────────────────────────────────────────────────────────────────
// Canonicalize
// ──────────────────────────────────────────────────────────────────────────────

func TestCanonicalize_Idempotente(t *testing.T) {
	once, err := signer.Canonicalize(unsignedDoc(t))
	require.NoError(t, err)
	twice, err := signer.Canonicalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice, "canonicalizar dos veces no cambia los bytes")
}

func TestCanonicalize_IgnoraFormato(t *testing.T) {
	a := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<r xmlns="urn:x">
  <b z="2" a="1"/>
</r>`)
	b := []byte(`<r xmlns="urn:x"><b a="1" z="2"></b></r>`)

	ca, err := signer.Canonicalize(a)
	require.NoError(t, err)
	cb, err := signer.Canonicalize(b)
	require.NoError(t, err)
	assert.Equal(t, string(cb), string(ca))
	assert.NotContains(t, string(ca), "<?xml")
}

func TestCanonicalize_XMLInvalido(t *testing.T) {
	_, err := signer.Canonicalize([]byte("<a><b></a>"))
	assert.Error(t, err)
}

func TestCanonicalize_VectorC14N11(t *testing.T) {
	in := `<?xml version="1.0" encoding="UTF-8"?>
<a xmlns:p="urn:p" xmlns="urn:d">
  <b z="1" p:y="2" a="3"/>
  <p:c xmlns:p="urn:p">x &amp; y</p:c>
</a>`
	out, err := signer.Canonicalize([]byte(in))
	require.NoError(t, err)
	assert.Equal(t,
		`<a xmlns="urn:d" xmlns:p="urn:p"><b a="3" z="1" p:y="2"></b><p:c>x &amp; y</p:c></a>`,
		string(out))
}

func TestCanonicalize_NamespacesSoloEnLaRaiz(t *testing.T) {
	in := `<Invoice xmlns="urn:inv" xmlns:cbc="urn:cbc" xmlns:cac="urn:cac">` +
		`<cac:Party><cbc:ID schemeID="CRN">1</cbc:ID></cac:Party></Invoice>`
	out, err := signer.Canonicalize([]byte(in))
	require.NoError(t, err)
	assert.Equal(t,
		`<Invoice xmlns="urn:inv" xmlns:cac="urn:cac" xmlns:cbc="urn:cbc">`+
			`<cac:Party><cbc:ID schemeID="CRN">1</cbc:ID></cac:Party></Invoice>`,
		string(out))
	assert.Equal(t, 1, strings.Count(string(out), "xmlns:cbc="))
}

// ──────────────────────────────────────────────────────────────────────────────
// Prepare / EmbedSignature
// ──────────────────────────────────────────────────────────────────────────────

func TestPrepare_DigestExcluyeQRYExtensiones(t *testing.T) {
	doc := unsignedDoc(t)
	env, err := signer.Prepare(doc)
	require.NoError(t, err)

	canonical := string(env.Canonical)
	assert.NotContains(t, canonical, "UBLExtensions")
	assert.NotContains(t, canonical, "<cbc:ID>QR</cbc:ID>")
	assert.NotContains(t, canonical, "cac:Signature")
	assert.Contains(t, canonical, "<cbc:ID>PIH</cbc:ID>")
	assert.Equal(t, 1, strings.Count(canonical, "xmlns:cbc="))
	assert.NotContains(t, canonical, "<cbc:ID xmlns")

	sum := sha256.Sum256(env.Canonical)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), env.Digest)
	assert.Equal(t, signer.AlgECDSASHA256, env.Algorithm)
	assert.Contains(t, env.SignedInfo, env.Digest)
}

func TestPrepare_SensibleAlContenido(t *testing.T) {
	doc := unsignedDoc(t)
	tampered := bytes.Replace(doc, []byte("Test Company</cbc:RegistrationName>"), []byte("Otra Company</cbc:RegistrationName>"), 1)
	require.NotEqual(t, doc, tampered)

	a, err := signer.Prepare(doc)
	require.NoError(t, err)
	b, err := signer.Prepare(tampered)
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, b.Digest, "cambiar el vendedor debe cambiar el hash")
}

func TestEmbedSignature_BytesFueraIntactos(t *testing.T) {
	ks := newKeySigner(t, testVAT)
	doc := unsignedDoc(t)
	env, err := signer.Prepare(doc, signer.WithCertificate(ks.X509()), signer.WithSigningTime(fixedClock()))
	require.NoError(t, err)
	sig, err := ks.Sign(context.Background(), env.SigningInput)
	require.NoError(t, err)

	signed, err := signer.EmbedSignature(env, sig, ks.Certificate())
	require.NoError(t, err)

	placeholder := []byte("<ext:ExtensionContent></ext:ExtensionContent>")
	idx := bytes.Index(doc, placeholder)
	require.Greater(t, idx, 0)
	tail := doc[idx+len(placeholder):]
	assert.Equal(t, doc[:idx], signed[:idx], "los bytes previos a la firma no cambian")
	assert.True(t, bytes.HasSuffix(signed, tail), "los bytes posteriores a la firma no cambian")
	assert.Contains(t, string(signed), "<ds:SignatureValue>"+base64.StdEncoding.EncodeToString(sig)+"</ds:SignatureValue>")

	_, err = signer.EmbedSignature(&signer.Envelope{Document: signed, SignedInfo: env.SignedInfo}, sig, ks.Certificate())
	assert.Error(t, err, "un documento ya firmado no tiene placeholder")
}

func TestEmbedSignature_CertificadoDeOtroVendedor(t *testing.T) {
	ks := newKeySigner(t, "399999999900003")
	env, err := signer.Prepare(unsignedDoc(t))
	require.NoError(t, err)

	_, err = signer.EmbedSignature(env, []byte{1, 2, 3}, ks.Certificate())
	require.ErrorIs(t, err, domzatca.ErrCertificateMismatch)
	ve, ok := domzatca.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, testVAT, ve.Expected)
	assert.Equal(t, "399999999900003", ve.Actual)
}

// ──────────────────────────────────────────────────────────────────────────────
// Service.Sign
// ──────────────────────────────────────────────────────────────────────────────

func TestSign_FirmaVerificableYHashEstable(t *testing.T) {
	ks := newKeySigner(t, testVAT)
	doc := unsignedDoc(t)

	res, err := signer.NewService(ks).WithClock(fixedClock).Sign(context.Background(), doc)
	require.NoError(t, err)

	env, err := signer.Prepare(doc, signer.WithCertificate(ks.X509()), signer.WithSigningTime(fixedClock()))
	require.NoError(t, err)
	digest := sha256.Sum256(env.SigningInput)
	pub := ks.X509().PublicKey.(*ecdsa.PublicKey)
	assert.True(t, ecdsa.VerifyASN1(pub, digest[:], res.Signature), "la firma debe verificar con la llave pública")

	again, err := signer.Prepare(res.SignedXML)
	require.NoError(t, err)
	assert.Equal(t, res.InvoiceHash, again.Digest, "firmar y estampar el QR no altera el hash de la factura")
}

func TestSign_QRConTagsDeFirma(t *testing.T) {
	ks := newKeySigner(t, testVAT)
	res, err := signer.NewService(ks).WithClock(fixedClock).Sign(context.Background(), unsignedDoc(t))
	require.NoError(t, err)

	embedded, err := signer.EmbeddedQR(res.SignedXML)
	require.NoError(t, err)
	assert.Equal(t, res.QR, embedded, "el QR del documento es el devuelto")

	p, err := domzatca.DecodeBase64(res.QR)
	require.NoError(t, err)
	assert.Equal(t, "Test Company", p.SellerName)
	assert.Equal(t, "13.04", p.VATAmount)
	assert.Equal(t, res.InvoiceHash, p.Extra[domzatca.TagInvoiceHash])
	assert.Equal(t, base64.StdEncoding.EncodeToString(res.Signature), p.Extra[domzatca.TagSignature])
	assert.Equal(t, string(ks.X509().RawSubjectPublicKeyInfo), p.Extra[domzatca.TagPublicKey])
}

func TestSign_CertificadoAjenoNoFirma(t *testing.T) {
	ks := newKeySigner(t, "399999999900003")
	_, err := signer.NewService(ks).Sign(context.Background(), unsignedDoc(t))
	assert.ErrorIs(t, err, domzatca.ErrCertificateMismatch)
}

// ──────────────────────────────────────────────────────────────────────────────
// KeySigner
// ──────────────────────────────────────────────────────────────────────────────

func TestNewKeySigner_LlaveNoCorresponde(t *testing.T) {
	_, cert := newTestCert(t, testVAT)
	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, err = signer.NewKeySigner(other, cert)
	assert.ErrorIs(t, err, domzatca.ErrCertificateMismatch)
}

func TestSubjectVAT(t *testing.T) {
	_, cert := newTestCert(t, testVAT)
	assert.Equal(t, testVAT, signer.SubjectVAT(cert))
}

func TestLoadFromPEM(t *testing.T) {
	key, cert := newTestCert(t, testVAT)
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))

	ks, err := signer.LoadFromPEM(certPath, keyPath)
	require.NoError(t, err)
	assert.Equal(t, testVAT, ks.Certificate().SubjectVAT)
	assert.True(t, strings.HasPrefix(string(ks.Certificate().PEM), "-----BEGIN CERTIFICATE-----"))

	parsed, err := signer.ParseCertificatePEM([]byte(base64.StdEncoding.EncodeToString(cert.Raw)))
	require.NoError(t, err, "también se acepta DER en base64 sin cabeceras")
	assert.True(t, parsed.Equal(cert))
}

func TestKeySigner_ContextoCancelado(t *testing.T) {
	ks := newKeySigner(t, testVAT)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ks.Sign(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSelfSigned_FirmaComoElVendedor(t *testing.T) {
	ks, err := signer.NewSelfSigned(testVAT, "EGS-dev")
	require.NoError(t, err)
	assert.Equal(t, testVAT, ks.Certificate().SubjectVAT)

	res, err := signer.NewService(ks).Sign(context.Background(), unsignedDoc(t))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Signature)

	_, err = signer.NewSelfSigned("12345", "EGS-dev")
	assert.Error(t, err, "VAT con formato inválido")
}
