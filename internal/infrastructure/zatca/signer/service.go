// Servicio de firma XAdES para factura electrónica ZATCA (fase 2).
// Inyecta la firma en el ext:ExtensionContent vacío y completa el QR con los tags 6 a 9.

package signer

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"

	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// Result documento firmado y valores derivados de la firma.
type Result struct {
	SignedXML   []byte
	InvoiceHash string // DigestValue del documento (base64)
	Signature   []byte
	QR          string // TLV base64 con los tags 1..7 (8 y 9 si caben)
}

// Service orquesta Prepare, la firma externa y EmbedSignature.
type Service struct {
	signer pkgzatca.Signer
	now    func() time.Time
}

// NewService crea el servicio sobre un Signer (llave local, HSM, etc.).
func NewService(s pkgzatca.Signer) *Service {
	return &Service{signer: s, now: time.Now}
}

// WithClock reemplaza el reloj usado para xades:SigningTime.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Sign firma el documento sin firma producido por el builder.
func (s *Service) Sign(ctx context.Context, doc []byte) (*Result, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("zatca: XML vacío")
	}
	if s.signer == nil {
		return nil, fmt.Errorf("zatca: no hay firmador configurado")
	}
	cert := s.signer.Certificate()
	x509Cert, err := ParseCertificatePEM(cert.PEM)
	if err != nil {
		return nil, fmt.Errorf("zatca: parsear certificado: %w", err)
	}

	// 1) Digest del documento y SignedInfo
	env, err := Prepare(doc, WithCertificate(x509Cert), WithSigningTime(s.now()))
	if err != nil {
		return nil, err
	}
	// La verificación del VAT va antes de firmar: un certificado ajeno nunca firma.
	if err := checkSellerVAT(doc, cert.SubjectVAT, x509Cert); err != nil {
		return nil, err
	}

	// 2) Firma externa sobre el SignedInfo canónico
	sig, err := s.signer.Sign(ctx, env.SigningInput)
	if err != nil {
		return nil, fmt.Errorf("zatca: firmar SignedInfo: %w", err)
	}

	// 3) Inyectar en ext:ExtensionContent
	signed, err := EmbedSignature(env, sig, cert)
	if err != nil {
		return nil, err
	}

	// 4) QR con hash, firma, llave pública y firma del certificado
	signed, qr, err := stampQR(signed, env.Digest, sig, x509Cert)
	if err != nil {
		return nil, err
	}
	return &Result{SignedXML: signed, InvoiceHash: env.Digest, Signature: sig, QR: qr}, nil
}

// stampQR reemplaza el valor del QR embebido. El QR está fuera del hash de la factura,
// así que la firma sigue siendo válida.
func stampQR(doc []byte, invoiceHash string, sig []byte, cert *x509.Certificate) ([]byte, string, error) {
	current, err := EmbeddedQR(doc)
	if err != nil {
		return nil, "", err
	}
	payload, err := domzatca.DecodeBase64(current)
	if err != nil {
		return nil, "", err
	}
	payload = payload.
		WithExtra(domzatca.TagInvoiceHash, invoiceHash).
		WithExtra(domzatca.TagSignature, base64.StdEncoding.EncodeToString(sig))
	if len(cert.RawSubjectPublicKeyInfo) <= domzatca.MaxTLVValueLength {
		payload = payload.WithExtra(domzatca.TagPublicKey, string(cert.RawSubjectPublicKeyInfo))
	}
	if len(cert.Signature) <= domzatca.MaxTLVValueLength {
		payload = payload.WithExtra(domzatca.TagCertSignature, string(cert.Signature))
	}
	qr, err := payload.EncodeBase64()
	if err != nil {
		return nil, "", err
	}

	marker := bytes.Index(doc, []byte("<cbc:ID>QR</cbc:ID>"))
	if marker < 0 {
		return nil, "", fmt.Errorf("zatca: no se encontró la referencia QR")
	}
	old := []byte(">" + current + "<")
	at := bytes.Index(doc[marker:], old)
	if at < 0 {
		return nil, "", fmt.Errorf("zatca: valor QR no encontrado en el documento")
	}
	at += marker

	out := make([]byte, 0, len(doc)+len(qr)-len(current))
	out = append(out, doc[:at]...)
	out = append(out, '>')
	out = append(out, qr...)
	out = append(out, '<')
	out = append(out, doc[at+len(old):]...)
	return out, qr, nil
}

// EmbeddedQR devuelve el TLV base64 de la referencia QR del documento.
func EmbeddedQR(doc []byte) (string, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(doc); err != nil {
		return "", fmt.Errorf("zatca: parsear XML: %w", err)
	}
	for _, ref := range tree.FindElements("/Invoice/AdditionalDocumentReference") {
		if id := ref.SelectElement("ID"); id != nil && id.Text() == "QR" {
			if obj := ref.FindElement("Attachment/EmbeddedDocumentBinaryObject"); obj != nil {
				return obj.Text(), nil
			}
		}
	}
	return "", fmt.Errorf("zatca: el documento no tiene referencia QR")
}
