package signer

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// Envelope resultado de preparar un documento para firma.
type Envelope struct {
	Document  []byte // Documento sin firma tal como llegó
	Canonical []byte // Forma canónica tras quitar extensiones, QR y cac:Signature
	Digest    string // base64(SHA-256(Canonical)): hash de la factura

	Algorithm        string
	SignedProperties string // xades:SignedProperties (vacío si no hay certificado)
	SignedInfo       string // ds:SignedInfo tal como se incrusta
	SigningInput     []byte // SignedInfo canónico: lo que firma el Signer

	Signature   []byte
	Certificate *x509.Certificate
	SigningTime time.Time
}

// Option configura Prepare.
type Option func(*Envelope)

// WithCertificate agrega xades:SignedProperties y elige el algoritmo según la llave pública.
func WithCertificate(cert *x509.Certificate) Option {
	return func(e *Envelope) { e.Certificate = cert }
}

// WithSigningTime fija xades:SigningTime (por defecto, ahora en UTC).
func WithSigningTime(t time.Time) Option {
	return func(e *Envelope) { e.SigningTime = t.UTC() }
}

// Prepare aplica la transformación del hash de factura (quita ext:UBLExtensions, la
// referencia QR y cac:Signature), canonicaliza, calcula el digest y arma el SignedInfo.
// No toca el documento de entrada.
func Prepare(doc []byte, opts ...Option) (*Envelope, error) {
	env := &Envelope{Document: doc, SigningTime: time.Now().UTC()}
	for _, opt := range opts {
		opt(env)
	}
	env.Algorithm = signatureAlgorithm(env.Certificate)

	canonical, err := InvoiceHashInput(doc)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(canonical)
	env.Canonical = canonical
	env.Digest = base64.StdEncoding.EncodeToString(sum[:])

	var propsDigest string
	if env.Certificate != nil {
		env.SignedProperties = buildSignedProperties(env.Certificate, env.SigningTime, false)
		canonicalProps, err := canonicalizeXML([]byte(buildSignedProperties(env.Certificate, env.SigningTime, true)))
		if err != nil {
			return nil, err
		}
		h := sha256.Sum256(canonicalProps)
		propsDigest = base64.StdEncoding.EncodeToString(h[:])
	}

	env.SignedInfo = buildSignedInfo(env.Algorithm, env.Digest, propsDigest, false)
	env.SigningInput, err = canonicalizeXML([]byte(buildSignedInfo(env.Algorithm, env.Digest, propsDigest, true)))
	if err != nil {
		return nil, err
	}
	return env, nil
}

// InvoiceHashInput devuelve los bytes canónicos sobre los que se calcula el hash de la factura.
func InvoiceHashInput(doc []byte) ([]byte, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(doc); err != nil {
		return nil, fmt.Errorf("zatca: parsear XML: %w", err)
	}
	root := tree.Root()
	if root == nil {
		return nil, fmt.Errorf("zatca: documento sin raíz")
	}
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "UBLExtensions", "Signature":
			root.RemoveChild(child)
		case "AdditionalDocumentReference":
			if id := child.SelectElement("ID"); id != nil && id.Text() == "QR" {
				root.RemoveChild(child)
			}
		}
	}
	return canonicalizeTree(tree)
}

// EmbedSignature inserta el bloque de firma en el ExtensionContent vacío del documento.
// Todo byte fuera de ese elemento queda idéntico. Falla con ErrCertificateMismatch si
// el VAT del certificado no es el del vendedor.
func EmbedSignature(env *Envelope, signature []byte, cert pkgzatca.Certificate) ([]byte, error) {
	if env == nil || len(signature) == 0 {
		return nil, fmt.Errorf("zatca: firma vacía")
	}
	x509Cert, err := ParseCertificatePEM(cert.PEM)
	if err != nil {
		return nil, fmt.Errorf("zatca: parsear certificado: %w", err)
	}
	if env.Certificate != nil && !env.Certificate.Equal(x509Cert) {
		return nil, fmt.Errorf("%w: el certificado no es el usado al preparar la firma", domzatca.ErrCertificateMismatch)
	}
	if err := checkSellerVAT(env.Document, cert.SubjectVAT, x509Cert); err != nil {
		return nil, err
	}

	placeholder := emptyExtensionContent
	switch n := bytes.Count(env.Document, []byte(emptyExtensionContent)) + bytes.Count(env.Document, []byte(selfClosedExtensionContent)); {
	case n == 0:
		return nil, fmt.Errorf("zatca: no hay ext:ExtensionContent vacío (falta o ya está firmado)")
	case n > 1:
		return nil, fmt.Errorf("zatca: más de un ext:ExtensionContent vacío")
	}
	if !bytes.Contains(env.Document, []byte(placeholder)) {
		placeholder = selfClosedExtensionContent
	}

	block := buildSignatureBlock(env, signature, x509Cert)
	filled := "<ext:ExtensionContent>" + block + "</ext:ExtensionContent>"
	env.Signature = signature
	return bytes.Replace(env.Document, []byte(placeholder), []byte(filled), 1), nil
}

// checkSellerVAT compara el VAT del certificado con cac:AccountingSupplierParty/.../cbc:CompanyID.
func checkSellerVAT(doc []byte, subjectVAT string, cert *x509.Certificate) error {
	if subjectVAT == "" {
		subjectVAT = SubjectVAT(cert)
	}
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(doc); err != nil {
		return fmt.Errorf("zatca: parsear XML: %w", err)
	}
	var sellerVAT string
	if el := tree.FindElement("//AccountingSupplierParty/Party/PartyTaxScheme/CompanyID"); el != nil {
		sellerVAT = strings.TrimSpace(el.Text())
	}
	if subjectVAT == "" || subjectVAT != sellerVAT {
		return &domzatca.ValidationError{
			Kind:     domzatca.ErrCertificateMismatch,
			Field:    "seller.vatNumber",
			Expected: sellerVAT,
			Actual:   subjectVAT,
		}
	}
	return nil
}

func buildSignedInfo(alg, docDigest, propsDigest string, standalone bool) string {
	var sb strings.Builder
	if standalone {
		sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	} else {
		sb.WriteString(`<ds:SignedInfo>`)
	}
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N11 + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + alg + `"></ds:SignatureMethod>`)
	sb.WriteString(`<ds:Reference Id="` + InvoiceReferenceID + `" URI="">`)
	sb.WriteString(`<ds:Transforms>`)
	for _, xp := range invoiceHashXPaths {
		sb.WriteString(`<ds:Transform Algorithm="` + TransformXPath + `"><ds:XPath>` + escapeXML(xp) + `</ds:XPath></ds:Transform>`)
	}
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N11 + `"></ds:Transform>`)
	sb.WriteString(`</ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + docDigest + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	if propsDigest != "" {
		sb.WriteString(`<ds:Reference Type="` + TypeSignedProp + `" URI="#` + SignedPropertiesID + `">`)
		sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
		sb.WriteString(`<ds:DigestValue>` + propsDigest + `</ds:DigestValue>`)
		sb.WriteString(`</ds:Reference>`)
	}
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildSignedProperties(cert *x509.Certificate, at time.Time, standalone bool) string {
	certDigest, issuer, serial := CertDigestAndIssuerSerial(cert)
	var sb strings.Builder
	if standalone {
		sb.WriteString(`<xades:SignedProperties xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `" Id="` + SignedPropertiesID + `">`)
	} else {
		sb.WriteString(`<xades:SignedProperties Id="` + SignedPropertiesID + `">`)
	}
	sb.WriteString(`<xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SigningTime>` + at.Format(signingTimeLayout) + `</xades:SigningTime>`)
	sb.WriteString(`<xades:SigningCertificate><xades:Cert><xades:CertDigest>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + certDigest + `</ds:DigestValue></xades:CertDigest>`)
	sb.WriteString(`<xades:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuer) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + serial + `</ds:X509SerialNumber></xades:IssuerSerial>`)
	sb.WriteString(`</xades:Cert></xades:SigningCertificate>`)
	sb.WriteString(`</xades:SignedSignatureProperties></xades:SignedProperties>`)
	return sb.String()
}

func buildSignatureBlock(env *Envelope, signature []byte, cert *x509.Certificate) string {
	var sb strings.Builder
	sb.WriteString(`<sig:UBLDocumentSignatures xmlns:sig="` + NamespaceSig + `" xmlns:sac="` + NamespaceSac + `" xmlns:sbc="` + NamespaceSbc + `">`)
	sb.WriteString(`<sac:SignatureInformation>`)
	sb.WriteString(`<cbc:ID>` + SignatureInformationID + `</cbc:ID>`)
	sb.WriteString(`<sbc:ReferencedSignatureID>` + ReferencedSignatureID + `</sbc:ReferencedSignatureID>`)
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" Id="` + SignatureElementID + `">`)
	sb.WriteString(env.SignedInfo)
	sb.WriteString(`<ds:SignatureValue>` + base64.StdEncoding.EncodeToString(signature) + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + base64.StdEncoding.EncodeToString(cert.Raw) + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	if env.SignedProperties != "" {
		sb.WriteString(`<ds:Object><xades:QualifyingProperties xmlns:xades="` + NamespaceXAdES + `" Target="` + SignatureElementID + `">`)
		sb.WriteString(env.SignedProperties)
		sb.WriteString(`</xades:QualifyingProperties></ds:Object>`)
	}
	sb.WriteString(`</ds:Signature>`)
	sb.WriteString(`</sac:SignatureInformation>`)
	sb.WriteString(`</sig:UBLDocumentSignatures>`)
	return sb.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
