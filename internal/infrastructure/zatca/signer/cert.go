// Carga de llave y certificado (CSID) desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"regexp"

	"golang.org/x/crypto/pkcs12"

	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// OIDs del sujeto donde ZATCA y las CAs locales publican el número de IVA.
var (
	oidOrganizationIdentifier = asn1.ObjectIdentifier{2, 5, 4, 97}
	oidUserID                 = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
)

var vatPattern = regexp.MustCompile(`\d{15}`)

// KeySigner implementa pkg/zatca.Signer con una llave local ECDSA o RSA.
type KeySigner struct {
	key        crypto.Signer
	cert       *x509.Certificate
	subjectVAT string
}

// NewKeySigner valida que la llave corresponda al certificado.
func NewKeySigner(key crypto.Signer, cert *x509.Certificate) (*KeySigner, error) {
	if key == nil || cert == nil {
		return nil, fmt.Errorf("zatca: llave y certificado son obligatorios")
	}
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(cert.PublicKey) {
		return nil, fmt.Errorf("%w: la llave privada no corresponde al certificado", domzatca.ErrCertificateMismatch)
	}
	return &KeySigner{key: key, cert: cert, subjectVAT: SubjectVAT(cert)}, nil
}

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido.
func LoadFromP12(path, password string) (*KeySigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decodificar p12: %w", err)
	}
	key, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("zatca: llave del p12 no soporta firma")
	}
	return NewKeySigner(key, cert)
}

// LoadFromPEM carga certificado y llave desde archivos PEM (por separado o combinados).
func LoadFromPEM(certPath, keyPath string) (*KeySigner, error) {
	if certPath == "" {
		return nil, fmt.Errorf("zatca: ruta del certificado vacía")
	}
	if keyPath == "" {
		keyPath = certPath
	}
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("cargar PEM: %w", err)
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsear certificado: %w", err)
	}
	key, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("zatca: llave PEM no soporta firma")
	}
	return NewKeySigner(key, cert)
}

// Sign firma SHA-256(signingInput). ECDSA devuelve DER (ASN.1); RSA usa PKCS#1 v1.5.
func (k *KeySigner) Sign(ctx context.Context, signingInput []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(signingInput)
	sig, err := k.key.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("zatca: firmar: %w", err)
	}
	return sig, nil
}

// Certificate devuelve el certificado en PEM junto al VAT del sujeto.
func (k *KeySigner) Certificate() pkgzatca.Certificate {
	return pkgzatca.Certificate{
		SubjectVAT: k.subjectVAT,
		PEM:        pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: k.cert.Raw}),
	}
}

// X509 certificado parseado.
func (k *KeySigner) X509() *x509.Certificate {
	return k.cert
}

var _ pkgzatca.Signer = (*KeySigner)(nil)

// ParseCertificatePEM decodifica el primer bloque CERTIFICATE. Acepta también DER en base64
// sin cabeceras, que es como ZATCA entrega el binarySecurityToken.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("zatca: bloque PEM %q no es un certificado", block.Type)
		}
		return x509.ParseCertificate(block.Bytes)
	}
	der, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("zatca: certificado no es PEM ni base64")
	}
	return x509.ParseCertificate(der)
}

// SubjectVAT extrae el número de IVA del sujeto: organizationIdentifier, UID o serialNumber.
func SubjectVAT(cert *x509.Certificate) string {
	for _, oid := range []asn1.ObjectIdentifier{oidOrganizationIdentifier, oidUserID} {
		for _, n := range cert.Subject.Names {
			if n.Type.Equal(oid) {
				if s, ok := n.Value.(string); ok {
					if m := vatPattern.FindString(s); m != "" {
						return m
					}
				}
			}
		}
	}
	return vatPattern.FindString(cert.Subject.SerialNumber)
}

// CertDigestAndIssuerSerial devuelve el digest SHA-256 del certificado (Base64), el emisor
// y el serial en decimal para xades:SigningCertificate.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64 string, issuerName string, serial string) {
	h := sha256.Sum256(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(h[:])
	issuerName = cert.Issuer.String()
	serial = cert.SerialNumber.String()
	return digestB64, issuerName, serial
}

func signatureAlgorithm(cert *x509.Certificate) string {
	if cert != nil && cert.PublicKeyAlgorithm == x509.RSA {
		return AlgRSASHA256
	}
	return AlgECDSASHA256
}
