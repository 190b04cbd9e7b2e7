package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// NewSelfSigned genera una llave P-256 efímera y un certificado autofirmado con el VAT
// en organizationIdentifier. Solo para modo dev: ZATCA rechaza estos documentos.
func NewSelfSigned(vat, commonName string) (*KeySigner, error) {
	if err := pkgzatca.ValidateVATNumber(vat); err != nil {
		return nil, err
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("zatca: generar llave: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("zatca: generar serial: %w", err)
	}
	now := time.Now()
	tpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: commonName,
			Country:    []string{pkgzatca.CountrySA},
			ExtraNames: []pkix.AttributeTypeAndValue{{Type: oidOrganizationIdentifier, Value: vat}},
		},
		NotBefore: now.Add(-time.Hour),
		NotAfter:  now.AddDate(1, 0, 0),
		KeyUsage:  x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("zatca: crear certificado: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("zatca: parsear certificado: %w", err)
	}
	return NewKeySigner(key, cert)
}
