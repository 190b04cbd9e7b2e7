// Package zatca: interfaces de firma para documentos XML (XAdES, ZATCA).

package zatca

import "context"

// Certificate referencia al certificado X.509 emitido por ZATCA (CSID).
// SubjectVAT es el número de IVA declarado en el sujeto del certificado.
type Certificate struct {
	SubjectVAT string
	PEM        []byte
}

// Signer calcula la firma asimétrica sobre el SignedInfo canonicalizado.
// La llave privada nunca sale de la implementación.
type Signer interface {
	// Sign firma los bytes canónicos y devuelve la firma en bruto (DER para ECDSA).
	Sign(ctx context.Context, signingInput []byte) ([]byte, error)
	// Certificate devuelve el certificado asociado a la llave.
	Certificate() Certificate
}
