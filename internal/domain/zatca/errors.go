// Package zatca contiene el núcleo puro de la factura electrónica ZATCA:
// cálculo de montos, códec TLV del QR, cadena de hashes y validaciones.
// Ninguna operación hace I/O ni bloquea; todas son seguras para uso concurrente.
package zatca

import (
	"errors"
	"fmt"
)

// Tipos de error del núcleo. Se comparan con errors.Is.
var (
	ErrInvalidAmount       = errors.New("zatca: monto inválido")
	ErrInvalidRate         = errors.New("zatca: tasa de IVA inválida")
	ErrTruncatedRecord     = errors.New("zatca: registro TLV truncado")
	ErrFieldTooLong        = errors.New("zatca: campo TLV excede 255 bytes")
	ErrChainBreak          = errors.New("zatca: ruptura de la cadena de hashes")
	ErrLineTotalMismatch   = errors.New("zatca: los totales de línea no cuadran con la factura")
	ErrCurrencyMismatch    = errors.New("zatca: mezcla de monedas en la factura")
	ErrCertificateMismatch = errors.New("zatca: el certificado no corresponde al vendedor")
	ErrInvalidInvoice      = errors.New("zatca: factura inválida")
)

// ValidationError agrega contexto estructurado (campo, esperado, recibido) a un tipo de error.
type ValidationError struct {
	Kind     error
	Field    string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Expected != "" || e.Actual != "":
		return fmt.Sprintf("%s: %s (esperado %q, recibido %q)", e.Kind, e.Field, e.Expected, e.Actual)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	default:
		return e.Kind.Error()
	}
}

// Unwrap expone el tipo de error para errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func newValidationError(kind error, field, expected, actual string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Expected: expected, Actual: actual}
}

// AsValidationError extrae el primer *ValidationError de la cadena, si existe.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
