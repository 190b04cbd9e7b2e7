package zatca

import (
	"fmt"
	"strings"
)

// ValidateVATNumber valida el número de registro de IVA saudí: exactamente 15 dígitos ASCII.
func ValidateVATNumber(vat string) error {
	if len(vat) != VATNumberLength {
		return fmt.Errorf("zatca: el número de IVA debe tener %d dígitos, se recibieron %d", VATNumberLength, len(vat))
	}
	for i := 0; i < len(vat); i++ {
		if vat[i] < '0' || vat[i] > '9' {
			return fmt.Errorf("zatca: el número de IVA solo admite dígitos (posición %d)", i+1)
		}
	}
	return nil
}

// NormalizeVATNumber elimina espacios y guiones que suelen venir de formularios.
func NormalizeVATNumber(vat string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, vat)
}
