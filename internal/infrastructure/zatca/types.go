// Package zatca implementa la generación del XML UBL 2.1 para factura electrónica ZATCA,
// el transporte de clearance/reporting y el empaquetado del documento firmado.
package zatca

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
)

// InvoiceBuildContext contexto con todos los datos necesarios para construir el XML de la factura.
type InvoiceBuildContext struct {
	Invoice *entity.Invoice

	// State último eslabón guardado del dispositivo. Solo se usa si VerifyLink es true;
	// nil con VerifyLink significa dispositivo sin facturas (génesis).
	State      *entity.ChainState
	VerifyLink bool

	// VATRate tasa estándar en porcentaje. nil usa pkg/zatca.DefaultVATRate.
	VATRate *decimal.Decimal
}

// BuildResult documento canónico sin firma más los valores derivados.
type BuildResult struct {
	XML         []byte
	Amounts     domzatca.Amounts
	Totals      *domzatca.InvoiceTotals
	QR          string // TLV base64 con los tags 1..5
	ContentHash string // Eslabón de la cadena para la siguiente factura
}
