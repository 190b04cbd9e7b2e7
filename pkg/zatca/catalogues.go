// Package zatca contiene catálogos y validaciones alineados a las reglas de
// facturación electrónica ZATCA (Arabia Saudita), fase 2 (integración).
package zatca

import "github.com/shopspring/decimal"

// =============================================================================
// Tipos de documento (UBL InvoiceTypeCode + atributo name)
// =============================================================================

const (
	// InvoiceTypeCodeTaxInvoice es el código UNTDID 1001 de factura (388).
	InvoiceTypeCodeTaxInvoice = "388"

	// SubtypeStandard valor del atributo name para facturas estándar (B2B/B2G).
	SubtypeStandard = "0100000"
	// SubtypeSimplified valor del atributo name para facturas simplificadas (B2C).
	SubtypeSimplified = "0200000"
)

// Perfiles de proceso (cbc:ProfileID).
const (
	ProfileReporting = "reporting:1.0"
	ProfileClearance = "clearance:1.0"
)

// =============================================================================
// Categorías de IVA (UNCL 5305)
// =============================================================================

const (
	VATCategoryStandard   = "S" // Tasa estándar
	VATCategoryZeroRated  = "Z" // Tasa cero
	VATCategoryExempt     = "E" // Exento
	VATCategoryOutOfScope = "O" // Fuera del alcance del IVA
)

// VATCategoryOrder orden fijo en que se emiten los TaxSubtotal.
var VATCategoryOrder = []string{
	VATCategoryStandard, VATCategoryZeroRated, VATCategoryExempt, VATCategoryOutOfScope,
}

// ValidVATCategories categorías aceptadas en líneas de factura.
var ValidVATCategories = map[string]bool{
	VATCategoryStandard:   true,
	VATCategoryZeroRated:  true,
	VATCategoryExempt:     true,
	VATCategoryOutOfScope: true,
}

// DefaultVATRate tasa estándar vigente (15 %).
var DefaultVATRate = decimal.NewFromInt(15)

// StandardVATRate devuelve la tasa configurada o DefaultVATRate si no hay ninguna.
// Una tasa explícita de cero se respeta.
func StandardVATRate(rate *decimal.Decimal) decimal.Decimal {
	if rate == nil {
		return DefaultVATRate
	}
	return *rate
}

// CategoryRate devuelve la tasa aplicable a la categoría: la estándar para "S", cero para el resto.
func CategoryRate(category string, standardRate decimal.Decimal) decimal.Decimal {
	if category == VATCategoryStandard {
		return standardRate
	}
	return decimal.Zero
}

// =============================================================================
// Medios de pago (UNCL 4461) - códigos de uso frecuente
// =============================================================================

const (
	PaymentMeansCash           = "10" // Efectivo
	PaymentMeansCreditTransfer = "30" // Transferencia
	PaymentMeansDebitTransfer  = "31" // Débito
	PaymentMeansBankCard       = "48" // Tarjeta bancaria
	PaymentMeansInstrument     = "1"  // Instrumento no definido
)

// ValidPaymentMeansCodes códigos de medio de pago aceptados.
var ValidPaymentMeansCodes = map[string]bool{
	PaymentMeansCash: true, PaymentMeansCreditTransfer: true,
	PaymentMeansDebitTransfer: true, PaymentMeansBankCard: true,
	PaymentMeansInstrument: true,
}

// =============================================================================
// Unidades de medida (UN/ECE Rec 20)
// =============================================================================

const (
	UnitPiece    = "PCE" // Pieza
	UnitOne      = "C62" // Uno (unidad genérica)
	UnitEach     = "EA"  // Unidad
	UnitHour     = "HUR" // Hora
	UnitDay      = "DAY" // Día
	UnitKilogram = "KGM" // Kilogramo
	UnitMetre    = "MTR" // Metro
	UnitLitre    = "LTR" // Litro
)

// ValidMeasurementUnitCodes códigos de unidad aceptados en cbc:InvoicedQuantity@unitCode.
// Subconjunto de UN/ECE Rec 20 de uso habitual en facturación.
var ValidMeasurementUnitCodes = map[string]bool{
	UnitPiece: true, UnitOne: true, UnitEach: true, "H87": true, "SET": true, "PR": true,
	"DZN": true, "BX": true, "XBX": true, "CT": true, "PK": true,
	UnitHour: true, UnitDay: true, "MIN": true, "WEE": true, "MON": true, "ANN": true,
	UnitKilogram: true, "GRM": true, "TNE": true, "MGM": true,
	UnitMetre: true, "CMT": true, "MMT": true, "KTM": true, "MTK": true, "MTQ": true,
	UnitLitre: true, "MLT": true,
	"KWH": true,
}

// =============================================================================
// Esquemas de identificación de partes (schemeID)
// =============================================================================

const (
	SchemeCRN = "CRN" // Registro comercial
	SchemeNAT = "NAT" // Identificación nacional
	SchemeMOM = "MOM" // Licencia MOMRAH
	SchemeTIN = "TIN" // Número de identificación tributaria
)

// NotApplicable identificador usado para el comprador de una factura simplificada sin datos.
const NotApplicable = "Not Applicable"

// Límites de validación.
const (
	VATNumberLength = 15
	MaxLineItems    = 1000
)

// MaxInvoiceAmount límite superior de montos aceptados por la plataforma.
var MaxInvoiceAmount = decimal.RequireFromString("999999999.99")

// DefaultCurrency moneda por defecto del documento.
const DefaultCurrency = "SAR"

// CountrySA código de país del vendedor.
const CountrySA = "SA"
