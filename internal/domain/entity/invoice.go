package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType clasifica la factura según el tipo de transacción.
type DocumentType string

const (
	// DocumentSimplified factura simplificada (B2C): comprador opcional, se reporta.
	DocumentSimplified DocumentType = "simplified"
	// DocumentStandard factura estándar (B2B/B2G): comprador obligatorio, se libera (clearance).
	DocumentStandard DocumentType = "standard"
)

// Valid indica si el tipo es uno de los soportados.
func (t DocumentType) Valid() bool {
	return t == DocumentSimplified || t == DocumentStandard
}

// Formatos de fecha y hora de emisión tal como viajan en el XML y en el hash.
const (
	IssueDateLayout = "2006-01-02"
	IssueTimeLayout = "15:04:05Z"
)

// Invoice representa la factura electrónica. Es la única fuente de verdad:
// QR, hash y envelope de firma se derivan de ella.
type Invoice struct {
	ID           string // Número secuencial legible (único por vendedor y día)
	UUID         string // Asignado una sola vez en la creación
	DocumentType DocumentType
	IssueDate    string // YYYY-MM-DD
	IssueTime    string // HH:MM:SSZ (UTC)

	Seller Party
	Buyer  *Party // Obligatorio solo en DocumentStandard

	Currency                  string          // ISO 4217, "SAR" por defecto
	TotalAmountInclusiveOfTax decimal.Decimal // > 0
	LineItems                 []LineItem

	PreviousInvoiceHash string // Hash de la factura anterior del dispositivo (o génesis)
	CounterValue        int64  // ICV: contador monotónico por dispositivo, inicia en 1

	PaymentMeansCode string // Opcional; por defecto según el tipo de documento
	DeliveryDate     string // Opcional; por defecto IssueDate
	Note             string
}

// IssueStamp formatea un instante como (IssueDate, IssueTime) en UTC.
func IssueStamp(t time.Time) (string, string) {
	u := t.UTC()
	return u.Format(IssueDateLayout), u.Format(IssueTimeLayout)
}

// Timestamp devuelve la marca ISO-8601 usada en el QR (fecha + "T" + hora).
func (inv *Invoice) Timestamp() string {
	return inv.IssueDate + "T" + inv.IssueTime
}

// IsStandard atajo para el tipo estándar.
func (inv *Invoice) IsStandard() bool {
	return inv.DocumentType == DocumentStandard
}
