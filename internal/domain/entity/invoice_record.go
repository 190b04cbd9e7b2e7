package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de emisión ante ZATCA.
const (
	StatusSigned   = "SIGNED"   // XML firmado; en modo dev es el estado final
	StatusCleared  = "CLEARED"  // Factura estándar liberada por ZATCA
	StatusReported = "REPORTED" // Factura simplificada reportada a ZATCA
	StatusRejected = "REJECTED" // ZATCA devolvió errores de validación
	StatusError    = "ERROR"    // Falla de transporte o infraestructura tras la firma
)

// InvoiceRecord factura emitida: documento firmado más el resultado del envío.
type InvoiceRecord struct {
	ID           string // Igual al UUID de la factura
	DeviceID     string
	InvoiceID    string
	UUID         string
	DocumentType DocumentType
	IssueDate    string
	IssueTime    string
	Counter      int64
	PreviousHash string
	ContentHash  string // Eslabón para la siguiente factura del dispositivo
	InvoiceHash  string // SHA-256 del documento canónico firmado (DigestValue)

	Currency      string
	TaxableAmount decimal.Decimal
	VATAmount     decimal.Decimal
	TotalAmount   decimal.Decimal

	QRData      string // TLV en base64
	SignedXML   []byte
	Invoice     Invoice // Instantánea de la entrada (para PDF y auditoría)
	Status      string
	ClearedUUID string
	ClearedXML  []byte // Documento devuelto por clearance (facturas estándar)
	Warnings    []string
	Errors      []string

	CreatedAt time.Time
	UpdatedAt time.Time
}
