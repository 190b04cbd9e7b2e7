package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// AddressRequest dirección nacional saudí.
type AddressRequest struct {
	Street             string `json:"street,omitempty" validate:"max=1000"`
	BuildingNumber     string `json:"building_number,omitempty" validate:"omitempty,len=4,numeric"`
	PlotIdentification string `json:"plot_identification,omitempty"`
	District           string `json:"district,omitempty"`
	City               string `json:"city,omitempty"`
	PostalCode         string `json:"postal_code,omitempty" validate:"omitempty,len=5,numeric"`
	CountryCode        string `json:"country_code,omitempty" validate:"omitempty,iso3166_1_alpha2"`
}

// PartyRequest vendedor o comprador.
type PartyRequest struct {
	Name      string         `json:"name" validate:"required,max=1000"`
	VATNumber string         `json:"vat_number,omitempty" validate:"omitempty,len=15,numeric"`
	CRN       string         `json:"crn,omitempty" validate:"omitempty,max=127"`
	Address   AddressRequest `json:"address"`
}

// LineItemRequest línea de factura. unit_price va sin IVA.
type LineItemRequest struct {
	ID                  string          `json:"id,omitempty"`
	Name                string          `json:"name" validate:"required,max=1000"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	UnitOfMeasure       string          `json:"unit_of_measure,omitempty"`
	TaxCategory         string          `json:"tax_category,omitempty" validate:"omitempty,oneof=S Z E O"`
	Currency            string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	ExemptionReasonCode string          `json:"exemption_reason_code,omitempty"`
	ExemptionReason     string          `json:"exemption_reason,omitempty"`
}

// IssueInvoiceRequest body para POST /api/invoices.
// uuid, issue_date, issue_time, counter_value y previous_invoice_hash son opcionales:
// el servicio los completa desde el reloj y el estado de la cadena del dispositivo.
type IssueInvoiceRequest struct {
	ID                        string            `json:"id" validate:"required,max=127"`
	UUID                      string            `json:"uuid,omitempty" validate:"omitempty,uuid"`
	DocumentType              string            `json:"document_type" validate:"required,oneof=simplified standard"`
	IssueDate                 string            `json:"issue_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IssueTime                 string            `json:"issue_time,omitempty" validate:"omitempty,datetime=15:04:05Z"`
	Seller                    PartyRequest      `json:"seller"`
	Buyer                     *PartyRequest     `json:"buyer,omitempty"`
	Currency                  string            `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	TotalAmountInclusiveOfTax decimal.Decimal   `json:"total_amount_inclusive_of_tax"`
	LineItems                 []LineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	PreviousInvoiceHash       string            `json:"previous_invoice_hash,omitempty" validate:"omitempty,base64"`
	CounterValue              int64             `json:"counter_value,omitempty" validate:"min=0"`
	PaymentMeansCode          string            `json:"payment_means_code,omitempty" validate:"omitempty,oneof=10 30 31 48 1"`
	DeliveryDate              string            `json:"delivery_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Note                      string            `json:"note,omitempty" validate:"max=1000"`
	// ComplianceID CSID de onboarding; solo aplica en modo compliance.
	ComplianceID string `json:"compliance_id,omitempty"`
}

// Normalize quita espacios y guiones de los números de IVA. Validate la llama antes
// de aplicar las reglas.
func (r *IssueInvoiceRequest) Normalize() {
	r.Seller.VATNumber = pkgzatca.NormalizeVATNumber(r.Seller.VATNumber)
	if r.Buyer != nil {
		r.Buyer.VATNumber = pkgzatca.NormalizeVATNumber(r.Buyer.VATNumber)
	}
}

// ToEntity convierte el request en la entidad de dominio.
func (r *IssueInvoiceRequest) ToEntity() entity.Invoice {
	inv := entity.Invoice{
		ID:                        r.ID,
		UUID:                      r.UUID,
		DocumentType:              entity.DocumentType(r.DocumentType),
		IssueDate:                 r.IssueDate,
		IssueTime:                 r.IssueTime,
		Seller:                    r.Seller.toEntity(),
		Currency:                  r.Currency,
		TotalAmountInclusiveOfTax: r.TotalAmountInclusiveOfTax,
		PreviousInvoiceHash:       r.PreviousInvoiceHash,
		CounterValue:              r.CounterValue,
		PaymentMeansCode:          r.PaymentMeansCode,
		DeliveryDate:              r.DeliveryDate,
		Note:                      r.Note,
	}
	if r.Buyer != nil {
		b := r.Buyer.toEntity()
		inv.Buyer = &b
	}
	inv.LineItems = make([]entity.LineItem, 0, len(r.LineItems))
	for _, l := range r.LineItems {
		inv.LineItems = append(inv.LineItems, entity.LineItem{
			ID:                  l.ID,
			Name:                l.Name,
			Quantity:            l.Quantity,
			UnitPrice:           l.UnitPrice,
			UnitOfMeasure:       l.UnitOfMeasure,
			TaxCategory:         l.TaxCategory,
			Currency:            l.Currency,
			ExemptionReasonCode: l.ExemptionReasonCode,
			ExemptionReason:     l.ExemptionReason,
		})
	}
	return inv
}

func (p PartyRequest) toEntity() entity.Party {
	return entity.Party{
		Name:      p.Name,
		VATNumber: p.VATNumber,
		CRN:       p.CRN,
		Address: entity.Address{
			Street:             p.Address.Street,
			BuildingNumber:     p.Address.BuildingNumber,
			PlotIdentification: p.Address.PlotIdentification,
			District:           p.Address.District,
			City:               p.Address.City,
			PostalCode:         p.Address.PostalCode,
			CountryCode:        p.Address.CountryCode,
		},
	}
}

// InvoiceRecordResponse factura emitida en respuestas de POST y GET /api/invoices.
type InvoiceRecordResponse struct {
	ID           string          `json:"id"`
	DeviceID     string          `json:"device_id"`
	InvoiceID    string          `json:"invoice_id"`
	UUID         string          `json:"uuid"`
	DocumentType string          `json:"document_type"`
	IssueDate    string          `json:"issue_date"`
	IssueTime    string          `json:"issue_time"`
	Counter      int64           `json:"counter"`
	PreviousHash string          `json:"previous_hash"`
	ContentHash  string          `json:"content_hash"`
	InvoiceHash  string          `json:"invoice_hash"`
	Currency     string          `json:"currency"`
	Taxable      decimal.Decimal `json:"taxable_amount"`
	VAT          decimal.Decimal `json:"vat_amount"`
	Total        decimal.Decimal `json:"total_amount"`
	QRData       string          `json:"qr_data"`
	Status       string          `json:"status"` // SIGNED|CLEARED|REPORTED|REJECTED|ERROR
	ClearedUUID  string          `json:"cleared_uuid,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	Errors       []string        `json:"errors,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RecordResponse arma la respuesta a partir del registro persistido.
func RecordResponse(rec *entity.InvoiceRecord) InvoiceRecordResponse {
	return InvoiceRecordResponse{
		ID:           rec.ID,
		DeviceID:     rec.DeviceID,
		InvoiceID:    rec.InvoiceID,
		UUID:         rec.UUID,
		DocumentType: string(rec.DocumentType),
		IssueDate:    rec.IssueDate,
		IssueTime:    rec.IssueTime,
		Counter:      rec.Counter,
		PreviousHash: rec.PreviousHash,
		ContentHash:  rec.ContentHash,
		InvoiceHash:  rec.InvoiceHash,
		Currency:     rec.Currency,
		Taxable:      rec.TaxableAmount,
		VAT:          rec.VATAmount,
		Total:        rec.TotalAmount,
		QRData:       rec.QRData,
		Status:       rec.Status,
		ClearedUUID:  rec.ClearedUUID,
		Warnings:     rec.Warnings,
		Errors:       rec.Errors,
		CreatedAt:    rec.CreatedAt,
	}
}

// InvoiceListResponse página de facturas de un dispositivo.
type InvoiceListResponse struct {
	Items []InvoiceRecordResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}

// ChainAuditResponse resultado de GET /api/invoices/audit.
type ChainAuditResponse struct {
	DeviceID string `json:"device_id"`
	Verified int    `json:"verified"`
	Intact   bool   `json:"intact"`
	Error    string `json:"error,omitempty"`
}
