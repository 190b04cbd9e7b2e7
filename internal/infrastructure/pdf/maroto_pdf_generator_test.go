package pdf_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/pdf"
)

func sampleRecord(docType entity.DocumentType) *entity.InvoiceRecord {
	inv := entity.Invoice{
		ID:           "INV-0001",
		UUID:         "3cf5ee18-ee25-44ea-a444-2c37ba7f28be",
		DocumentType: docType,
		IssueDate:    "2024-01-01",
		IssueTime:    "10:00:00Z",
		Seller: entity.Party{
			Name:      "Test Company",
			VATNumber: "123456789012345",
			Address:   entity.Address{Street: "King Fahd Rd", BuildingNumber: "1234", City: "Riyadh", PostalCode: "12345"},
		},
		Currency:                  "SAR",
		TotalAmountInclusiveOfTax: decimal.RequireFromString("1150.00"),
		LineItems: []entity.LineItem{
			{ID: "1", Name: "Servicio de consultoría", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("500.00"), UnitOfMeasure: "HUR", TaxCategory: "S"},
		},
		PreviousInvoiceHash: domzatca.GenesisHash,
		CounterValue:        1,
	}
	if docType == entity.DocumentStandard {
		inv.Buyer = &entity.Party{Name: "Cliente SA", VATNumber: "300000000000003", CRN: "1010010000"}
	}
	return &entity.InvoiceRecord{
		ID:            inv.UUID,
		DeviceID:      "egs-1",
		InvoiceID:     inv.ID,
		UUID:          inv.UUID,
		DocumentType:  docType,
		Counter:       1,
		InvoiceHash:   "bm90LWEtcmVhbC1oYXNo",
		Currency:      "SAR",
		TaxableAmount: decimal.RequireFromString("1000.00"),
		VATAmount:     decimal.RequireFromString("150.00"),
		TotalAmount:   decimal.RequireFromString("1150.00"),
		QRData:        "AQxUZXN0IENvbXBhbnk=",
		Invoice:       inv,
		Status:        entity.StatusSigned,
	}
}

// ─────────────────────────────────────────────────────────────────────────────

func TestGenerateInvoicePDF_Simplificada(t *testing.T) {
	gen := pdf.NewMarotoPDFGenerator(nil)

	out, err := gen.GenerateInvoicePDF(context.Background(), sampleRecord(entity.DocumentSimplified))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), "la salida debe ser un PDF")
}

func TestGenerateInvoicePDF_EstandarConComprador(t *testing.T) {
	rate := decimal.NewFromInt(15)
	gen := pdf.NewMarotoPDFGenerator(&rate)
	rec := sampleRecord(entity.DocumentStandard)
	rec.Status = entity.StatusCleared
	rec.ClearedUUID = rec.UUID

	out, err := gen.GenerateInvoicePDF(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateInvoicePDF_Errores(t *testing.T) {
	gen := pdf.NewMarotoPDFGenerator(nil)

	_, err := gen.GenerateInvoicePDF(context.Background(), nil)
	assert.Error(t, err, "registro nulo")

	rec := sampleRecord(entity.DocumentSimplified)
	rec.Invoice.LineItems = nil
	_, err = gen.GenerateInvoicePDF(context.Background(), rec)
	assert.ErrorIs(t, err, domzatca.ErrInvalidInvoice, "sin líneas no hay totales")
}
