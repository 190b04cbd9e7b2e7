package zatca_test

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
)

const (
	testSellerName = "Test Company"
	testSellerVAT  = "123456789012345"
	testBuyerVAT   = "300000000000003"
)

// sampleInvoice factura simplificada de 100.00 SAR al 15 % con una línea de 86.96.
func sampleInvoice() *entity.Invoice {
	return &entity.Invoice{
		ID:           "INV-0001",
		UUID:         "3cf5ee18-ee25-44ea-a444-2c37ba7f28be",
		DocumentType: entity.DocumentSimplified,
		IssueDate:    "2024-01-01",
		IssueTime:    "10:00:00Z",
		Seller: entity.Party{
			Name:      testSellerName,
			VATNumber: testSellerVAT,
		},
		Currency:                  "SAR",
		TotalAmountInclusiveOfTax: decimal.RequireFromString("100.00"),
		LineItems: []entity.LineItem{{
			ID:            "1",
			Name:          "Producto",
			Quantity:      decimal.NewFromInt(1),
			UnitPrice:     decimal.RequireFromString("86.96"),
			UnitOfMeasure: "PCE",
			TaxCategory:   "S",
		}},
		PreviousInvoiceHash: zatca.GenesisHash,
		CounterValue:        1,
	}
}
