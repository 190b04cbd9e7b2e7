package zatca_test

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
)

func sampleInvoice() *entity.Invoice {
	return &entity.Invoice{
		ID:           "INV-0001",
		UUID:         "3cf5ee18-ee25-44ea-a444-2c37ba7f28be",
		DocumentType: entity.DocumentSimplified,
		IssueDate:    "2024-01-01",
		IssueTime:    "10:00:00Z",
		Seller: entity.Party{
			Name:      "Test Company",
			VATNumber: "123456789012345",
			Address:   entity.Address{Street: "King Fahd Road", City: "Riyadh", PostalCode: "12345"},
		},
		Currency:                  "SAR",
		TotalAmountInclusiveOfTax: decimal.RequireFromString("100.00"),
		LineItems: []entity.LineItem{{
			ID: "1", Name: "Producto", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.RequireFromString("86.96"), UnitOfMeasure: "PCE", TaxCategory: "S",
		}},
		PreviousInvoiceHash: domzatca.GenesisHash,
		CounterValue:        1,
	}
}

func build(t *testing.T, inv *entity.Invoice) (*infrazatca.BuildResult, *etree.Element) {
	t.Helper()
	res, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: inv})
	require.NoError(t, err)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(res.XML))
	return res, doc.Root()
}

func text(root *etree.Element, path string) string {
	if el := root.FindElement(path); el != nil {
		return el.Text()
	}
	return ""
}

// ──────────────────────────────────────────────────────────────────────────────
// Estructura del documento
// ──────────────────────────────────────────────────────────────────────────────

func TestBuild_Simplificada(t *testing.T) {
	res, root := build(t, sampleInvoice())

	assert.Equal(t, "Invoice", root.Tag)
	assert.Equal(t, infrazatca.NsInvoice, root.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "UBLExtensions", root.ChildElements()[0].Tag, "ext:UBLExtensions es el primer hijo")
	assert.Equal(t, "reporting:1.0", text(root, "ProfileID"))
	assert.Equal(t, "INV-0001", text(root, "ID"))

	itc := root.FindElement("InvoiceTypeCode")
	require.NotNil(t, itc)
	assert.Equal(t, "388", itc.Text())
	assert.Equal(t, "0200000", itc.SelectAttrValue("name", ""))

	refs := root.SelectElements("AdditionalDocumentReference")
	require.Len(t, refs, 3)
	assert.Equal(t, []string{"ICV", "PIH", "QR"}, []string{
		refs[0].SelectElement("ID").Text(), refs[1].SelectElement("ID").Text(), refs[2].SelectElement("ID").Text(),
	})
	assert.Equal(t, "1", refs[0].SelectElement("UUID").Text())
	assert.Equal(t, domzatca.GenesisHash, text(refs[1], "Attachment/EmbeddedDocumentBinaryObject"))
	assert.Equal(t, res.QR, text(refs[2], "Attachment/EmbeddedDocumentBinaryObject"))

	assert.Equal(t, "Not Applicable", text(root, "AccountingCustomerParty/Party/PartyIdentification/ID"))
	assert.Equal(t, "10", text(root, "PaymentMeans/PaymentMeansCode"))
	assert.Equal(t, "2024-01-01", text(root, "Delivery/ActualDeliveryDate"))

	assert.Equal(t, "86.96", text(root, "LegalMonetaryTotal/TaxExclusiveAmount"))
	assert.Equal(t, "100.00", text(root, "LegalMonetaryTotal/PayableAmount"))
	assert.Equal(t, "13.04", text(root, "TaxTotal/TaxAmount"))
	assert.Equal(t, "15.00", text(root, "TaxTotal/TaxSubtotal/TaxCategory/Percent"))

	assert.Equal(t, "86.96", zatcaFmt(res.Amounts.Taxable))
	assert.Equal(t, "13.04", zatcaFmt(res.Amounts.VAT))
}

func zatcaFmt(d decimal.Decimal) string { return domzatca.FormatAmount(d) }

func TestBuild_TodosLosMontosLlevanMoneda(t *testing.T) {
	_, root := build(t, sampleInvoice())
	amountTags := map[string]bool{
		"TaxAmount": true, "TaxableAmount": true, "LineExtensionAmount": true, "TaxExclusiveAmount": true,
		"TaxInclusiveAmount": true, "PayableAmount": true, "RoundingAmount": true, "PriceAmount": true,
	}
	count := 0
	for _, el := range root.FindElements("//*") {
		if amountTags[el.Tag] {
			count++
			assert.Equal(t, "SAR", el.SelectAttrValue("currencyID", ""), "%s debe llevar currencyID", el.Tag)
		}
	}
	assert.Greater(t, count, 8)
}

func TestBuild_PlaceholderDeFirmaVacio(t *testing.T) {
	res, _ := build(t, sampleInvoice())
	assert.Equal(t, 1, strings.Count(string(res.XML), "<ext:ExtensionContent></ext:ExtensionContent>"))
	assert.True(t, strings.HasPrefix(string(res.XML), `<?xml version="1.0" encoding="UTF-8"?>`))
}

func TestBuild_Determinista(t *testing.T) {
	a, _ := build(t, sampleInvoice())
	b, _ := build(t, sampleInvoice())
	assert.Equal(t, a.XML, b.XML, "la misma factura produce los mismos bytes")
	assert.Equal(t, a.ContentHash, b.ContentHash)
}

func TestBuild_Estandar(t *testing.T) {
	inv := sampleInvoice()
	inv.DocumentType = entity.DocumentStandard
	inv.Buyer = &entity.Party{Name: "Cliente SA", VATNumber: "300000000000003", CRN: "1010010000"}
	_, root := build(t, inv)

	assert.Equal(t, "0100000", root.FindElement("InvoiceTypeCode").SelectAttrValue("name", ""))
	id := root.FindElement("AccountingCustomerParty/Party/PartyIdentification/ID")
	require.NotNil(t, id)
	assert.Equal(t, "CRN", id.SelectAttrValue("schemeID", ""))
	assert.Equal(t, "1010010000", id.Text())
	assert.Equal(t, "300000000000003", text(root, "AccountingCustomerParty/Party/PartyTaxScheme/CompanyID"))
	assert.Equal(t, "Cliente SA", text(root, "AccountingCustomerParty/Party/PartyLegalEntity/RegistrationName"))
	assert.Equal(t, "30", text(root, "PaymentMeans/PaymentMeansCode"))
}

func TestBuild_CompradorSinCRNNoUsaEsquemaCRN(t *testing.T) {
	inv := sampleInvoice()
	inv.DocumentType = entity.DocumentStandard
	inv.Buyer = &entity.Party{Name: "Cliente SA", VATNumber: "300000000000003"}
	_, root := build(t, inv)

	party := root.FindElement("AccountingCustomerParty/Party")
	require.NotNil(t, party)
	assert.Nil(t, party.FindElement("PartyIdentification"), "sin CRN no hay identificación CRN")
	assert.Equal(t, "300000000000003", text(party, "PartyTaxScheme/CompanyID"))
	for _, id := range root.FindElements("//PartyIdentification/ID") {
		if id.SelectAttrValue("schemeID", "") == "CRN" {
			assert.NotEqual(t, "300000000000003", id.Text(), "un número de IVA no es un CRN")
		}
	}
}

func TestBuild_TasaCeroExplicita(t *testing.T) {
	inv := sampleInvoice()
	inv.TotalAmountInclusiveOfTax = decimal.RequireFromString("86.96")
	zero := decimal.Zero
	res, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: inv, VATRate: &zero})
	require.NoError(t, err)
	assert.True(t, res.Amounts.VAT.IsZero(), "una tasa configurada de 0 no se reemplaza por 15")

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(res.XML))
	assert.Equal(t, "0.00", text(doc.Root(), "InvoiceLine/Item/ClassifiedTaxCategory/Percent"))

	// Sin tasa se aplica la estándar y el mismo total ya no cuadra.
	_, err = infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: inv})
	assert.ErrorIs(t, err, domzatca.ErrLineTotalMismatch)
}

func TestBuild_SubtotalesPorCategoriaEnOrden(t *testing.T) {
	inv := sampleInvoice()
	inv.TotalAmountInclusiveOfTax = decimal.RequireFromString("165")
	inv.LineItems = []entity.LineItem{
		{ID: "a", Name: "Exento", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("50"),
			UnitOfMeasure: "PCE", TaxCategory: "E", ExemptionReasonCode: "VATEX-SA-29", ExemptionReason: "Financial services"},
		{ID: "b", Name: "Gravado", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("100"),
			UnitOfMeasure: "PCE", TaxCategory: "S"},
	}
	_, root := build(t, inv)

	subs := root.FindElements("TaxTotal/TaxSubtotal")
	require.Len(t, subs, 2)
	assert.Equal(t, "S", text(subs[0], "TaxCategory/ID"))
	assert.Equal(t, "E", text(subs[1], "TaxCategory/ID"))
	assert.Equal(t, "VATEX-SA-29", text(subs[1], "TaxCategory/TaxExemptionReasonCode"))

	lines := root.SelectElements("InvoiceLine")
	require.Len(t, lines, 2)
	assert.Equal(t, "a", text(lines[0], "ID"), "las líneas conservan el orden de entrada")
	assert.Equal(t, "115.00", text(lines[1], "TaxTotal/RoundingAmount"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Errores
// ──────────────────────────────────────────────────────────────────────────────

func TestBuild_EstandarSinVATComprador(t *testing.T) {
	inv := sampleInvoice()
	inv.DocumentType = entity.DocumentStandard
	inv.Buyer = &entity.Party{Name: "Cliente SA"}
	_, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: inv})
	require.ErrorIs(t, err, domzatca.ErrInvalidInvoice)
	assert.Contains(t, err.Error(), "buyer.vatNumber")
}

func TestBuild_RupturaDeCadena(t *testing.T) {
	inv := sampleInvoice()
	state := &entity.ChainState{DeviceID: "d1", LastHash: "hash-previo", LastCounter: 1}
	_, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{
		Invoice: inv, State: state, VerifyLink: true,
	})
	assert.ErrorIs(t, err, domzatca.ErrChainBreak)
}

func TestBuild_MonedaDistinta(t *testing.T) {
	inv := sampleInvoice()
	inv.LineItems[0].Currency = "USD"
	_, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: inv})
	assert.ErrorIs(t, err, domzatca.ErrCurrencyMismatch)
}

func TestBuild_LineasNoCuadran(t *testing.T) {
	inv := sampleInvoice()
	inv.LineItems[0].UnitPrice = decimal.RequireFromString("10")
	_, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: inv})
	assert.ErrorIs(t, err, domzatca.ErrLineTotalMismatch)
}

func TestBuild_ContextoNulo(t *testing.T) {
	_, err := infrazatca.NewXMLBuilderService().Build(nil)
	assert.ErrorIs(t, err, domzatca.ErrInvalidInvoice)
}
