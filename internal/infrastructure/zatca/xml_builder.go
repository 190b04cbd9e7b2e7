package zatca

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// Namespaces UBL 2.1 usados por ZATCA.
const (
	// Namespace por defecto (UBL Invoice)
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	// Common Aggregate Components
	NsCac = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	// Common Basic Components
	NsCbc = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	// Extension Components
	NsExt = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"

	// ExtensionURISignature identifica la extensión que aloja la firma XAdES.
	ExtensionURISignature = "urn:oasis:names:specification:ubl:dsig:enveloped:xades"
	// SignatureID referencia de cac:Signature.
	SignatureID = "urn:oasis:names:specification:ubl:signature:Invoice"
)

// IDs de AdditionalDocumentReference.
const (
	RefICV = "ICV"
	RefPIH = "PIH"
	RefQR  = "QR"
)

// XMLBuilderService construye el XML UBL 2.1 de la factura (sin firma XAdES).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Prepare ejecuta todas las validaciones previas al render y deriva montos, QR y hash.
// El orden es: campos obligatorios, eslabón de la cadena, moneda, montos y conciliación de líneas.
func (s *XMLBuilderService) Prepare(bctx *InvoiceBuildContext) (*BuildResult, error) {
	if bctx == nil || bctx.Invoice == nil {
		return nil, fmt.Errorf("%w: falta la factura en el contexto", domzatca.ErrInvalidInvoice)
	}
	inv := bctx.Invoice
	if err := domzatca.ValidateInvoice(inv); err != nil {
		return nil, err
	}
	if bctx.VerifyLink {
		if err := domzatca.CheckLink(inv, bctx.State); err != nil {
			return nil, err
		}
	}
	if err := domzatca.CheckCurrencies(inv); err != nil {
		return nil, err
	}
	totals, err := domzatca.DeriveTotals(inv, pkgzatca.StandardVATRate(bctx.VATRate))
	if err != nil {
		return nil, err
	}
	qr, err := domzatca.PayloadFromInvoice(inv, totals.Amounts).EncodeBase64()
	if err != nil {
		return nil, err
	}
	hash, err := domzatca.ContentHash(inv)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Amounts: totals.Amounts, Totals: totals, QR: qr, ContentHash: hash}, nil
}

// Build valida la factura y genera el []byte del documento Invoice según UBL 2.1.
// La salida es determinista: misma factura, mismos bytes.
func (s *XMLBuilderService) Build(bctx *InvoiceBuildContext) (*BuildResult, error) {
	res, err := s.Prepare(bctx)
	if err != nil {
		return nil, err
	}
	inv := bctx.Invoice
	cur := domzatca.DocumentCurrency(inv)

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	_ = enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)})
	root := xml.StartElement{
		Name: xml.Name{Local: "Invoice"},
		Attr: []xml.Attr{
			attr("xmlns", NsInvoice),
			attr("xmlns:cac", NsCac),
			attr("xmlns:cbc", NsCbc),
			attr("xmlns:ext", NsExt),
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ---- ext:UBLExtensions siempre como primer hijo de Invoice (el firmador inyecta aquí)
	writeUBLExtensions(enc)

	// ---- cbc: encabezado
	profile := pkgzatca.ProfileReporting
	subtype := pkgzatca.SubtypeSimplified
	if inv.IsStandard() {
		subtype = pkgzatca.SubtypeStandard
	}
	writeCbc(enc, "ProfileID", profile)
	writeCbc(enc, "ID", inv.ID)
	writeCbc(enc, "UUID", inv.UUID)
	writeCbc(enc, "IssueDate", inv.IssueDate)
	writeCbc(enc, "IssueTime", inv.IssueTime)
	writeCbcWithAttr(enc, "InvoiceTypeCode", pkgzatca.InvoiceTypeCodeTaxInvoice, "name", subtype)
	if inv.Note != "" {
		writeCbc(enc, "Note", inv.Note)
	}
	writeCbc(enc, "DocumentCurrencyCode", cur)
	writeCbc(enc, "TaxCurrencyCode", cur)

	// ---- cac:AdditionalDocumentReference ICV, PIH, QR (en ese orden)
	open(enc, "cac:AdditionalDocumentReference")
	writeCbc(enc, "ID", RefICV)
	writeCbc(enc, "UUID", strconv.FormatInt(inv.CounterValue, 10))
	closeTag(enc, "cac:AdditionalDocumentReference")
	writeAttachmentRef(enc, RefPIH, inv.PreviousInvoiceHash)
	writeAttachmentRef(enc, RefQR, res.QR)

	// ---- cac:Signature
	open(enc, "cac:Signature")
	writeCbc(enc, "ID", SignatureID)
	writeCbc(enc, "SignatureMethod", ExtensionURISignature)
	closeTag(enc, "cac:Signature")

	// ---- cac:AccountingSupplierParty
	open(enc, "cac:AccountingSupplierParty")
	writeParty(enc, &inv.Seller, true)
	closeTag(enc, "cac:AccountingSupplierParty")

	// ---- cac:AccountingCustomerParty
	writeCustomerParty(enc, inv)

	// ---- cac:Delivery
	delivery := inv.DeliveryDate
	if delivery == "" {
		delivery = inv.IssueDate
	}
	open(enc, "cac:Delivery")
	writeCbc(enc, "ActualDeliveryDate", delivery)
	closeTag(enc, "cac:Delivery")

	// ---- cac:PaymentMeans
	means := inv.PaymentMeansCode
	if means == "" {
		means = pkgzatca.PaymentMeansCash
		if inv.IsStandard() {
			means = pkgzatca.PaymentMeansCreditTransfer
		}
	}
	open(enc, "cac:PaymentMeans")
	writeCbc(enc, "PaymentMeansCode", means)
	closeTag(enc, "cac:PaymentMeans")

	// ---- cac:TaxTotal
	writeTaxTotal(enc, res.Totals, cur)

	// ---- cac:LegalMonetaryTotal
	open(enc, "cac:LegalMonetaryTotal")
	writeCbcAmount(enc, "LineExtensionAmount", res.Amounts.Taxable, cur)
	writeCbcAmount(enc, "TaxExclusiveAmount", res.Amounts.Taxable, cur)
	writeCbcAmount(enc, "TaxInclusiveAmount", res.Amounts.Total, cur)
	writeCbcAmount(enc, "PayableAmount", res.Amounts.Total, cur)
	closeTag(enc, "cac:LegalMonetaryTotal")

	// ---- cac:InvoiceLine (en el orden de entrada)
	for i, line := range inv.LineItems {
		writeInvoiceLine(enc, line, res.Totals.Lines[i], cur)
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	res.XML = buf.Bytes()
	return res, nil
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func open(enc *xml.Encoder, name string, attrs ...xml.Attr) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func closeTag(enc *xml.Encoder, name string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func writeCbc(enc *xml.Encoder, local, value string) {
	open(enc, "cbc:"+local)
	_ = enc.EncodeToken(xml.CharData(value))
	closeTag(enc, "cbc:"+local)
}

func writeCbcWithAttr(enc *xml.Encoder, local, value, attrLocal, attrValue string) {
	open(enc, "cbc:"+local, attr(attrLocal, attrValue))
	_ = enc.EncodeToken(xml.CharData(value))
	closeTag(enc, "cbc:"+local)
}

func writeCbcAmount(enc *xml.Encoder, local string, value decimal.Decimal, currency string) {
	writeCbcWithAttr(enc, local, domzatca.FormatAmount(value), "currencyID", currency)
}

// writeUBLExtensions escribe la extensión de firma con ExtensionContent vacío.
// El firmador reemplaza exactamente ese elemento vacío por el bloque de firma.
func writeUBLExtensions(enc *xml.Encoder) {
	open(enc, "ext:UBLExtensions")
	open(enc, "ext:UBLExtension")
	open(enc, "ext:ExtensionURI")
	_ = enc.EncodeToken(xml.CharData(ExtensionURISignature))
	closeTag(enc, "ext:ExtensionURI")
	open(enc, "ext:ExtensionContent")
	closeTag(enc, "ext:ExtensionContent")
	closeTag(enc, "ext:UBLExtension")
	closeTag(enc, "ext:UBLExtensions")
}

func writeAttachmentRef(enc *xml.Encoder, id, value string) {
	open(enc, "cac:AdditionalDocumentReference")
	writeCbc(enc, "ID", id)
	open(enc, "cac:Attachment")
	writeCbcWithAttr(enc, "EmbeddedDocumentBinaryObject", value, "mimeCode", "text/plain")
	closeTag(enc, "cac:Attachment")
	closeTag(enc, "cac:AdditionalDocumentReference")
}

// writeCustomerParty: en la simplificada el comprador es opcional y se identifica con NAT
// (o "Not Applicable"); en la estándar el bloque es completo.
func writeCustomerParty(enc *xml.Encoder, inv *entity.Invoice) {
	open(enc, "cac:AccountingCustomerParty")
	if inv.IsStandard() {
		writeParty(enc, inv.Buyer, false)
	} else {
		id := pkgzatca.NotApplicable
		if inv.Buyer != nil && inv.Buyer.VATNumber != "" {
			id = inv.Buyer.VATNumber
		}
		open(enc, "cac:Party")
		open(enc, "cac:PartyIdentification")
		writeCbcWithAttr(enc, "ID", id, "schemeID", pkgzatca.SchemeNAT)
		closeTag(enc, "cac:PartyIdentification")
		if inv.Buyer != nil && inv.Buyer.Name != "" {
			open(enc, "cac:PartyLegalEntity")
			writeCbc(enc, "RegistrationName", inv.Buyer.Name)
			closeTag(enc, "cac:PartyLegalEntity")
		}
		closeTag(enc, "cac:Party")
	}
	closeTag(enc, "cac:AccountingCustomerParty")
}

func writeParty(enc *xml.Encoder, p *entity.Party, seller bool) {
	open(enc, "cac:Party")

	// El número de IVA va en PartyTaxScheme; PartyIdentification solo lleva el CRN.
	if p.CRN != "" {
		open(enc, "cac:PartyIdentification")
		writeCbcWithAttr(enc, "ID", p.CRN, "schemeID", pkgzatca.SchemeCRN)
		closeTag(enc, "cac:PartyIdentification")
	}

	if seller || !p.Address.Empty() {
		writePostalAddress(enc, p.Address)
	}

	open(enc, "cac:PartyTaxScheme")
	writeCbc(enc, "CompanyID", p.VATNumber)
	open(enc, "cac:TaxScheme")
	writeCbc(enc, "ID", "VAT")
	closeTag(enc, "cac:TaxScheme")
	closeTag(enc, "cac:PartyTaxScheme")

	open(enc, "cac:PartyLegalEntity")
	writeCbc(enc, "RegistrationName", p.Name)
	closeTag(enc, "cac:PartyLegalEntity")

	closeTag(enc, "cac:Party")
}

func writePostalAddress(enc *xml.Encoder, a entity.Address) {
	open(enc, "cac:PostalAddress")
	optional := []struct{ local, value string }{
		{"StreetName", a.Street},
		{"BuildingNumber", a.BuildingNumber},
		{"PlotIdentification", a.PlotIdentification},
		{"CitySubdivisionName", a.District},
		{"CityName", a.City},
		{"PostalZone", a.PostalCode},
	}
	for _, f := range optional {
		if f.value != "" {
			writeCbc(enc, f.local, f.value)
		}
	}
	country := a.CountryCode
	if country == "" {
		country = pkgzatca.CountrySA
	}
	open(enc, "cac:Country")
	writeCbc(enc, "IdentificationCode", country)
	closeTag(enc, "cac:Country")
	closeTag(enc, "cac:PostalAddress")
}

// writeTaxTotal emite dos cac:TaxTotal: el primero con los subtotales por categoría
// (orden S, Z, E, O) y el segundo solo con el monto en la moneda del impuesto.
func writeTaxTotal(enc *xml.Encoder, totals *domzatca.InvoiceTotals, cur string) {
	open(enc, "cac:TaxTotal")
	writeCbcAmount(enc, "TaxAmount", totals.VAT, cur)
	for _, ct := range totals.Categories {
		open(enc, "cac:TaxSubtotal")
		writeCbcAmount(enc, "TaxableAmount", ct.Taxable, cur)
		writeCbcAmount(enc, "TaxAmount", ct.VAT, cur)
		open(enc, "cac:TaxCategory")
		open(enc, "cbc:ID", attr("schemeID", "UN/ECE 5305"), attr("schemeAgencyID", "6"))
		_ = enc.EncodeToken(xml.CharData(ct.Category))
		closeTag(enc, "cbc:ID")
		writeCbc(enc, "Percent", domzatca.FormatRate(ct.Rate))
		if ct.Category != pkgzatca.VATCategoryStandard {
			if ct.ExemptionReasonCode != "" {
				writeCbc(enc, "TaxExemptionReasonCode", ct.ExemptionReasonCode)
			}
			if ct.ExemptionReason != "" {
				writeCbc(enc, "TaxExemptionReason", ct.ExemptionReason)
			}
		}
		writeTaxScheme(enc)
		closeTag(enc, "cac:TaxCategory")
		closeTag(enc, "cac:TaxSubtotal")
	}
	closeTag(enc, "cac:TaxTotal")

	open(enc, "cac:TaxTotal")
	writeCbcAmount(enc, "TaxAmount", totals.VAT, cur)
	closeTag(enc, "cac:TaxTotal")
}

func writeTaxScheme(enc *xml.Encoder) {
	open(enc, "cac:TaxScheme")
	open(enc, "cbc:ID", attr("schemeID", "UN/ECE 5153"), attr("schemeAgencyID", "6"))
	_ = enc.EncodeToken(xml.CharData("VAT"))
	closeTag(enc, "cbc:ID")
	closeTag(enc, "cac:TaxScheme")
}

func writeInvoiceLine(enc *xml.Encoder, line entity.LineItem, lt domzatca.LineTotal, cur string) {
	open(enc, "cac:InvoiceLine")
	writeCbc(enc, "ID", line.ID)
	writeCbcWithAttr(enc, "InvoicedQuantity", line.Quantity.String(), "unitCode", line.UnitOfMeasure)
	writeCbcAmount(enc, "LineExtensionAmount", lt.Net, cur)

	open(enc, "cac:TaxTotal")
	writeCbcAmount(enc, "TaxAmount", lt.VAT, cur)
	writeCbcAmount(enc, "RoundingAmount", lt.Rounded, cur)
	closeTag(enc, "cac:TaxTotal")

	// cac:Item
	open(enc, "cac:Item")
	writeCbc(enc, "Name", line.Name)
	open(enc, "cac:ClassifiedTaxCategory")
	writeCbc(enc, "ID", line.TaxCategory)
	writeCbc(enc, "Percent", domzatca.FormatRate(lt.Rate))
	writeTaxScheme(enc)
	closeTag(enc, "cac:ClassifiedTaxCategory")
	closeTag(enc, "cac:Item")

	// cac:Price
	open(enc, "cac:Price")
	writeCbcWithAttr(enc, "PriceAmount", formatPrice(line.UnitPrice), "currencyID", cur)
	closeTag(enc, "cac:Price")

	closeTag(enc, "cac:InvoiceLine")
}

// formatPrice conserva la precisión del precio unitario si supera 2 decimales.
func formatPrice(d decimal.Decimal) string {
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return d.String()
	}
	return d.StringFixed(2)
}
