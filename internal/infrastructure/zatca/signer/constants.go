// Constantes para la firma XAdES de ZATCA (fase 2, integración).

package signer

// Namespaces XMLDSig / XAdES y de los componentes de firma UBL.
const (
	NamespaceDS    = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"
	NamespaceSig   = "urn:oasis:names:specification:ubl:schema:xsd:CommonSignatureComponents-2"
	NamespaceSac   = "urn:oasis:names:specification:ubl:schema:xsd:SignatureAggregateComponents-2"
	NamespaceSbc   = "urn:oasis:names:specification:ubl:schema:xsd:SignatureBasicComponents-2"
)

// Algoritmos.
const (
	AlgC14N11      = "http://www.w3.org/2006/12/xml-c14n11"
	AlgECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	AlgRSASHA256   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256      = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformXPath = "http://www.w3.org/TR/1999/REC-xpath-19991116"
	TypeSignedProp = "http://www.w3.org/2000/09/xmldsig#SignatureProperties"
)

// Transformaciones XPath del hash de factura: se excluyen extensiones, QR y cac:Signature.
var invoiceHashXPaths = []string{
	"not(//ancestor-or-self::ext:UBLExtensions)",
	"not(//ancestor-or-self::cac:Signature)",
	"not(//ancestor-or-self::cac:AdditionalDocumentReference[cbc:ID='QR'])",
}

// IDs de los elementos de la firma.
const (
	SignatureElementID     = "signature"
	InvoiceReferenceID     = "invoiceSignedData"
	SignedPropertiesID     = "xadesSignedProperties"
	SignatureInformationID = "urn:oasis:names:specification:ubl:signature:1"
	ReferencedSignatureID  = "urn:oasis:names:specification:ubl:signature:Invoice"
)

const (
	signingTimeLayout          = "2006-01-02T15:04:05"
	emptyExtensionContent      = "<ext:ExtensionContent></ext:ExtensionContent>"
	selfClosedExtensionContent = "<ext:ExtensionContent/>"
)
