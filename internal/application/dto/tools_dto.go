package dto

import "github.com/shopspring/decimal"

// QREncodeRequest campos del QR (tags 1 a 5). Extra admite tags adicionales (6..255).
type QREncodeRequest struct {
	SellerName   string            `json:"seller_name" validate:"required"`
	VATNumber    string            `json:"vat_number" validate:"required"`
	Timestamp    string            `json:"timestamp" validate:"required"`
	TotalWithVAT string            `json:"total_with_vat" validate:"required"`
	VATAmount    string            `json:"vat_amount" validate:"required"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// QREncodeResponse QR en base64.
type QREncodeResponse struct {
	QR string `json:"qr"`
}

// QRDecodeRequest body para POST /api/tools/qr/decode.
type QRDecodeRequest struct {
	QR string `json:"qr" validate:"required,base64"`
}

// QRDecodeResponse campos decodificados. Extra usa el número de tag como clave.
type QRDecodeResponse struct {
	SellerName   string            `json:"seller_name"`
	VATNumber    string            `json:"vat_number"`
	Timestamp    string            `json:"timestamp"`
	TotalWithVAT string            `json:"total_with_vat"`
	VATAmount    string            `json:"vat_amount"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// AmountsRequest body para POST /api/tools/amounts. Sin rate se usa la tasa estándar.
type AmountsRequest struct {
	Total decimal.Decimal  `json:"total"`
	Rate  *decimal.Decimal `json:"rate,omitempty"`
}

// AmountsResponse desglose del total con IVA incluido, a 2 decimales.
type AmountsResponse struct {
	Total   string `json:"total"`
	Taxable string `json:"taxable"`
	VAT     string `json:"vat"`
	Rate    string `json:"rate"`
}
