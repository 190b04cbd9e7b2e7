package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	"github.com/jhoicas/zatca-einvoice/internal/domain"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// ToolsHandler utilidades públicas sin estado: QR TLV y desglose de IVA.
type ToolsHandler struct {
	vatRate decimal.Decimal
}

// NewToolsHandler construye el handler. vatRate nil usa la tasa estándar.
func NewToolsHandler(vatRate *decimal.Decimal) *ToolsHandler {
	return &ToolsHandler{vatRate: pkgzatca.StandardVATRate(vatRate)}
}

// QREncode godoc
// @Summary      Codificar QR TLV
// @Tags         tools
// @Accept       json
// @Produce      json
// @Param        body  body  dto.QREncodeRequest  true  "campos del QR"
// @Success      200   {object}  dto.QREncodeResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/tools/qr/encode [post]
func (h *ToolsHandler) QREncode(c *fiber.Ctx) error {
	var in dto.QREncodeRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := dto.Validate(&in); err != nil {
		return writeError(c, err)
	}
	p := domzatca.QRPayload{
		SellerName:   in.SellerName,
		VATNumber:    in.VATNumber,
		Timestamp:    in.Timestamp,
		TotalWithVAT: in.TotalWithVAT,
		VATAmount:    in.VATAmount,
	}
	for k, v := range in.Extra {
		tag, err := strconv.Atoi(k)
		if err != nil || tag <= int(domzatca.TagVATAmount) || tag > 255 {
			return writeError(c, fmt.Errorf("%w: tag extra %q fuera de 6..255", domain.ErrInvalidInput, k))
		}
		p = p.WithExtra(byte(tag), v)
	}
	qr, err := p.EncodeBase64()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.QREncodeResponse{QR: qr})
}

// QRDecode godoc
// @Summary      Decodificar QR TLV
// @Tags         tools
// @Accept       json
// @Produce      json
// @Param        body  body  dto.QRDecodeRequest  true  "QR en base64"
// @Success      200   {object}  dto.QRDecodeResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/tools/qr/decode [post]
func (h *ToolsHandler) QRDecode(c *fiber.Ctx) error {
	var in dto.QRDecodeRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := dto.Validate(&in); err != nil {
		return writeError(c, err)
	}
	p, err := domzatca.DecodeBase64(in.QR)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.QRDecodeResponse{
		SellerName:   p.SellerName,
		VATNumber:    p.VATNumber,
		Timestamp:    p.Timestamp,
		TotalWithVAT: p.TotalWithVAT,
		VATAmount:    p.VATAmount,
	}
	if len(p.Extra) > 0 {
		out.Extra = make(map[string]string, len(p.Extra))
		for tag, v := range p.Extra {
			out.Extra[strconv.Itoa(int(tag))] = v
		}
	}
	return c.JSON(out)
}

// Amounts godoc
// @Summary      Desglosar total con IVA incluido
// @Tags         tools
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AmountsRequest  true  "total y tasa opcional"
// @Success      200   {object}  dto.AmountsResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/tools/amounts [post]
func (h *ToolsHandler) Amounts(c *fiber.Ctx) error {
	var in dto.AmountsRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	rate := h.vatRate
	if in.Rate != nil {
		rate = *in.Rate
	}
	a, err := domzatca.SplitTotal(in.Total, rate)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.AmountsResponse{
		Total:   domzatca.FormatAmount(a.Total),
		Taxable: domzatca.FormatAmount(a.Taxable),
		VAT:     domzatca.FormatAmount(a.VAT),
		Rate:    domzatca.FormatRate(rate),
	})
}
