package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/zatca-einvoice/internal/application/auth"
	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	"github.com/jhoicas/zatca-einvoice/internal/domain"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Los tipos específicos van antes que ErrInvalidInvoice: la validación agregada
// los envuelve a todos.
var errorMappings = []errorMapping{
	{domzatca.ErrChainBreak, fiber.StatusConflict, "CHAIN_BREAK"},
	{domzatca.ErrLineTotalMismatch, fiber.StatusUnprocessableEntity, "LINE_TOTAL_MISMATCH"},
	{domzatca.ErrCurrencyMismatch, fiber.StatusUnprocessableEntity, "CURRENCY_MISMATCH"},
	{domzatca.ErrInvalidAmount, fiber.StatusUnprocessableEntity, "INVALID_AMOUNT"},
	{domzatca.ErrInvalidRate, fiber.StatusUnprocessableEntity, "INVALID_RATE"},
	{domzatca.ErrTruncatedRecord, fiber.StatusUnprocessableEntity, "TRUNCATED_RECORD"},
	{domzatca.ErrFieldTooLong, fiber.StatusUnprocessableEntity, "FIELD_TOO_LONG"},
	{domzatca.ErrCertificateMismatch, fiber.StatusUnprocessableEntity, "CERTIFICATE_MISMATCH"},
	{domzatca.ErrInvalidInvoice, fiber.StatusUnprocessableEntity, "INVALID_INVOICE"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrDeviceBusy, fiber.StatusLocked, "DEVICE_BUSY"},
	{domain.ErrConflict, fiber.StatusConflict, "CHAIN_CONFLICT"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{infrazatca.ErrTransport, fiber.StatusBadGateway, "TRANSPORT"},
	{auth.ErrDisabled, fiber.StatusServiceUnavailable, "AUTH_DISABLED"},
}

// writeError traduce un error de dominio a dto.ErrorResponse con su status HTTP.
func writeError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			resp := dto.ErrorResponse{Code: m.code, Message: err.Error()}
			var ie *dto.InputError
			if errors.As(err, &ie) {
				resp.Fields = ie.Fields
			}
			return c.Status(m.status).JSON(resp)
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
