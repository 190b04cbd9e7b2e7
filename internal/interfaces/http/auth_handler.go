package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/zatca-einvoice/internal/application/auth"
	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
)

// HeaderAPIKey cabecera con la clave de arranque para emitir tokens.
const HeaderAPIKey = "X-API-Key"

// AuthHandler emite JWT para operadores de un dispositivo.
type AuthHandler struct {
	uc *auth.TokenUseCase
}

// NewAuthHandler construye el handler de auth.
func NewAuthHandler(uc *auth.TokenUseCase) *AuthHandler {
	return &AuthHandler{uc: uc}
}

// Token godoc
// @Summary      Emitir token de operador
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        X-API-Key  header  string            true  "clave de arranque"
// @Param        body       body    dto.TokenRequest  true  "operator_id, device_id, role"
// @Success      200   {object}  dto.TokenResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      401   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/auth/token [post]
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var in dto.TokenRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.IssueToken(c.Get(HeaderAPIKey), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
