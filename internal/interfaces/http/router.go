package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/application/auth"
	"github.com/jhoicas/zatca-einvoice/internal/application/billing"
	"github.com/jhoicas/zatca-einvoice/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	IssueInvoice *billing.IssueInvoiceUseCase
	InvoicePDF   *billing.PDFUseCase
	Auth         *auth.TokenUseCase
	JWTSecret    string
	VATRate      *decimal.Decimal
	ServiceName  string
	Mode         string // dev | simulation | production
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName, "mode": deps.Mode})
	})

	api := app.Group("/api")

	// Auth (clave de arranque)
	authHandler := NewAuthHandler(deps.Auth)
	api.Post("/auth/token", authHandler.Token)

	// Herramientas (público, sin estado)
	tools := api.Group("/tools")
	toolsHandler := NewToolsHandler(deps.VATRate)
	tools.Post("/qr/encode", toolsHandler.QREncode)
	tools.Post("/qr/decode", toolsHandler.QRDecode)
	tools.Post("/amounts", toolsHandler.Amounts)

	// Facturas (requieren Bearer Token)
	invoices := api.Group("/invoices", AuthMiddleware(deps.JWTSecret))
	invoiceHandler := NewInvoiceHandler(deps.IssueInvoice, deps.InvoicePDF)
	invoices.Post("/", RequireRole(jwt.RoleOperator, jwt.RoleAdmin), invoiceHandler.Create)
	invoices.Get("/", invoiceHandler.List)
	invoices.Get("/audit", RequireRole(jwt.RoleAdmin), invoiceHandler.Audit)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/xml", invoiceHandler.GetXML)
	invoices.Get("/:id/pdf", invoiceHandler.GetPDF)
}
