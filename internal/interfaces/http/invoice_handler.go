package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/zatca-einvoice/internal/application/billing"
	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/pkg/jwt"
)

// InvoiceHandler maneja la emisión y consulta de facturas (protegido).
// Cada token opera sobre su propio dispositivo; el rol admin puede leer cualquiera.
type InvoiceHandler struct {
	issue *billing.IssueInvoiceUseCase
	pdf   *billing.PDFUseCase
}

// NewInvoiceHandler construye el handler. pdf puede ser nil (endpoint deshabilitado).
func NewInvoiceHandler(issue *billing.IssueInvoiceUseCase, pdf *billing.PDFUseCase) *InvoiceHandler {
	return &InvoiceHandler{issue: issue, pdf: pdf}
}

// Create godoc
// @Summary      Emitir factura
// @Description  Encadena, firma y envía la factura a ZATCA (clearance o reporting según el tipo).
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        body  body  dto.IssueInvoiceRequest  true  "factura"
// @Success      201   {object}  dto.InvoiceRecordResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      423   {object}  dto.ErrorResponse
// @Router       /api/invoices [post]
func (h *InvoiceHandler) Create(c *fiber.Ctx) error {
	deviceID := GetDeviceID(c)
	if deviceID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token sin dispositivo"})
	}
	var in dto.IssueInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if err := dto.Validate(&in); err != nil {
		return writeError(c, err)
	}
	rec, err := h.issue.Issue(c.Context(), billing.IssueCommand{
		DeviceID:     deviceID,
		Invoice:      in.ToEntity(),
		ComplianceID: in.ComplianceID,
	})
	if err != nil {
		return writeError(c, err)
	}
	status := fiber.StatusCreated
	if rec.Status == entity.StatusRejected {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(dto.RecordResponse(rec))
}

// List godoc
// @Summary      Listar facturas del dispositivo
// @Tags         invoices
// @Produce      json
// @Param        limit   query  int  false  "máximo 100"
// @Param        offset  query  int  false  "desplazamiento"
// @Success      200   {object}  dto.InvoiceListResponse
// @Router       /api/invoices [get]
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badBody(c)
	}
	page.Normalize()
	if err := dto.Validate(&page); err != nil {
		return writeError(c, err)
	}
	recs, err := h.issue.ListRecords(c.Context(), GetDeviceID(c), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	out := dto.InvoiceListResponse{
		Items: make([]dto.InvoiceRecordResponse, 0, len(recs)),
		Page:  dto.NewPageResponse(page, len(recs)),
	}
	for _, rec := range recs {
		out.Items = append(out.Items, dto.RecordResponse(rec))
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener factura
// @Tags         invoices
// @Produce      json
// @Param        id   path  string  true  "id de la factura"
// @Success      200  {object}  dto.InvoiceRecordResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *fiber.Ctx) error {
	rec, err := h.record(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.RecordResponse(rec))
}

// GetXML devuelve el XML firmado, o el liberado por ZATCA con ?variant=cleared.
// GET /api/invoices/:id/xml
func (h *InvoiceHandler) GetXML(c *fiber.Ctx) error {
	rec, err := h.record(c)
	if err != nil {
		return writeError(c, err)
	}
	body := rec.SignedXML
	if c.Query("variant") == "cleared" {
		if len(rec.ClearedXML) == 0 {
			return writeError(c, fmt.Errorf("%w: la factura no tiene XML liberado", domain.ErrNotFound))
		}
		body = rec.ClearedXML
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s.xml"`, rec.UUID))
	return c.Send(body)
}

// GetPDF godoc
// @Summary      Representación gráfica (PDF) de la factura
// @Tags         invoices
// @Produce      application/pdf
// @Param        id   path  string  true  "id de la factura"
// @Success      200
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) GetPDF(c *fiber.Ctx) error {
	if h.pdf == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "PDF_DISABLED", Message: "generación de PDF no disponible"})
	}
	pdfBytes, filename, err := h.pdf.Render(c.Context(), h.scopeDevice(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, filename))
	return c.Send(pdfBytes)
}

// Audit recorre la cadena del dispositivo y reporta el primer eslabón roto.
// GET /api/invoices/audit
func (h *InvoiceHandler) Audit(c *fiber.Ctx) error {
	deviceID := GetDeviceID(c)
	if GetRole(c) == jwt.RoleAdmin && c.Query("device_id") != "" {
		deviceID = c.Query("device_id")
	}
	n, err := h.issue.AuditChain(c.Context(), deviceID)
	out := dto.ChainAuditResponse{DeviceID: deviceID, Verified: n, Intact: err == nil}
	if err != nil {
		out.Error = err.Error()
	}
	return c.JSON(out)
}

func (h *InvoiceHandler) record(c *fiber.Ctx) (*entity.InvoiceRecord, error) {
	id := c.Params("id")
	if id == "" {
		return nil, fmt.Errorf("%w: id requerido", domain.ErrInvalidInput)
	}
	rec, err := h.issue.GetRecord(c.Context(), id)
	if err != nil {
		return nil, err
	}
	if dev := h.scopeDevice(c); dev != "" && rec.DeviceID != dev {
		return nil, domain.ErrForbidden
	}
	return rec, nil
}

// scopeDevice dispositivo al que se restringe la lectura ("" = sin restricción).
func (h *InvoiceHandler) scopeDevice(c *fiber.Ctx) string {
	if GetRole(c) == jwt.RoleAdmin {
		return ""
	}
	return GetDeviceID(c)
}
