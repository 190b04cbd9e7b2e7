package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

// PDFUseCase genera la representación gráfica (PDF) de una factura emitida.
// Solo se permite si la factura ya está firmada (tiene QR).
type PDFUseCase struct {
	invoiceRepo repository.InvoiceRepository
	generator   InvoicePDFGenerator
}

// NewPDFUseCase construye el caso de uso inyectando sus dependencias.
func NewPDFUseCase(invoiceRepo repository.InvoiceRepository, generator InvoicePDFGenerator) *PDFUseCase {
	return &PDFUseCase{invoiceRepo: invoiceRepo, generator: generator}
}

// Render devuelve el PDF y el nombre de archivo sugerido.
//
// Retorna:
//   - domain.ErrNotFound     si la factura no existe.
//   - domain.ErrForbidden    si la factura es de otro dispositivo (deviceID vacío no filtra).
//   - domain.ErrInvalidInput si la factura no tiene QR.
func (uc *PDFUseCase) Render(ctx context.Context, deviceID, id string) (pdfBytes []byte, filename string, err error) {
	// ── 1. Cargar factura ─────────────────────────────────────────────────────
	rec, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener factura: %w", err)
	}
	if rec == nil {
		return nil, "", domain.ErrNotFound
	}
	if deviceID != "" && rec.DeviceID != deviceID {
		return nil, "", domain.ErrForbidden
	}

	// ── 2. Validar que ya fue firmada ─────────────────────────────────────────
	if rec.QRData == "" || rec.Status == entity.StatusRejected {
		return nil, "", fmt.Errorf("%w: la factura está en estado %s y no tiene representación gráfica",
			domain.ErrInvalidInput, rec.Status)
	}

	// ── 3. Generar PDF ────────────────────────────────────────────────────────
	pdfBytes, err = uc.generator.GenerateInvoicePDF(ctx, rec)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	return pdfBytes, fmt.Sprintf("factura_%s.pdf", rec.InvoiceID), nil
}
