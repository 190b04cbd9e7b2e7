package billing

import (
	"context"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca/signer"
)

// TxRunner ejecuta fn en una transacción con el repositorio de facturas y el store de la cadena.
// Si fn devuelve error no queda ni la factura ni el avance de la cadena.
type TxRunner interface {
	RunIssue(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		chainStore repository.ChainStateStore,
	) error) error
}

// ClearanceTransport envía el documento firmado a ZATCA (clearance o reporting).
type ClearanceTransport interface {
	Submit(ctx context.Context, req infrazatca.SubmitRequest) (*infrazatca.ClearanceResult, error)
}

// DocumentSigner firma el XML sin firma producido por el builder.
type DocumentSigner interface {
	Sign(ctx context.Context, doc []byte) (*signer.Result, error)
}

// Archiver guarda el paquete firmado y devuelve su ubicación.
type Archiver interface {
	Archive(ctx context.Context, rec *entity.InvoiceRecord) (string, error)
}

// InvoicePDFGenerator genera la representación gráfica de una factura emitida.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, rec *entity.InvoiceRecord) ([]byte, error)
}
