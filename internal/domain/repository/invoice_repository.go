package repository

import (
	"context"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para facturas emitidas.
type InvoiceRepository interface {
	Create(ctx context.Context, rec *entity.InvoiceRecord) error
	// Update actualiza los campos del resultado de clearance:
	// status, cleared_uuid, warnings, errors y el XML devuelto por la autoridad.
	Update(ctx context.Context, rec *entity.InvoiceRecord) error
	GetByID(ctx context.Context, id string) (*entity.InvoiceRecord, error)
	ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]*entity.InvoiceRecord, error)
	// ListByDeviceAfter pagina por cursor en orden de contador ascendente: devuelve
	// hasta limit facturas con counter > afterCounter.
	ListByDeviceAfter(ctx context.Context, deviceID string, afterCounter int64, limit int) ([]*entity.InvoiceRecord, error)
	// DeleteLink borra la factura de un eslabón que no llegó a encadenarse.
	// Sin fila devuelve domain.ErrNotFound.
	DeleteLink(ctx context.Context, deviceID string, counter int64) error
}
