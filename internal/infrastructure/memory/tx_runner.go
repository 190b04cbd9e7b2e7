package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

// TxRunner ejecuta fn sobre los stores en memoria con semántica de transacción:
// el avance de la cadena se aplica al terminar fn, y ante cualquier fallo se borran
// las facturas que fn llegó a crear.
type TxRunner struct {
	Invoices repository.InvoiceRepository
	Chain    repository.ChainStateStore
}

// RunIssue cumple billing.TxRunner.
func (r *TxRunner) RunIssue(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	chainStore repository.ChainStateStore,
) error) error {
	tracked := &trackedInvoices{InvoiceRepository: r.Invoices}
	deferred := repository.NewDeferredChain(r.Chain)
	if err := fn(tracked, deferred); err != nil {
		return tracked.rollback(ctx, err)
	}
	if err := deferred.Apply(ctx); err != nil {
		return tracked.rollback(ctx, fmt.Errorf("avanzar cadena: %w", err))
	}
	return nil
}

type createdLink struct {
	deviceID string
	counter  int64
}

// trackedInvoices recuerda lo creado dentro de RunIssue para poder deshacerlo.
type trackedInvoices struct {
	repository.InvoiceRepository
	created []createdLink
}

func (t *trackedInvoices) Create(ctx context.Context, rec *entity.InvoiceRecord) error {
	if err := t.InvoiceRepository.Create(ctx, rec); err != nil {
		return err
	}
	t.created = append(t.created, createdLink{deviceID: rec.DeviceID, counter: rec.Counter})
	return nil
}

func (t *trackedInvoices) rollback(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	errs := []error{cause}
	for i := len(t.created) - 1; i >= 0; i-- {
		l := t.created[i]
		if err := t.InvoiceRepository.DeleteLink(ctx, l.deviceID, l.counter); err != nil {
			errs = append(errs, fmt.Errorf("borrar factura %s/%d: %w", l.deviceID, l.counter, err))
		}
	}
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}
