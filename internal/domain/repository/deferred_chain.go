package repository

import (
	"context"
	"fmt"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
)

var _ ChainStateStore = (*DeferredChain)(nil)

// DeferredChain envuelve un ChainStateStore que no participa en la transacción de la
// factura. Save valida el contador contra el store y deja el avance pendiente; Apply
// lo escribe una vez confirmada la factura.
type DeferredChain struct {
	store   ChainStateStore
	pending *pendingLink
}

type pendingLink struct {
	deviceID string
	hash     string
	counter  int64
}

// NewDeferredChain construye el envoltorio sobre store.
func NewDeferredChain(store ChainStateStore) *DeferredChain {
	return &DeferredChain{store: store}
}

// Load lee el estado confirmado del store.
func (d *DeferredChain) Load(ctx context.Context, deviceID string) (*entity.ChainState, error) {
	return d.store.Load(ctx, deviceID)
}

// Save aplica la regla counter == último + 1 sin escribir nada.
func (d *DeferredChain) Save(ctx context.Context, deviceID, hash string, counter int64) error {
	if deviceID == "" || hash == "" || counter < 1 {
		return fmt.Errorf("%w: estado de cadena incompleto", domain.ErrInvalidInput)
	}
	if d.pending != nil {
		return fmt.Errorf("%w: ya hay un avance pendiente para %s", domain.ErrConflict, d.pending.deviceID)
	}
	cur, err := d.store.Load(ctx, deviceID)
	if err != nil {
		return err
	}
	var last int64
	if cur != nil {
		last = cur.LastCounter
	}
	if counter != last+1 {
		return fmt.Errorf("%w: el contador %d no sigue al último guardado del dispositivo %s",
			domain.ErrConflict, counter, deviceID)
	}
	d.pending = &pendingLink{deviceID: deviceID, hash: hash, counter: counter}
	return nil
}

// Pending devuelve el eslabón sin aplicar, si lo hay.
func (d *DeferredChain) Pending() (deviceID string, counter int64, ok bool) {
	if d.pending == nil {
		return "", 0, false
	}
	return d.pending.deviceID, d.pending.counter, true
}

// Apply escribe el avance pendiente en el store. Sin avance pendiente no hace nada.
func (d *DeferredChain) Apply(ctx context.Context) error {
	if d.pending == nil {
		return nil
	}
	p := d.pending
	if err := d.store.Save(ctx, p.deviceID, p.hash, p.counter); err != nil {
		return err
	}
	d.pending = nil
	return nil
}
