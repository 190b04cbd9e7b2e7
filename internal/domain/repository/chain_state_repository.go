package repository

import (
	"context"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
)

// ChainStateStore guarda el último hash y contador emitidos por dispositivo.
type ChainStateStore interface {
	// Load devuelve (nil, nil) si el dispositivo aún no ha emitido facturas (génesis).
	Load(ctx context.Context, deviceID string) (*entity.ChainState, error)

	// Save avanza el estado a (hash, counter). Solo acepta counter == último + 1;
	// cualquier otro valor devuelve domain.ErrConflict y no modifica nada.
	Save(ctx context.Context, deviceID, hash string, counter int64) error
}
