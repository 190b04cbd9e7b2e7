package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

var _ repository.ChainStateStore = (*ChainStateRepo)(nil)

// ChainStateRepo implementación de ChainStateStore (usable con pool o tx).
type ChainStateRepo struct {
	q Querier
}

// NewChainStateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewChainStateRepository(q Querier) *ChainStateRepo {
	return &ChainStateRepo{q: q}
}

// Load devuelve nil, nil si el dispositivo no tiene facturas.
func (r *ChainStateRepo) Load(ctx context.Context, deviceID string) (*entity.ChainState, error) {
	const q = `
		SELECT device_id, last_hash, last_counter, updated_at
		FROM chain_states WHERE device_id = $1`
	var st entity.ChainState
	err := r.q.QueryRow(ctx, q, deviceID).Scan(&st.DeviceID, &st.LastHash, &st.LastCounter, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chain_state: %w", err)
	}
	return &st, nil
}

// Save avanza el eslabón solo si counter es el siguiente del guardado (compare-and-set en SQL).
func (r *ChainStateRepo) Save(ctx context.Context, deviceID, hash string, counter int64) error {
	if deviceID == "" || hash == "" || counter < 1 {
		return fmt.Errorf("%w: estado de cadena incompleto", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()

	var q string
	if counter == 1 {
		q = `
			INSERT INTO chain_states (device_id, last_hash, last_counter, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (device_id) DO NOTHING`
	} else {
		q = `
			UPDATE chain_states
			SET last_hash = $2, last_counter = $3, updated_at = $4
			WHERE device_id = $1 AND last_counter = $3 - 1`
	}
	tag, err := r.q.Exec(ctx, q, deviceID, hash, counter, now)
	if err != nil {
		return fmt.Errorf("save chain_state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: el contador %d no sigue al último guardado del dispositivo %s",
			domain.ErrConflict, counter, deviceID)
	}
	return nil
}
