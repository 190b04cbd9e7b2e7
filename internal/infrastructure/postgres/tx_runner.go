package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/zatca-einvoice/internal/application/billing"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

var _ billing.TxRunner = (*TxRunner)(nil)

// txDB es lo que el runner necesita del pool: abrir transacciones y ejecutar
// la compensación fuera de ellas.
type txDB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ txDB = (*pgxpool.Pool)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	db    txDB
	chain repository.ChainStateStore // externo (Redis); nil = tabla chain_states en la misma tx
}

// NewTxRunner construye el runner con el pool. chain permite guardar la cadena fuera
// de PostgreSQL; con nil el estado de la cadena se escribe en la misma transacción.
func NewTxRunner(pool *pgxpool.Pool, chain repository.ChainStateStore) *TxRunner {
	return &TxRunner{db: pool, chain: chain}
}

// RunIssue inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
//
// Con cadena externa el avance se aplica después del Commit: si el Commit falla la
// cadena no se mueve, y si falla el avance se borra la factura recién confirmada.
func (r *TxRunner) RunIssue(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	chainStore repository.ChainStateStore,
) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invoiceRepo := NewInvoiceRepository(tx)
	var chainStore repository.ChainStateStore = NewChainStateRepository(tx)
	var deferred *repository.DeferredChain
	if r.chain != nil {
		deferred = repository.NewDeferredChain(r.chain)
		chainStore = deferred
	}

	if err := fn(invoiceRepo, chainStore); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	if deferred == nil {
		return nil
	}

	deviceID, counter, ok := deferred.Pending()
	if !ok {
		return nil
	}
	if err := deferred.Apply(ctx); err != nil {
		cleanup := context.WithoutCancel(ctx)
		if delErr := NewInvoiceRepository(r.db).DeleteLink(cleanup, deviceID, counter); delErr != nil {
			return errors.Join(fmt.Errorf("advance chain: %w", err),
				fmt.Errorf("compensate invoice %s/%d: %w", deviceID, counter, delErr))
		}
		return fmt.Errorf("advance chain: %w", err)
	}
	return nil
}
