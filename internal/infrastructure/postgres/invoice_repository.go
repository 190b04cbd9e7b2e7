package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, device_id, invoice_id, uuid, document_type, issue_date, issue_time,
	counter, previous_hash, content_hash, invoice_hash,
	currency, taxable_amount, vat_amount, total_amount,
	qr_data, signed_xml, snapshot, status, cleared_uuid, cleared_xml,
	warnings, errors, created_at, updated_at`

// Create persiste la factura firmada. El par (device_id, counter) es único:
// un duplicado indica que otro escritor ya usó ese eslabón.
func (r *InvoiceRepo) Create(ctx context.Context, rec *entity.InvoiceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	snapshot, err := json.Marshal(rec.Invoice)
	if err != nil {
		return fmt.Errorf("serializar factura: %w", err)
	}
	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`
	_, err = r.q.Exec(ctx, query,
		rec.ID, rec.DeviceID, rec.InvoiceID, rec.UUID, string(rec.DocumentType), rec.IssueDate, rec.IssueTime,
		rec.Counter, rec.PreviousHash, rec.ContentHash, rec.InvoiceHash,
		rec.Currency, rec.TaxableAmount, rec.VATAmount, rec.TotalAmount,
		rec.QRData, rec.SignedXML, snapshot, rec.Status, nullIfEmpty(rec.ClearedUUID), rec.ClearedXML,
		nonNil(rec.Warnings), nonNil(rec.Errors), rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: factura %s o contador %d ya existe", domain.ErrDuplicate, rec.InvoiceID, rec.Counter)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Update actualiza los campos del resultado del envío a ZATCA.
func (r *InvoiceRepo) Update(ctx context.Context, rec *entity.InvoiceRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	const query = `
		UPDATE invoices
		SET status       = $2,
		    cleared_uuid = COALESCE($3, cleared_uuid),
		    cleared_xml  = COALESCE($4, cleared_xml),
		    warnings     = $5,
		    errors       = $6,
		    updated_at   = $7
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		rec.ID, rec.Status, nullIfEmpty(rec.ClearedUUID), rec.ClearedXML,
		nonNil(rec.Warnings), nonNil(rec.Errors), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID obtiene una factura emitida por ID. Devuelve nil, nil si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.InvoiceRecord, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	rec, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return rec, nil
}

// ListByDevice lista las facturas de un dispositivo en orden de cadena descendente.
func (r *InvoiceRepo) ListByDevice(ctx context.Context, deviceID string, limit, offset int) ([]*entity.InvoiceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + `
		FROM invoices WHERE device_id = $1
		ORDER BY counter DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, deviceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// ListByDeviceAfter pagina por cursor (counter > afterCounter) en orden ascendente.
func (r *InvoiceRepo) ListByDeviceAfter(ctx context.Context, deviceID string, afterCounter int64, limit int) ([]*entity.InvoiceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + `
		FROM invoices WHERE device_id = $1 AND counter > $2
		ORDER BY counter ASC
		LIMIT $3`
	rows, err := r.q.Query(ctx, query, deviceID, afterCounter, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// DeleteLink borra la factura (device_id, counter).
func (r *InvoiceRepo) DeleteLink(ctx context.Context, deviceID string, counter int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM invoices WHERE device_id = $1 AND counter = $2`, deviceID, counter)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (*entity.InvoiceRecord, error) {
	var rec entity.InvoiceRecord
	var docType string
	var clearedUUID *string
	var snapshot []byte
	err := row.Scan(
		&rec.ID, &rec.DeviceID, &rec.InvoiceID, &rec.UUID, &docType, &rec.IssueDate, &rec.IssueTime,
		&rec.Counter, &rec.PreviousHash, &rec.ContentHash, &rec.InvoiceHash,
		&rec.Currency, &rec.TaxableAmount, &rec.VATAmount, &rec.TotalAmount,
		&rec.QRData, &rec.SignedXML, &snapshot, &rec.Status, &clearedUUID, &rec.ClearedXML,
		&rec.Warnings, &rec.Errors, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.DocumentType = entity.DocumentType(docType)
	rec.ClearedUUID = derefStr(clearedUUID)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &rec.Invoice); err != nil {
			return nil, fmt.Errorf("leer snapshot: %w", err)
		}
	}
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
