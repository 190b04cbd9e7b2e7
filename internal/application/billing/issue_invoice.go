package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// IssueConfig parámetros del caso de uso.
type IssueConfig struct {
	Mode            string          // dev | simulation | production
	VATRate         *decimal.Decimal // tasa estándar; nil = 15
	Currency        string          // moneda por defecto; vacío = SAR
	DefaultDeviceID string
	Clock           func() time.Time
	AuditPageSize   int // facturas por lectura en AuditChain; cero = 500
}

// IssueCommand solicitud de emisión. Los campos vacíos de la factura (UUID, fecha, hora,
// contador, hash previo, moneda) se completan; los informados se verifican.
type IssueCommand struct {
	DeviceID     string
	Invoice      entity.Invoice
	ComplianceID string
}

// IssueInvoiceUseCase orquesta la emisión completa de una factura:
//
//	Lock → Estado de cadena → XML UBL 2.1 → Firma XAdES → Persistencia + cadena → ZIP → Clearance/Reporting
//
// La emisión es síncrona y serializada por dispositivo (DeviceLocker).
//
// Modos de operación (IssueConfig.Mode):
//   - "dev"        → Genera y firma, NO envía a ZATCA. Estado final: SIGNED.
//   - "simulation" → Envía al portal de simulación de Fatoora.
//   - "production" → Envía al ambiente de producción.
type IssueInvoiceUseCase struct {
	locker    repository.DeviceLocker
	chain     repository.ChainStateStore
	invoices  repository.InvoiceRepository
	txRunner  TxRunner
	builder   *infrazatca.XMLBuilderService
	signer    DocumentSigner
	transport ClearanceTransport // nil en dev
	archiver  Archiver           // opcional
	cfg       IssueConfig
	log       zerolog.Logger
}

// NewIssueInvoiceUseCase construye el orquestador con todas sus dependencias.
// transport puede ser nil: en ese caso solo funciona el modo dev.
func NewIssueInvoiceUseCase(
	locker repository.DeviceLocker,
	chain repository.ChainStateStore,
	invoices repository.InvoiceRepository,
	txRunner TxRunner,
	builder *infrazatca.XMLBuilderService,
	signer DocumentSigner,
	transport ClearanceTransport,
	cfg IssueConfig,
	log zerolog.Logger,
) *IssueInvoiceUseCase {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = pkgzatca.DefaultCurrency
	}
	if cfg.AuditPageSize <= 0 {
		cfg.AuditPageSize = 500
	}
	return &IssueInvoiceUseCase{
		locker:    locker,
		chain:     chain,
		invoices:  invoices,
		txRunner:  txRunner,
		builder:   builder,
		signer:    signer,
		transport: transport,
		cfg:       cfg,
		log:       log,
	}
}

// WithArchiver activa el archivo del ZIP firmado tras persistir.
func (uc *IssueInvoiceUseCase) WithArchiver(a Archiver) *IssueInvoiceUseCase {
	uc.archiver = a
	return uc
}

// Issue emite la factura. Los errores de validación del núcleo (ErrChainBreak,
// ErrLineTotalMismatch, ...) cortan el flujo antes de persistir o enviar nada.
// Un fallo del transporte no deshace la emisión: la factura queda en ERROR.
func (uc *IssueInvoiceUseCase) Issue(ctx context.Context, cmd IssueCommand) (*entity.InvoiceRecord, error) {
	deviceID := cmd.DeviceID
	if deviceID == "" {
		deviceID = uc.cfg.DefaultDeviceID
	}
	if deviceID == "" {
		return nil, fmt.Errorf("%w: deviceId es obligatorio", domain.ErrInvalidInput)
	}
	inv := cmd.Invoice
	uc.applyDefaults(&inv)

	log := uc.log.With().Str("device_id", deviceID).Str("invoice_id", inv.ID).Str("uuid", inv.UUID).Logger()

	// ═══════════════════════════════════════════════════════════════════════════
	// 1. Un único escritor por dispositivo
	// ═══════════════════════════════════════════════════════════════════════════
	release, err := uc.locker.Lock(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("step", "unlock").Msg("no se pudo liberar el candado")
		}
	}()

	// ═══════════════════════════════════════════════════════════════════════════
	// 2. Estado de la cadena: contador y hash previo
	// ═══════════════════════════════════════════════════════════════════════════
	state, err := uc.chain.Load(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("billing: cargar estado de cadena: %w", err)
	}
	prevHash, counter := domzatca.ExpectedLink(state)
	if inv.CounterValue == 0 {
		inv.CounterValue = counter
	}
	if inv.PreviousInvoiceHash == "" {
		inv.PreviousInvoiceHash = prevHash
	}
	log = log.With().Int64("counter", inv.CounterValue).Logger()

	// ═══════════════════════════════════════════════════════════════════════════
	// 3. XML UBL 2.1 (valida, verifica el eslabón y deriva montos)
	// ═══════════════════════════════════════════════════════════════════════════
	built, err := uc.builder.Build(&infrazatca.InvoiceBuildContext{
		Invoice:    &inv,
		State:      state,
		VerifyLink: true,
		VATRate:    uc.cfg.VATRate,
	})
	if err != nil {
		log.Warn().Err(err).Str("step", "build").Msg("factura rechazada por validación")
		return nil, err
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 4. Firma XAdES y QR con tags de firma
	// ═══════════════════════════════════════════════════════════════════════════
	signed, err := uc.signer.Sign(ctx, built.XML)
	if err != nil {
		log.Error().Err(err).Str("step", "sign").Msg("firma fallida")
		return nil, err
	}

	now := uc.cfg.Clock().UTC()
	rec := &entity.InvoiceRecord{
		ID:            inv.UUID,
		DeviceID:      deviceID,
		InvoiceID:     inv.ID,
		UUID:          inv.UUID,
		DocumentType:  inv.DocumentType,
		IssueDate:     inv.IssueDate,
		IssueTime:     inv.IssueTime,
		Counter:       inv.CounterValue,
		PreviousHash:  inv.PreviousInvoiceHash,
		ContentHash:   built.ContentHash,
		InvoiceHash:   signed.InvoiceHash,
		Currency:      domzatca.DocumentCurrency(&inv),
		TaxableAmount: built.Amounts.Taxable,
		VATAmount:     built.Amounts.VAT,
		TotalAmount:   inv.TotalAmountInclusiveOfTax,
		QRData:        signed.QR,
		SignedXML:     signed.SignedXML,
		Invoice:       inv,
		Status:        entity.StatusSigned,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 5. Persistir factura y avanzar la cadena (misma transacción)
	// ═══════════════════════════════════════════════════════════════════════════
	err = uc.txRunner.RunIssue(ctx, func(invoiceRepo repository.InvoiceRepository, chainStore repository.ChainStateStore) error {
		if err := invoiceRepo.Create(ctx, rec); err != nil {
			return err
		}
		return chainStore.Save(ctx, deviceID, built.ContentHash, inv.CounterValue)
	})
	if err != nil {
		log.Error().Err(err).Str("step", "persist").Msg("no se pudo persistir la factura")
		return nil, fmt.Errorf("billing: persistir factura: %w", err)
	}
	log.Info().Str("step", "persist").Str("content_hash", built.ContentHash).Msg("factura firmada y encadenada")

	// ═══════════════════════════════════════════════════════════════════════════
	// 6. Archivo del ZIP firmado (no bloquea la emisión)
	// ═══════════════════════════════════════════════════════════════════════════
	if uc.archiver != nil {
		if uri, err := uc.archiver.Archive(ctx, rec); err != nil {
			log.Warn().Err(err).Str("step", "archive").Msg("no se pudo archivar el ZIP")
		} else {
			log.Debug().Str("step", "archive").Str("uri", uri).Msg("ZIP archivado")
		}
	}

	// ═══════════════════════════════════════════════════════════════════════════
	// 7. Clearance (estándar) o reporting (simplificada)
	// ═══════════════════════════════════════════════════════════════════════════
	if uc.cfg.Mode == infrazatca.ModeDev || uc.transport == nil {
		log.Info().Str("step", "submit").Msg("modo dev: no se envía a ZATCA")
		return rec, nil
	}

	res, err := uc.transport.Submit(ctx, infrazatca.SubmitRequest{
		SignedXML:    rec.SignedXML,
		DocumentType: rec.DocumentType,
		ComplianceID: cmd.ComplianceID,
		InvoiceHash:  rec.InvoiceHash,
		UUID:         rec.UUID,
	})
	if err != nil {
		rec.Status = entity.StatusError
		rec.Errors = []string{err.Error()}
		log.Error().Err(err).Str("step", "submit").Msg("envío a ZATCA fallido")
	} else {
		rec.Status = res.Status
		rec.ClearedUUID = res.ClearedUUID
		rec.ClearedXML = res.ClearedInvoice
		rec.Warnings = res.Warnings
		rec.Errors = res.Errors
		log.Info().Str("step", "submit").Str("status", res.Status).
			Int("warnings", len(res.Warnings)).Int("errors", len(res.Errors)).Msg("respuesta de ZATCA")
	}
	if err := uc.invoices.Update(context.WithoutCancel(ctx), rec); err != nil {
		log.Error().Err(err).Str("step", "update").Msg("no se pudo persistir el resultado del envío")
	}
	return rec, nil
}

func (uc *IssueInvoiceUseCase) applyDefaults(inv *entity.Invoice) {
	if inv.UUID == "" {
		inv.UUID = uuid.NewString()
	}
	if inv.IssueDate == "" || inv.IssueTime == "" {
		date, clock := entity.IssueStamp(uc.cfg.Clock())
		if inv.IssueDate == "" {
			inv.IssueDate = date
		}
		if inv.IssueTime == "" {
			inv.IssueTime = clock
		}
	}
	if inv.Currency == "" {
		inv.Currency = uc.cfg.Currency
	}
}

// GetRecord devuelve una factura emitida o domain.ErrNotFound.
func (uc *IssueInvoiceUseCase) GetRecord(ctx context.Context, id string) (*entity.InvoiceRecord, error) {
	rec, err := uc.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("billing: obtener factura: %w", err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// ListRecords lista las facturas de un dispositivo, la más reciente primero.
func (uc *IssueInvoiceUseCase) ListRecords(ctx context.Context, deviceID string, limit, offset int) ([]*entity.InvoiceRecord, error) {
	if deviceID == "" {
		deviceID = uc.cfg.DefaultDeviceID
	}
	return uc.invoices.ListByDevice(ctx, deviceID, limit, offset)
}

// AuditChain recorre todas las facturas del dispositivo en orden de contador y
// verifica cada eslabón. Devuelve el número de facturas auditadas. La lectura pagina
// por cursor de contador: emisiones concurrentes no desplazan las páginas.
func (uc *IssueInvoiceUseCase) AuditChain(ctx context.Context, deviceID string) (int, error) {
	if deviceID == "" {
		deviceID = uc.cfg.DefaultDeviceID
	}
	page := uc.cfg.AuditPageSize
	var invs []entity.Invoice
	var after int64
	for {
		batch, err := uc.invoices.ListByDeviceAfter(ctx, deviceID, after, page)
		if err != nil {
			return 0, fmt.Errorf("billing: listar facturas: %w", err)
		}
		for _, rec := range batch {
			invs = append(invs, rec.Invoice)
			after = rec.Counter
		}
		if len(batch) < page {
			break
		}
	}
	if err := domzatca.VerifySequence(invs); err != nil {
		return 0, err
	}
	return len(invs), nil
}
