package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/zatca-einvoice/internal/application/auth"
	"github.com/jhoicas/zatca-einvoice/internal/application/billing"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/archive"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/zatca-einvoice/internal/infrastructure/pdf"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/zatca-einvoice/internal/infrastructure/redis"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca/signer"
	httpRouter "github.com/jhoicas/zatca-einvoice/internal/interfaces/http"
	"github.com/jhoicas/zatca-einvoice/pkg/config"
	"github.com/jhoicas/zatca-einvoice/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
		Mode:    cfg.ZATCA.Mode,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("chain_store", cfg.ZATCA.ChainStore).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// ── Persistencia: facturas + estado de la cadena ─────────────────────────
	var (
		pool        *pgxpool.Pool
		redisClient *goredis.Client
		invoiceRepo repository.InvoiceRepository
		chainStore  repository.ChainStateStore
		txRunner    billing.TxRunner
	)

	if cfg.ZATCA.ChainStore == config.ChainStoreRedis || (cfg.ZATCA.ChainStore != config.ChainStoreMemory && cfg.Redis.Addr != "") {
		redisClient, err = infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer redisClient.Close()
	}

	switch cfg.ZATCA.ChainStore {
	case config.ChainStoreMemory:
		invoices := memory.NewInvoiceStore()
		chain := memory.NewChainStore()
		invoiceRepo, chainStore = invoices, chain
		txRunner = &memory.TxRunner{Invoices: invoices, Chain: chain}
		log.Warn().Msg("estado en memoria: las facturas se pierden al reiniciar")
	default:
		pool, err = postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()

		if cfg.DB.AutoMigrate {
			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				log.Fatal().Err(err).Msg("migraciones")
			}
			log.Info().Strs("applied", applied).Msg("esquema al día")
		}

		invoiceRepo = postgres.NewInvoiceRepository(pool)
		if cfg.ZATCA.ChainStore == config.ChainStoreRedis {
			chainStore = infraredis.NewChainStore(redisClient)
			txRunner = postgres.NewTxRunner(pool, chainStore)
		} else {
			chainStore = postgres.NewChainStateRepository(pool)
			txRunner = postgres.NewTxRunner(pool, nil)
		}
	}

	// Un único escritor por dispositivo: redislock entre instancias, canal en una sola.
	var locker repository.DeviceLocker
	if redisClient != nil {
		locker = infraredis.NewDeviceLocker(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockWait)
	} else {
		locker = memory.NewDeviceLocker(cfg.Redis.LockWait)
	}

	// ── Firma ────────────────────────────────────────────────────────────────
	keySigner, err := loadSigner(cfg.ZATCA)
	if err != nil {
		log.Fatal().Err(err).Msg("cargar certificado de firma")
	}
	log.Info().Str("subject_vat", signer.SubjectVAT(keySigner.X509())).Msg("certificado de firma cargado")

	// ── Transporte ZATCA: solo fuera de dev ──────────────────────────────────
	var transport billing.ClearanceTransport
	if cfg.ZATCA.Mode != infrazatca.ModeDev {
		transport = infrazatca.NewClearanceClient(infrazatca.ClearanceConfig{
			Mode:       cfg.ZATCA.Mode,
			BaseURL:    cfg.ZATCA.BaseURL,
			Token:      cfg.ZATCA.Token,
			Secret:     cfg.ZATCA.Secret,
			Compliance: cfg.ZATCA.Compliance,
			Timeout:    cfg.ZATCA.Timeout,
		})
	}

	issueUC := billing.NewIssueInvoiceUseCase(
		locker, chainStore, invoiceRepo, txRunner,
		infrazatca.NewXMLBuilderService(),
		signer.NewService(keySigner),
		transport,
		billing.IssueConfig{
			Mode:            cfg.ZATCA.Mode,
			VATRate:         &cfg.ZATCA.VATRate,
			Currency:        cfg.ZATCA.Currency,
			DefaultDeviceID: cfg.ZATCA.DeviceID,
		},
		log.Component("billing.issue"),
	)

	// ── Archivo de ZIP firmados (GCS o directorio local) ─────────────────────
	switch {
	case cfg.Archive.Bucket != "":
		archiver, err := archive.NewGCSArchiver(ctx, cfg.Archive)
		if err != nil {
			log.Fatal().Err(err).Msg("cliente de Cloud Storage")
		}
		defer archiver.Close()
		issueUC.WithArchiver(archiver)
	case cfg.Archive.Dir != "":
		archiver, err := archive.NewDirArchiver(cfg.Archive.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("directorio de archivo")
		}
		issueUC.WithArchiver(archiver)
	}

	// PDF: representación gráfica de la factura con QR
	pdfUC := billing.NewPDFUseCase(invoiceRepo, infrapdf.NewMarotoPDFGenerator(&cfg.ZATCA.VATRate))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.ZATCA.Timeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "ZATCA e-Invoice API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		IssueInvoice: issueUC,
		InvoicePDF:   pdfUC,
		Auth: auth.NewTokenUseCase(auth.Config{
			Secret:     cfg.JWT.Secret,
			ExpMinutes: cfg.JWT.Expiration,
			Issuer:     cfg.JWT.Issuer,
			APIKey:     cfg.JWT.APIKey,
		}),
		JWTSecret:   cfg.JWT.Secret,
		VATRate:     &cfg.ZATCA.VATRate,
		ServiceName: cfg.App.Name,
		Mode:        cfg.ZATCA.Mode,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// loadSigner carga el par llave/certificado del EGS. En modo dev sin certificado
// genera uno efímero para ZATCA_DEV_SELLER_VAT.
func loadSigner(cfg config.ZATCAConfig) (*signer.KeySigner, error) {
	switch {
	case cfg.CertPath == "" && cfg.Mode == infrazatca.ModeDev:
		return signer.NewSelfSigned(cfg.DevSellerVAT, "EGS-dev")
	case filepath.Ext(cfg.CertPath) == ".p12" || filepath.Ext(cfg.CertPath) == ".pfx":
		return signer.LoadFromP12(cfg.CertPath, cfg.CertPassword)
	default:
		return signer.LoadFromPEM(cfg.CertPath, cfg.KeyPath)
	}
}
