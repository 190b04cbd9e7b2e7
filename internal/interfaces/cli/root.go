// Package cli implementa el comando `zatca`: utilidades locales sobre el núcleo de
// factura electrónica (QR, montos, hash de cadena, XML, firma y canonicalización).
// Solo doctor habla con ZATCA; el resto trabaja sobre archivos o stdin/stdout.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// app estado compartido por los subcomandos.
type app struct {
	log   zerolog.Logger
	clock func() time.Time
}

// Option ajusta la construcción del comando raíz.
type Option func(*app)

// WithClock fija el reloj usado para completar fecha y hora de emisión.
func WithClock(now func() time.Time) Option {
	return func(a *app) { a.clock = now }
}

// NewRootCmd construye el árbol de comandos. Los logs van al logger recibido; la salida
// útil (XML, QR, JSON) va a cmd.OutOrStdout().
func NewRootCmd(log zerolog.Logger, opts ...Option) *cobra.Command {
	a := &app{log: log, clock: time.Now}
	for _, o := range opts {
		o(a)
	}

	root := &cobra.Command{
		Use:   "zatca",
		Short: "Herramientas de factura electrónica ZATCA (Arabia Saudita)",
		Long: `zatca agrupa las operaciones del núcleo de facturación electrónica:
códec TLV del QR, desglose de IVA, hash de cadena por dispositivo,
generación del XML UBL 2.1, firma XAdES y auditoría de la cadena.

Variables de entorno (.env):
  ZATCA_VAT_RATE      tasa estándar en porcentaje (15 por defecto)
  ZATCA_CERT_PATH     certificado PEM o .p12
  ZATCA_KEY_PATH      llave privada PEM
  ZATCA_CERT_PASSWORD contraseña del .p12
  ZATCA_MODE          simulation | production (doctor)
  ZATCA_BASE_URL      URL base de la API (doctor)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		a.qrCmd(),
		a.amountsCmd(),
		a.hashCmd(),
		a.buildCmd(),
		a.signCmd(),
		a.verifyChainCmd(),
		a.canonicalizeCmd(),
		a.zipCmd(),
		a.certCmd(),
		a.apiKeyCmd(),
		a.doctorCmd(),
	)
	return root
}

// Execute ejecuta el comando raíz y termina el proceso con código 1 ante error.
func Execute(log zerolog.Logger) {
	if err := NewRootCmd(log).Execute(); err != nil {
		log.Error().Err(err).Msg("falló la ejecución del comando")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readInput lee el archivo indicado, o stdin si path es "" o "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer %s: %w", path, err)
	}
	return data, nil
}

// writeOutput escribe en el archivo indicado, o en stdout si path es "" o "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("escribir %s: %w", path, err)
	}
	return nil
}
