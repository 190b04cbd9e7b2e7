package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca/signer"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

func (a *app) hashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hash",
		Short:   "Calcula el hash de contenido base64(SHA-256(uuid||fecha||hora))",
		Example: `  zatca hash --uuid 3cf5ee18-ee25-44ea-a444-2c37ba7f28be --date 2024-01-01 --time 10:00:00Z`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("uuid")
			date, _ := cmd.Flags().GetString("date")
			tm, _ := cmd.Flags().GetString("time")
			h, err := domzatca.ContentHash(&entity.Invoice{UUID: id, IssueDate: date, IssueTime: tm})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), h)
			return err
		},
	}
	cmd.Flags().String("uuid", "", "UUID de la factura")
	cmd.Flags().String("date", "", "fecha de emisión YYYY-MM-DD")
	cmd.Flags().String("time", "", "hora de emisión HH:MM:SSZ")
	for _, name := range []string{"uuid", "date", "time"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Genera el XML UBL 2.1 sin firmar a partir de una factura JSON",
		Long: `Lee una factura con el mismo formato que POST /api/invoices y escribe el XML.
Sin uuid, fecha u hora se completan con valores nuevos; sin counter_value y
previous_invoice_hash se asume la primera factura del dispositivo (génesis).`,
		Example: `  zatca build --in invoice.json --out invoice.xml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			rateRaw, _ := cmd.Flags().GetString("rate")

			raw, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			var req dto.IssueInvoiceRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("factura JSON inválida: %w", err)
			}
			if err := dto.Validate(&req); err != nil {
				return err
			}
			rate, err := parseRate(rateRaw)
			if err != nil {
				return err
			}
			inv := req.ToEntity()
			a.completeInvoice(&inv)

			res, err := infrazatca.NewXMLBuilderService().Build(&infrazatca.InvoiceBuildContext{Invoice: &inv, VATRate: &rate})
			if err != nil {
				return err
			}
			a.log.Info().
				Str("invoice_id", inv.ID).
				Str("uuid", inv.UUID).
				Int64("counter", inv.CounterValue).
				Str("content_hash", res.ContentHash).
				Str("qr", res.QR).
				Msg("XML generado")
			return writeOutput(cmd, out, res.XML)
		},
	}
	cmd.Flags().String("in", "-", "factura JSON (- = stdin)")
	cmd.Flags().String("out", "-", "XML de salida (- = stdout)")
	cmd.Flags().String("rate", "", "tasa estándar de IVA (ZATCA_VAT_RATE o 15)")
	return cmd
}

// completeInvoice asigna los valores que el servicio asignaría en la emisión.
func (a *app) completeInvoice(inv *entity.Invoice) {
	if inv.UUID == "" {
		inv.UUID = uuid.NewString()
	}
	if inv.IssueDate == "" || inv.IssueTime == "" {
		inv.IssueDate, inv.IssueTime = entity.IssueStamp(a.clock())
	}
	if inv.Currency == "" {
		inv.Currency = pkgzatca.DefaultCurrency
	}
	if inv.CounterValue == 0 {
		inv.CounterValue = 1
	}
	if inv.PreviousInvoiceHash == "" {
		inv.PreviousInvoiceHash = domzatca.GenesisHash
	}
}

func parseRate(raw string) (decimal.Decimal, error) {
	if raw == "" {
		raw = os.Getenv("ZATCA_VAT_RATE")
	}
	if raw == "" {
		return pkgzatca.DefaultVATRate, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: rate %q", domzatca.ErrInvalidRate, raw)
	}
	return rate, nil
}

func (a *app) signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Firma un XML (XAdES) e incrusta el QR con los tags de firma",
		Example: `  zatca sign --in invoice.xml --cert cert.pem --key key.pem --out signed.xml
  zatca sign --in invoice.xml --p12 egs.p12 --password secreto
  zatca sign --in invoice.xml --self-signed-vat 123456789012345`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")

			doc, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			ks, err := loadKeySigner(cmd)
			if err != nil {
				return err
			}
			res, err := signer.NewService(ks).WithClock(a.clock).Sign(cmd.Context(), doc)
			if err != nil {
				return err
			}
			a.log.Info().
				Str("invoice_hash", res.InvoiceHash).
				Str("qr", res.QR).
				Msg("XML firmado")
			return writeOutput(cmd, out, res.SignedXML)
		},
	}
	cmd.Flags().String("in", "-", "XML sin firmar (- = stdin)")
	cmd.Flags().String("out", "-", "XML firmado (- = stdout)")
	addKeyFlags(cmd)
	return cmd
}

// addKeyFlags registra los flags de credenciales que lee loadKeySigner.
func addKeyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("cert", os.Getenv("ZATCA_CERT_PATH"), "certificado PEM")
	f.String("key", os.Getenv("ZATCA_KEY_PATH"), "llave privada PEM")
	f.String("p12", "", "contenedor PKCS#12 con llave y certificado")
	f.String("password", os.Getenv("ZATCA_CERT_PASSWORD"), "contraseña del .p12")
	f.String("self-signed-vat", "", "genera un certificado efímero para este VAT (solo pruebas)")
	cmd.MarkFlagsMutuallyExclusive("p12", "self-signed-vat")
}

func loadKeySigner(cmd *cobra.Command) (*signer.KeySigner, error) {
	f := cmd.Flags()
	p12, _ := f.GetString("p12")
	selfVAT, _ := f.GetString("self-signed-vat")
	certPath, _ := f.GetString("cert")
	keyPath, _ := f.GetString("key")
	password, _ := f.GetString("password")

	switch {
	case selfVAT != "":
		return signer.NewSelfSigned(selfVAT, "EGS-cli")
	case p12 != "":
		return signer.LoadFromP12(p12, password)
	case filepath.Ext(certPath) == ".p12" || filepath.Ext(certPath) == ".pfx":
		return signer.LoadFromP12(certPath, password)
	case certPath != "" && keyPath != "":
		return signer.LoadFromPEM(certPath, keyPath)
	default:
		return nil, fmt.Errorf("indique --cert y --key, --p12 o --self-signed-vat")
	}
}

func (a *app) canonicalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canonicalize",
		Short: "Aplica la canonicalización C14N 1.1 usada en el digest de la factura",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			doc, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			c14n, err := signer.Canonicalize(doc)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, c14n)
		},
	}
	cmd.Flags().String("in", "-", "XML de entrada (- = stdin)")
	cmd.Flags().String("out", "-", "XML canónico (- = stdout)")
	return cmd
}

func (a *app) zipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "zip",
		Short:   "Empaqueta un XML firmado en un ZIP para archivo",
		Example: `  zatca zip --in signed.xml --name 123456789012345_20240101T100000_INV-1.xml --out inv.zip`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			name, _ := cmd.Flags().GetString("name")
			doc, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			if name == "" {
				name = "invoice.xml"
				if in != "" && in != "-" {
					name = filepath.Base(in)
				}
			}
			zipped, err := infrazatca.CompressXMLToZip(doc, name)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, zipped)
		},
	}
	cmd.Flags().String("in", "-", "XML firmado (- = stdin)")
	cmd.Flags().String("name", "", "nombre del XML dentro del ZIP")
	cmd.Flags().String("out", "", "ZIP de salida")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
