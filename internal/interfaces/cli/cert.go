package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/zatca-einvoice/internal/application/auth"
	"github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca/signer"
)

// certInfo resumen del certificado de firma del EGS.
type certInfo struct {
	Subject      string `json:"subject"`
	VATNumber    string `json:"vat_number"`
	Issuer       string `json:"issuer"`
	Serial       string `json:"serial"`
	Digest       string `json:"digest"`
	NotBefore    string `json:"not_before"`
	NotAfter     string `json:"not_after"`
	Expired      bool   `json:"expired"`
	KeyAlgorithm string `json:"key_algorithm"`
}

func (a *app) certCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Diagnostica el certificado de firma (contraseña, VAT del sujeto, vigencia)",
		Example: `  zatca cert --p12 egs.p12 --password secreto
  zatca cert --cert cert.pem --key key.pem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := loadKeySigner(cmd)
			if err != nil {
				return err
			}
			x := ks.X509()
			digest, issuer, serial := signer.CertDigestAndIssuerSerial(x)
			info := certInfo{
				Subject:      x.Subject.String(),
				VATNumber:    signer.SubjectVAT(x),
				Issuer:       issuer,
				Serial:       serial,
				Digest:       digest,
				NotBefore:    x.NotBefore.UTC().Format(time.RFC3339),
				NotAfter:     x.NotAfter.UTC().Format(time.RFC3339),
				Expired:      a.clock().After(x.NotAfter),
				KeyAlgorithm: x.PublicKeyAlgorithm.String(),
			}
			if info.VATNumber == "" {
				a.log.Warn().Str("subject", info.Subject).Msg("el sujeto del certificado no trae un VAT de 15 dígitos")
			}
			if info.Expired {
				a.log.Warn().Str("not_after", info.NotAfter).Msg("certificado vencido")
			}
			return printJSON(cmd, info)
		},
	}
	addKeyFlags(cmd)
	return cmd
}

func (a *app) apiKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey-hash <clave>",
		Short: "Genera el hash bcrypt de la clave de arranque para AUTH_API_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
