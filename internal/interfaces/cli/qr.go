package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

func (a *app) qrCmd() *cobra.Command {
	qr := &cobra.Command{
		Use:   "qr",
		Short: "Codifica o decodifica el QR TLV (base64)",
	}

	encode := &cobra.Command{
		Use:   "encode",
		Short: "Codifica los tags 1 a 5 del QR",
		Example: `  zatca qr encode --seller "Test Company" --vat 123456789012345 \
    --timestamp 2024-01-01T10:00:00Z --total 100.00 --vat-amount 13.04`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			seller, _ := f.GetString("seller")
			vat, _ := f.GetString("vat")
			ts, _ := f.GetString("timestamp")
			total, _ := f.GetString("total")
			vatAmount, _ := f.GetString("vat-amount")

			p := domzatca.QRPayload{SellerName: seller, VATNumber: vat, Timestamp: ts, TotalWithVAT: total, VATAmount: vatAmount}
			out, err := p.EncodeBase64()
			if err != nil {
				return err
			}
			a.log.Debug().Int("length", len(out)).Msg("QR codificado")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	encode.Flags().String("seller", "", "nombre del vendedor (tag 1)")
	encode.Flags().String("vat", "", "número de IVA del vendedor (tag 2)")
	encode.Flags().String("timestamp", "", "fecha y hora ISO-8601 (tag 3)")
	encode.Flags().String("total", "", "total con IVA (tag 4)")
	encode.Flags().String("vat-amount", "", "total de IVA (tag 5)")
	for _, name := range []string{"seller", "vat", "timestamp", "total", "vat-amount"} {
		_ = encode.MarkFlagRequired(name)
	}

	decode := &cobra.Command{
		Use:   "decode <base64>",
		Short: "Decodifica un QR y lo imprime como JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domzatca.DecodeBase64(args[0])
			if err != nil {
				return err
			}
			out := dto.QRDecodeResponse{
				SellerName:   p.SellerName,
				VATNumber:    p.VATNumber,
				Timestamp:    p.Timestamp,
				TotalWithVAT: p.TotalWithVAT,
				VATAmount:    p.VATAmount,
			}
			if len(p.Extra) > 0 {
				out.Extra = make(map[string]string, len(p.Extra))
				for tag, v := range p.Extra {
					out.Extra[strconv.Itoa(int(tag))] = v
				}
			}
			return printJSON(cmd, out)
		},
	}

	qr.AddCommand(encode, decode)
	return qr
}

func (a *app) amountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "amounts",
		Short:   "Desglosa un total con IVA incluido en base e IVA",
		Example: `  zatca amounts --total 100 --rate 15`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			totalRaw, _ := cmd.Flags().GetString("total")
			rateRaw, _ := cmd.Flags().GetString("rate")
			total, err := domzatca.ParseAmount(totalRaw)
			if err != nil {
				return err
			}
			rate := pkgzatca.DefaultVATRate
			if rateRaw != "" {
				if rate, err = decimal.NewFromString(rateRaw); err != nil {
					return fmt.Errorf("%w: rate %q", domzatca.ErrInvalidRate, rateRaw)
				}
			}
			amounts, err := domzatca.SplitTotal(total, rate)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.AmountsResponse{
				Total:   domzatca.FormatAmount(amounts.Total),
				Taxable: domzatca.FormatAmount(amounts.Taxable),
				VAT:     domzatca.FormatAmount(amounts.VAT),
				Rate:    domzatca.FormatRate(rate),
			})
		},
	}
	cmd.Flags().String("total", "", "total con IVA incluido")
	cmd.Flags().String("rate", "", "tasa de IVA en porcentaje (por defecto 15)")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
