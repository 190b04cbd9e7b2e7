package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jhoicas/zatca-einvoice/internal/application/dto"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	domzatca "github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
)

func (a *app) verifyChainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-chain",
		Short: "Audita una secuencia de facturas JSON de un mismo dispositivo",
		Long: `Lee un arreglo JSON de facturas (formato de POST /api/invoices, con uuid,
fecha, hora, counter_value y previous_invoice_hash completos), las ordena por
contador y verifica cada eslabón desde el génesis. Termina con error en la
primera ruptura.`,
		Example: `  zatca verify-chain --in invoices.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, _ := cmd.Flags().GetString("in")
			raw, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			var reqs []dto.IssueInvoiceRequest
			if err := json.Unmarshal(raw, &reqs); err != nil {
				return fmt.Errorf("arreglo de facturas inválido: %w", err)
			}
			invs := make([]entity.Invoice, 0, len(reqs))
			for i := range reqs {
				invs = append(invs, reqs[i].ToEntity())
			}
			sort.SliceStable(invs, func(i, j int) bool { return invs[i].CounterValue < invs[j].CounterValue })

			if err := domzatca.VerifySequence(invs); err != nil {
				a.log.Warn().Err(err).Int("invoices", len(invs)).Msg("cadena rota")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cadena íntegra: %d facturas\n", len(invs))
			return err
		},
	}
	cmd.Flags().String("in", "-", "arreglo JSON de facturas (- = stdin)")
	return cmd
}
