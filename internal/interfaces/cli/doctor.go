package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
)

type doctorReport struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	HTTPStatus int    `json:"http_status,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

func (a *app) doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Comprueba la conectividad con la plataforma Fatoora",
		Example: `  zatca doctor --mode simulation
  zatca doctor --base-url https://gw-fatoora.zatca.gov.sa/e-invoicing/developer-portal --timeout 5s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			baseURL, _ := cmd.Flags().GetString("base-url")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if mode == "" {
				mode = os.Getenv("ZATCA_MODE")
			}
			if baseURL == "" {
				baseURL = os.Getenv("ZATCA_BASE_URL")
			}

			client := infrazatca.NewClearanceClient(infrazatca.ClearanceConfig{
				Mode:    mode,
				BaseURL: baseURL,
				Token:   os.Getenv("ZATCA_CSID_TOKEN"),
				Secret:  os.Getenv("ZATCA_CSID_SECRET"),
				Timeout: timeout,
			})
			st, err := client.Ping(cmd.Context())
			report := doctorReport{
				URL:        st.URL,
				Reachable:  err == nil,
				HTTPStatus: st.HTTPStatus,
				LatencyMS:  st.Latency.Milliseconds(),
			}
			if err != nil {
				report.Error = err.Error()
				a.log.Warn().Err(err).Str("url", st.URL).Msg("plataforma no disponible")
			} else {
				a.log.Info().Str("url", st.URL).Int("http_status", st.HTTPStatus).
					Dur("latency", st.Latency).Msg("plataforma disponible")
			}
			if perr := printJSON(cmd, report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().String("mode", "", "simulation | production (ZATCA_MODE)")
	cmd.Flags().String("base-url", "", "URL base de la API (ZATCA_BASE_URL); sobrescribe el modo")
	cmd.Flags().Duration("timeout", 10*time.Second, "tiempo máximo de la comprobación")
	return cmd
}
