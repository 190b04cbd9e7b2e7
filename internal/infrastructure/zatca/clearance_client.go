package zatca

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// ModeDev no envía a ZATCA: el documento queda firmado localmente.
	ModeDev = "dev"
	// ModeSimulation ambiente de simulación del portal Fatoora.
	ModeSimulation = "simulation"
	// ModeProduction ambiente de producción.
	ModeProduction = "production"

	baseURLSimulation = "https://gw-fatoora.zatca.gov.sa/e-invoicing/simulation"
	baseURLProduction = "https://gw-fatoora.zatca.gov.sa/e-invoicing/production"

	pathClearance  = "/invoices/clearance/single"
	pathReporting  = "/invoices/reporting/single"
	pathCompliance = "/compliance/invoices"
)

// ErrTransport falla de red o respuesta inesperada de la plataforma.
var ErrTransport = errors.New("zatca: error de transporte")

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// SubmitRequest documento firmado listo para clearance o reporting.
type SubmitRequest struct {
	SignedXML    []byte
	DocumentType entity.DocumentType
	ComplianceID string // CSID; vacío usa el token configurado
	InvoiceHash  string
	UUID         string
}

// ClearanceResult respuesta de la plataforma ya normalizada.
type ClearanceResult struct {
	Status         string // CLEARED, REPORTED o REJECTED
	ClearedUUID    string
	Warnings       []string
	Errors         []string
	ClearedInvoice []byte // XML devuelto por clearance (estándar), si existe
	HTTPStatus     int
}

// Submitter define el puerto de salida hacia la plataforma Fatoora.
// Reintentos y backoff, si existen, viven en la implementación, nunca en el núcleo.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*ClearanceResult, error)
}

// ── Implementación HTTP ────────────────────────────────────────────────────────

// ClearanceConfig parámetros del cliente.
type ClearanceConfig struct {
	Mode       string // simulation | production
	BaseURL    string // sobrescribe la URL del modo (tests, proxies)
	Token      string // binarySecurityToken del CSID
	Secret     string
	Compliance bool // envía a /compliance/invoices (onboarding)
	Timeout    time.Duration
}

// ClearanceClient implementa Submitter con la API REST de ZATCA.
type ClearanceClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	secret     string
	compliance bool
}

// NewClearanceClient construye el cliente con un timeout de red generoso (60 s por defecto).
func NewClearanceClient(cfg ClearanceConfig) *ClearanceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := cfg.BaseURL
	if base == "" {
		base = baseURLSimulation
		if cfg.Mode == ModeProduction {
			base = baseURLProduction
		}
	}
	return &ClearanceClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(base, "/"),
		token:      cfg.Token,
		secret:     cfg.Secret,
		compliance: cfg.Compliance,
	}
}

// BaseURL URL base efectiva del cliente.
func (c *ClearanceClient) BaseURL() string { return c.baseURL }

// APIStatus resultado de Ping.
type APIStatus struct {
	URL        string
	HTTPStatus int
	Latency    time.Duration
}

// Ping comprueba que la plataforma responde en la URL base. Cualquier respuesta HTTP
// por debajo de 500 cuenta como disponible (la raíz suele contestar 401 o 404).
// Un fallo de red o un 5xx devuelven ErrTransport junto con lo medido.
func (c *ClearanceClient) Ping(ctx context.Context) (*APIStatus, error) {
	st := &APIStatus{URL: c.baseURL}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return st, fmt.Errorf("zatca: crear request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "V2")
	if c.token != "" {
		req.SetBasicAuth(c.token, c.secret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	st.Latency = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return st, fmt.Errorf("%w: timeout o cancelación: %v", ErrTransport, ctx.Err())
		}
		return st, fmt.Errorf("%w: llamada HTTP fallida: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	st.HTTPStatus = resp.StatusCode
	if resp.StatusCode >= http.StatusInternalServerError {
		return st, fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode)
	}
	return st, nil
}

type submitBody struct {
	InvoiceHash string `json:"invoiceHash"`
	UUID        string `json:"uuid"`
	Invoice     string `json:"invoice"`
}

type apiMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

type apiResponse struct {
	ValidationResults *struct {
		WarningMessages []apiMessage `json:"warningMessages"`
		ErrorMessages   []apiMessage `json:"errorMessages"`
		Status          string       `json:"status"`
	} `json:"validationResults"`
	ClearanceStatus string            `json:"clearanceStatus"`
	ReportingStatus string            `json:"reportingStatus"`
	ClearedInvoice  string            `json:"clearedInvoice"`
	ClearedUUID     string            `json:"clearedUUID"`
	UUID            string            `json:"uuid"`
	Warnings        []json.RawMessage `json:"warnings"`
	Errors          []json.RawMessage `json:"errors"`
}

// Submit envía el documento al endpoint que corresponde al tipo de factura.
func (c *ClearanceClient) Submit(ctx context.Context, req SubmitRequest) (*ClearanceResult, error) {
	if len(req.SignedXML) == 0 {
		return nil, fmt.Errorf("zatca: documento firmado vacío")
	}
	path := pathReporting
	switch {
	case c.compliance:
		path = pathCompliance
	case req.DocumentType == entity.DocumentStandard:
		path = pathClearance
	}

	payload, err := json.Marshal(submitBody{
		InvoiceHash: req.InvoiceHash,
		UUID:        req.UUID,
		Invoice:     base64.StdEncoding.EncodeToString(req.SignedXML),
	})
	if err != nil {
		return nil, fmt.Errorf("zatca: serializar solicitud: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("zatca: crear request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Language", "en")
	httpReq.Header.Set("Accept-Version", "V2")
	if path == pathClearance {
		httpReq.Header.Set("Clearance-Status", "1")
	}
	user := c.token
	if req.ComplianceID != "" {
		user = req.ComplianceID
	}
	httpReq.SetBasicAuth(user, c.secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout o cancelación: %v", ErrTransport, ctx.Err())
		}
		return nil, fmt.Errorf("%w: llamada HTTP fallida: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", ErrTransport, err)
	}
	return parseResponse(resp.StatusCode, rawBody, req)
}

// parseResponse normaliza la respuesta. 200/202 = aceptada (con o sin advertencias),
// 400 = rechazada por validación; cualquier otro código es un error de transporte.
func parseResponse(status int, raw []byte, req SubmitRequest) (*ClearanceResult, error) {
	switch status {
	case http.StatusOK, http.StatusAccepted, http.StatusBadRequest:
	default:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTransport, status, truncate(string(raw), 300))
	}

	var body apiResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: respuesta no es JSON (HTTP %d): %v", ErrTransport, status, err)
	}

	res := &ClearanceResult{HTTPStatus: status}
	if vr := body.ValidationResults; vr != nil {
		for _, m := range vr.WarningMessages {
			res.Warnings = append(res.Warnings, m.String())
		}
		for _, m := range vr.ErrorMessages {
			res.Errors = append(res.Errors, m.String())
		}
	}
	res.Warnings = append(res.Warnings, rawMessages(body.Warnings)...)
	res.Errors = append(res.Errors, rawMessages(body.Errors)...)

	if status == http.StatusBadRequest || len(res.Errors) > 0 {
		res.Status = entity.StatusRejected
		return res, nil
	}

	res.Status = firstNonEmpty(body.ClearanceStatus, body.ReportingStatus)
	if res.Status == "" {
		res.Status = entity.StatusReported
		if req.DocumentType == entity.DocumentStandard {
			res.Status = entity.StatusCleared
		}
	}
	if body.ClearedInvoice != "" {
		xmlBytes, err := base64.StdEncoding.DecodeString(body.ClearedInvoice)
		if err != nil {
			return nil, fmt.Errorf("%w: clearedInvoice no es base64: %v", ErrTransport, err)
		}
		res.ClearedInvoice = xmlBytes
	}
	res.ClearedUUID = firstNonEmpty(body.ClearedUUID, body.UUID, uuidFromXML(res.ClearedInvoice), req.UUID)
	return res, nil
}

func (m apiMessage) String() string {
	if m.Code == "" {
		return m.Message
	}
	return m.Code + ": " + m.Message
}

// rawMessages acepta mensajes como strings u objetos {code, message}.
func rawMessages(raw []json.RawMessage) []string {
	var out []string
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var m apiMessage
		if err := json.Unmarshal(r, &m); err == nil {
			out = append(out, m.String())
		}
	}
	return out
}

func uuidFromXML(doc []byte) string {
	if len(doc) == 0 {
		return ""
	}
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(doc); err != nil {
		return ""
	}
	if el := tree.FindElement("/Invoice/UUID"); el != nil {
		return el.Text()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Submitter = (*ClearanceClient)(nil)
