package dto

const (
	// DefaultLimit tamaño de página cuando el cliente no indica limit.
	DefaultLimit = 20
	// MaxLimit tope de facturas por página.
	MaxLimit = 100
)

// PageRequest query ?limit&offset de los listados de facturas.
type PageRequest struct {
	Limit  int `query:"limit" json:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset" validate:"min=0"`
}

// Normalize completa limit ausente; valores fuera de rango quedan para Validate.
func (p *PageRequest) Normalize() {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
}

// PageResponse página devuelta. Next es el offset siguiente, o 0 si no hay más.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
	Next   int `json:"next,omitempty"`
}

// NewPageResponse arma los metadatos a partir de la página pedida y los items devueltos.
func NewPageResponse(p PageRequest, count int) PageResponse {
	out := PageResponse{Limit: p.Limit, Offset: p.Offset, Count: count}
	if count == p.Limit {
		out.Next = p.Offset + p.Limit
	}
	return out
}

// ErrorResponse cuerpo de error HTTP. Fields lleva campo → regla en errores de validación.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
