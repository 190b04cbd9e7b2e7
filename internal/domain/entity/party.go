package entity

// Party representa al vendedor o al comprador de la factura.
type Party struct {
	Name      string
	VATNumber string // 15 dígitos
	CRN       string // Registro comercial (opcional)
	Address   Address
}

// Address dirección nacional saudí.
type Address struct {
	Street             string
	BuildingNumber     string
	PlotIdentification string
	District           string
	City               string
	PostalCode         string
	CountryCode        string // ISO 3166-1 alpha-2, "SA" por defecto
}

// Empty indica si la dirección no tiene ningún dato.
func (a Address) Empty() bool {
	return a == Address{}
}
