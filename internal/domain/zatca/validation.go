package zatca

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	pkgzatca "github.com/jhoicas/zatca-einvoice/pkg/zatca"
)

// ValidateInvoice valida los campos obligatorios de la factura. No rellena valores
// por defecto: un campo legal ausente es un error. Los errores se agrupan con errors.Join.
func ValidateInvoice(inv *entity.Invoice) error {
	if inv == nil {
		return fmt.Errorf("%w: factura nula", ErrInvalidInvoice)
	}
	var errs []error
	required := func(field, value string) {
		if value == "" {
			errs = append(errs, newValidationError(ErrInvalidInvoice, field, "valor obligatorio", ""))
		}
	}

	required("id", inv.ID)
	if inv.UUID == "" {
		required("uuid", inv.UUID)
	} else if _, err := uuid.Parse(inv.UUID); err != nil {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "uuid", "UUID RFC 4122", inv.UUID))
	}
	if !inv.DocumentType.Valid() {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "documentType", "simplified|standard", string(inv.DocumentType)))
	}
	if _, err := time.Parse(entity.IssueDateLayout, inv.IssueDate); err != nil {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "issueDate", "YYYY-MM-DD", inv.IssueDate))
	}
	if _, err := time.Parse(entity.IssueTimeLayout, inv.IssueTime); err != nil {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "issueTime", "HH:MM:SSZ", inv.IssueTime))
	}

	// Vendedor
	required("seller.name", inv.Seller.Name)
	if inv.Seller.VATNumber == "" {
		required("seller.vatNumber", "")
	} else if err := pkgzatca.ValidateVATNumber(inv.Seller.VATNumber); err != nil {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "seller.vatNumber", "15 dígitos", inv.Seller.VATNumber))
	}

	// Comprador: obligatorio en facturas estándar; nunca se sustituye por "Not Applicable".
	if inv.DocumentType == entity.DocumentStandard {
		if inv.Buyer == nil {
			errs = append(errs, newValidationError(ErrInvalidInvoice, "buyer", "obligatorio en factura estándar", ""))
		} else {
			required("buyer.name", inv.Buyer.Name)
			required("buyer.vatNumber", inv.Buyer.VATNumber)
		}
	}
	if inv.Buyer != nil && inv.Buyer.VATNumber != "" {
		if err := pkgzatca.ValidateVATNumber(inv.Buyer.VATNumber); err != nil {
			errs = append(errs, newValidationError(ErrInvalidInvoice, "buyer.vatNumber", "15 dígitos", inv.Buyer.VATNumber))
		}
	}

	if inv.Currency != "" {
		if err := ValidateCurrencyCode(inv.Currency); err != nil {
			errs = append(errs, err)
		}
	}
	if !inv.TotalAmountInclusiveOfTax.IsPositive() {
		errs = append(errs, newValidationError(ErrInvalidAmount, "totalAmountInclusiveOfTax", "> 0", inv.TotalAmountInclusiveOfTax.String()))
	} else if inv.TotalAmountInclusiveOfTax.GreaterThan(pkgzatca.MaxInvoiceAmount) {
		errs = append(errs, newValidationError(ErrInvalidAmount, "totalAmountInclusiveOfTax", "<= "+pkgzatca.MaxInvoiceAmount.String(), inv.TotalAmountInclusiveOfTax.String()))
	}

	// Cadena
	if inv.CounterValue < 1 {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "counterValue", ">= 1", strconv.FormatInt(inv.CounterValue, 10)))
	}
	required("previousInvoiceHash", inv.PreviousInvoiceHash)

	if inv.PaymentMeansCode != "" && !pkgzatca.ValidPaymentMeansCodes[inv.PaymentMeansCode] {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "paymentMeansCode", "10|30|31|48|1", inv.PaymentMeansCode))
	}

	errs = append(errs, validateLines(inv.LineItems)...)

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidInvoice}, errs...)...)
	}
	return nil
}

func validateLines(lines []entity.LineItem) []error {
	var errs []error
	if len(lines) == 0 {
		return []error{newValidationError(ErrInvalidInvoice, "lineItems", "al menos una línea", "0")}
	}
	if len(lines) > pkgzatca.MaxLineItems {
		errs = append(errs, newValidationError(ErrInvalidInvoice, "lineItems", "<= "+strconv.Itoa(pkgzatca.MaxLineItems), strconv.Itoa(len(lines))))
	}
	seen := make(map[string]bool, len(lines))
	for i, l := range lines {
		prefix := "lineItems[" + strconv.Itoa(i) + "]."
		if l.ID == "" {
			errs = append(errs, newValidationError(ErrInvalidInvoice, prefix+"id", "valor obligatorio", ""))
		} else if seen[l.ID] {
			errs = append(errs, newValidationError(ErrInvalidInvoice, prefix+"id", "único en la factura", l.ID))
		}
		seen[l.ID] = true
		if l.Name == "" {
			errs = append(errs, newValidationError(ErrInvalidInvoice, prefix+"name", "valor obligatorio", ""))
		}
		if !l.Quantity.IsPositive() {
			errs = append(errs, newValidationError(ErrInvalidAmount, prefix+"quantity", "> 0", l.Quantity.String()))
		}
		if l.UnitPrice.IsNegative() {
			errs = append(errs, newValidationError(ErrInvalidAmount, prefix+"unitPrice", ">= 0", l.UnitPrice.String()))
		}
		if l.UnitOfMeasure == "" {
			errs = append(errs, newValidationError(ErrInvalidInvoice, prefix+"unitOfMeasure", "valor obligatorio", ""))
		} else if !pkgzatca.ValidMeasurementUnitCodes[l.UnitOfMeasure] {
			errs = append(errs, newValidationError(ErrInvalidInvoice, prefix+"unitOfMeasure", "código UN/ECE Rec 20", l.UnitOfMeasure))
		}
		if !pkgzatca.ValidVATCategories[l.TaxCategory] {
			errs = append(errs, newValidationError(ErrInvalidInvoice, prefix+"taxCategory", "S|Z|E|O", l.TaxCategory))
		}
	}
	return errs
}

// ValidateCurrencyCode verifica que el código sea ISO 4217.
func ValidateCurrencyCode(code string) error {
	unit, err := currency.ParseISO(code)
	if err != nil || unit.String() != code {
		return newValidationError(ErrInvalidInvoice, "currency", "ISO 4217", code)
	}
	return nil
}

// CheckCurrencies rechaza líneas cuya moneda difiera de la moneda de la factura.
func CheckCurrencies(inv *entity.Invoice) error {
	doc := DocumentCurrency(inv)
	for i, l := range inv.LineItems {
		if l.Currency != "" && l.Currency != doc {
			return newValidationError(ErrCurrencyMismatch, "lineItems["+strconv.Itoa(i)+"].currency", doc, l.Currency)
		}
	}
	return nil
}

// DocumentCurrency moneda del documento (SAR si no se especifica).
func DocumentCurrency(inv *entity.Invoice) string {
	if inv.Currency == "" {
		return pkgzatca.DefaultCurrency
	}
	return inv.Currency
}
