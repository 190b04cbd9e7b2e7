package zatca

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
)

// GenesisHash valor publicado por ZATCA para el PIH de la primera factura de un dispositivo:
// base64 del hex de SHA-256("0").
const GenesisHash = "NWZlY2ViNjZmZmM4NmYzOGQ5NTI3ODZjNmQ2OTZjNzljMmRiYzIzOWRkNGU5MWI0NjcyOWQ3M2EyN2ZiNTdlOQ=="

// ContentHash calcula base64(SHA-256(uuid || issueDate || issueTime)).
// El orden de concatenación es parte del protocolo.
func ContentHash(inv *entity.Invoice) (string, error) {
	if inv == nil {
		return "", newValidationError(ErrInvalidInvoice, "invoice", "no nula", "nil")
	}
	switch {
	case inv.UUID == "":
		return "", newValidationError(ErrInvalidInvoice, "uuid", "valor obligatorio", "")
	case inv.IssueDate == "":
		return "", newValidationError(ErrInvalidInvoice, "issueDate", "valor obligatorio", "")
	case inv.IssueTime == "":
		return "", newValidationError(ErrInvalidInvoice, "issueTime", "valor obligatorio", "")
	}
	sum := sha256.Sum256([]byte(inv.UUID + inv.IssueDate + inv.IssueTime))
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// VerifyChain es true si y solo si previousInvoiceHash == priorInvoiceHash.
func VerifyChain(inv *entity.Invoice, priorInvoiceHash string) bool {
	return inv != nil && inv.PreviousInvoiceHash == priorInvoiceHash
}

// ExpectedLink devuelve el hash previo y el contador que corresponden a la siguiente
// factura dado el estado guardado (nil = dispositivo sin facturas).
func ExpectedLink(state *entity.ChainState) (prevHash string, counter int64) {
	if state == nil || state.LastHash == "" {
		return GenesisHash, 1
	}
	return state.LastHash, state.LastCounter + 1
}

// CheckLink valida que la factura extienda exactamente el estado guardado.
// Una ruptura se reporta, nunca se repara.
func CheckLink(inv *entity.Invoice, state *entity.ChainState) error {
	prevHash, counter := ExpectedLink(state)
	if inv.PreviousInvoiceHash != prevHash {
		return newValidationError(ErrChainBreak, "previousInvoiceHash", prevHash, inv.PreviousInvoiceHash)
	}
	if inv.CounterValue != counter {
		return newValidationError(ErrChainBreak, "counterValue", strconv.FormatInt(counter, 10), strconv.FormatInt(inv.CounterValue, 10))
	}
	return nil
}

// Next devuelve el estado a guardar tras emitir la factura.
func Next(deviceID string, inv *entity.Invoice, contentHash string) entity.ChainState {
	return entity.ChainState{DeviceID: deviceID, LastHash: contentHash, LastCounter: inv.CounterValue}
}

// VerifySequence audita una secuencia completa ordenada por contador: la primera contra
// el génesis y cada una contra el hash de la anterior. Devuelve la primera ruptura con su índice.
func VerifySequence(invs []entity.Invoice) error {
	var state *entity.ChainState
	for i := range invs {
		inv := &invs[i]
		if err := CheckLink(inv, state); err != nil {
			ve, _ := AsValidationError(err)
			ve.Field = "invoices[" + strconv.Itoa(i) + "]." + ve.Field
			return ve
		}
		h, err := ContentHash(inv)
		if err != nil {
			return err
		}
		next := Next("", inv, h)
		state = &next
	}
	return nil
}
