package zatca

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
)

// Tags del QR. 1 a 5 son obligatorios (fase 1); 6 a 9 se agregan tras la firma (fase 2).
const (
	TagSellerName    byte = 1
	TagVATNumber     byte = 2
	TagTimestamp     byte = 3
	TagTotalWithVAT  byte = 4
	TagVATAmount     byte = 5
	TagInvoiceHash   byte = 6
	TagSignature     byte = 7
	TagPublicKey     byte = 8
	TagCertSignature byte = 9
)

// MaxTLVValueLength longitud máxima de un valor (cabe en un byte).
const MaxTLVValueLength = 255

// QRPayload secuencia ordenada (tag, valor) derivada de la factura.
// Extra conserva tags fuera de 1..5 para compatibilidad hacia adelante.
type QRPayload struct {
	SellerName   string
	VATNumber    string
	Timestamp    string
	TotalWithVAT string
	VATAmount    string
	Extra        map[byte]string
}

// PayloadFromInvoice construye el QR a partir de la factura y sus montos derivados.
func PayloadFromInvoice(inv *entity.Invoice, amounts Amounts) QRPayload {
	return QRPayload{
		SellerName:   inv.Seller.Name,
		VATNumber:    inv.Seller.VATNumber,
		Timestamp:    inv.Timestamp(),
		TotalWithVAT: FormatAmount(amounts.Total),
		VATAmount:    FormatAmount(amounts.VAT),
	}
}

// WithExtra devuelve una copia del payload con el tag adicional asignado.
func (p QRPayload) WithExtra(tag byte, value string) QRPayload {
	extra := make(map[byte]string, len(p.Extra)+1)
	for k, v := range p.Extra {
		extra[k] = v
	}
	extra[tag] = value
	p.Extra = extra
	return p
}

// Encode concatena los registros en orden 1→5 y luego los tags extra en orden ascendente.
func (p QRPayload) Encode() ([]byte, error) {
	fields := []struct {
		tag   byte
		name  string
		value string
	}{
		{TagSellerName, "sellerName", p.SellerName},
		{TagVATNumber, "vatNumber", p.VATNumber},
		{TagTimestamp, "timestamp", p.Timestamp},
		{TagTotalWithVAT, "totalWithVat", p.TotalWithVAT},
		{TagVATAmount, "vatAmount", p.VATAmount},
	}
	size := 0
	for _, f := range fields {
		if f.value == "" {
			return nil, newValidationError(ErrInvalidInvoice, "qr."+f.name, "valor obligatorio", "")
		}
		size += 2 + len(f.value)
	}
	buf := make([]byte, 0, size)
	var err error
	for _, f := range fields {
		if buf, err = appendRecord(buf, f.tag, f.name, f.value); err != nil {
			return nil, err
		}
	}

	tags := make([]int, 0, len(p.Extra))
	for tag := range p.Extra {
		tags = append(tags, int(tag))
	}
	sort.Ints(tags)
	for _, t := range tags {
		tag := byte(t)
		if tag >= TagSellerName && tag <= TagVATAmount {
			return nil, fmt.Errorf("zatca: tag %d reservado, no puede ir en Extra", tag)
		}
		if buf, err = appendRecord(buf, tag, "tag"+strconv.Itoa(t), p.Extra[tag]); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// EncodeBase64 codifica y aplica base64 estándar.
func (p QRPayload) EncodeBase64() (string, error) {
	raw, err := p.Encode()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func appendRecord(buf []byte, tag byte, field, value string) ([]byte, error) {
	if len(value) > MaxTLVValueLength {
		return nil, newValidationError(ErrFieldTooLong, field, "<= 255 bytes", strconv.Itoa(len(value))+" bytes")
	}
	buf = append(buf, tag, byte(len(value)))
	return append(buf, value...), nil
}

// Decode recorre el buffer desde el offset 0: tag, longitud, valor; avanza 2+longitud.
func Decode(raw []byte) (QRPayload, error) {
	var p QRPayload
	for off := 0; off < len(raw); {
		if off+2 > len(raw) {
			return QRPayload{}, newValidationError(ErrTruncatedRecord, "offset "+strconv.Itoa(off), "tag+length", "1 byte")
		}
		tag := raw[off]
		n := int(raw[off+1])
		start := off + 2
		if start+n > len(raw) {
			return QRPayload{}, newValidationError(ErrTruncatedRecord, "tag "+strconv.Itoa(int(tag)),
				strconv.Itoa(n)+" bytes", strconv.Itoa(len(raw)-start)+" bytes")
		}
		value := string(raw[start : start+n])
		switch tag {
		case TagSellerName:
			p.SellerName = value
		case TagVATNumber:
			p.VATNumber = value
		case TagTimestamp:
			p.Timestamp = value
		case TagTotalWithVAT:
			p.TotalWithVAT = value
		case TagVATAmount:
			p.VATAmount = value
		default:
			if p.Extra == nil {
				p.Extra = make(map[byte]string)
			}
			p.Extra[tag] = value
		}
		off = start + n
	}
	return p, nil
}

// DecodeBase64 decodifica base64 estándar y luego el TLV.
func DecodeBase64(s string) (QRPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return QRPayload{}, fmt.Errorf("zatca: QR no es base64 válido: %w", err)
	}
	return Decode(raw)
}
