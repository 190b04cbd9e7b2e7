package zatca

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
)

// CompressXMLToZip empaqueta el XML firmado en un archivo ZIP en memoria.
// El ZIP contiene un único archivo con el nombre de ArchiveFilenames.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^0-9A-Za-z_-]`)

// ArchiveFilenames genera los nombres del XML interno y del ZIP siguiendo la convención
// de ZATCA: {VAT vendedor}_{fecha sin guiones}T{hora sin separadores}_{número}.
// Ejemplo: 399999999900003_20240101T100000_INV-0001
func ArchiveFilenames(inv *entity.Invoice) (xmlName, zipName string) {
	date := strings.ReplaceAll(inv.IssueDate, "-", "")
	clock := strings.TrimSuffix(strings.ReplaceAll(inv.IssueTime, ":", ""), "Z")
	number := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(inv.ID), "-")
	base := inv.Seller.VATNumber + "_" + date + "T" + clock + "_" + number
	return base + ".xml", base + ".zip"
}
