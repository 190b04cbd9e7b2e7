// Package archive guarda el paquete ZIP de cada factura firmada (GCS o disco local).
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	infrazatca "github.com/jhoicas/zatca-einvoice/internal/infrastructure/zatca"
	"github.com/jhoicas/zatca-einvoice/pkg/config"
)

// ObjectOpener abre un escritor para el objeto dado. El objeto se confirma al cerrar.
type ObjectOpener func(ctx context.Context, object string) io.WriteCloser

// Archiver empaqueta el XML firmado y lo escribe con un ObjectOpener.
type Archiver struct {
	open   ObjectOpener
	prefix string
	scheme string // prefijo de la URI devuelta ("gs://bucket/", "file://dir/")
	closer func() error
}

// NewArchiver construye un archiver sobre cualquier destino (tests, otros backends).
func NewArchiver(open ObjectOpener, prefix, scheme string) *Archiver {
	return &Archiver{open: open, prefix: strings.Trim(prefix, "/"), scheme: scheme}
}

// NewGCSArchiver usa Application Default Credentials o, si se indica, un JSON o archivo
// de credenciales de cuenta de servicio.
func NewGCSArchiver(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: ARCHIVE_GCS_BUCKET es obligatorio")
	}
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: cliente GCS: %w", err)
	}
	bucket := client.Bucket(cfg.Bucket)
	a := NewArchiver(func(ctx context.Context, object string) io.WriteCloser {
		w := bucket.Object(object).NewWriter(ctx)
		w.ContentType = "application/zip"
		return w
	}, cfg.Prefix, "gs://"+cfg.Bucket+"/")
	a.closer = client.Close
	return a, nil
}

// NewDirArchiver escribe los ZIP en un directorio local (modo dev).
func NewDirArchiver(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: crear directorio %s: %w", dir, err)
	}
	return NewArchiver(func(_ context.Context, object string) io.WriteCloser {
		return &lazyFile{path: filepath.Join(dir, filepath.FromSlash(object))}
	}, "", "file://"+filepath.ToSlash(dir)+"/"), nil
}

// Archive sube {prefix}/{dispositivo}/{nombre}.zip y devuelve su URI.
func (a *Archiver) Archive(ctx context.Context, rec *entity.InvoiceRecord) (string, error) {
	if rec == nil || len(rec.SignedXML) == 0 {
		return "", fmt.Errorf("archive: factura sin XML firmado")
	}
	xmlName, zipName := infrazatca.ArchiveFilenames(&rec.Invoice)
	payload, err := infrazatca.CompressXMLToZip(rec.SignedXML, xmlName)
	if err != nil {
		return "", err
	}

	object := path.Join(a.prefix, rec.DeviceID, zipName)
	w := a.open(ctx, object)
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("archive: escribir %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive: cerrar %s: %w", object, err)
	}
	return a.scheme + object, nil
}

// Close libera el cliente subyacente, si lo hay.
func (a *Archiver) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// lazyFile crea el archivo y sus directorios en la primera escritura.
type lazyFile struct {
	path string
	f    *os.File
}

func (l *lazyFile) Write(p []byte) (int, error) {
	if l.f == nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return 0, err
		}
		f, err := os.Create(l.path)
		if err != nil {
			return 0, err
		}
		l.f = f
	}
	return l.f.Write(p)
}

func (l *lazyFile) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
