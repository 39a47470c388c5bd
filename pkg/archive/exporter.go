package archive

import (
	"context"
	"os"
	"path/filepath"

	"github.com/certifyhq/certgen/pkg/errors"
)

// Exporter delivers one finished archive to the host environment. The
// orchestrator drops every reference to the archive as soon as Export
// returns, so implementations must not retain data past the call unless
// they copy it.
type Exporter interface {
	// Export delivers an archive under the given filename and returns a
	// location string for user-facing reporting (a path, URL, or similar).
	Export(ctx context.Context, name string, data []byte) (string, error)
}

// DirExporter writes archives into a directory, creating it on first use.
type DirExporter struct {
	Dir string
}

// Export implements Exporter.
func (e DirExporter) Export(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(errors.ErrCodeCancelled, err, "export cancelled")
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeExport, err, "creating output directory %s", e.Dir)
	}
	path := filepath.Join(e.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeExport, err, "writing %s", path)
	}
	return path, nil
}

// FuncExporter adapts a function to the Exporter interface. Useful for
// tests and for servers that stage archives for HTTP download.
type FuncExporter func(ctx context.Context, name string, data []byte) (string, error)

// Export implements Exporter.
func (f FuncExporter) Export(ctx context.Context, name string, data []byte) (string, error) {
	return f(ctx, name, data)
}
