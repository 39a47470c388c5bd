// Package archive bundles a chunk's rendered documents into a single
// downloadable archive and hands it to a delivery mechanism.
//
// Archives are store-only: the payloads are already-compressed formats
// (JPEG, PNG, PDF), so CPU time is spent on encoding fidelity and parallel
// rendering, not on squeezing a few percent out of deflate.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/certifyhq/certgen/pkg/errors"
)

// File is one named payload inside an archive.
type File struct {
	Name string
	Data []byte
}

// Build serializes files into a single store-only ZIP blob.
func Build(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   f.Name,
			Method: zip.Store,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodePackage, err, "adding %s to archive", f.Name)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, errors.Wrap(errors.ErrCodePackage, err, "writing %s to archive", f.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodePackage, err, "finalizing archive")
	}
	return buf.Bytes(), nil
}

// Name builds the deterministic archive filename for one chunk of one
// output format: "<base>_<format>.zip", or
// "<base>_<format>_part<k>_of_<n>.zip" when the run spans several chunks.
// part is 1-based.
func Name(base, format string, part, totalParts int) string {
	if totalParts <= 1 {
		return fmt.Sprintf("%s_%s.zip", base, format)
	}
	return fmt.Sprintf("%s_%s_part%d_of_%d.zip", base, format, part, totalParts)
}
