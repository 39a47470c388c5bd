package render

import (
	"github.com/signintech/gopdf"

	"github.com/certifyhq/certgen/pkg/errors"
)

// pdfDPI maps background pixels to PDF points: a page is sized as if the
// raster were printed at 100 DPI, matching the product's historical output.
const pdfDPI = 100.0

// WrapPDF wraps an already-encoded raster payload (JPEG or PNG) into a
// single-page PDF sized to the image. No re-encoding happens; the raster
// bytes are embedded as-is, which is why PDF output costs only a small,
// predictable overhead over its source raster.
func WrapPDF(raster []byte, pxW, pxH int) ([]byte, error) {
	if pxW <= 0 || pxH <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid page size %dx%d", pxW, pxH)
	}
	w := float64(pxW) * 72.0 / pdfDPI
	h := float64(pxH) * 72.0 / pdfDPI

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{Unit: gopdf.UnitPT, PageSize: gopdf.Rect{W: w, H: h}})
	pdf.AddPage()

	holder, err := gopdf.ImageHolderByBytes(raster)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncode, err, "reading raster payload")
	}
	if err := pdf.ImageByHolder(holder, 0, 0, &gopdf.Rect{W: w, H: h}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncode, err, "placing raster on pdf page")
	}

	out, err := pdf.GetBytesPdfReturnErr()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncode, err, "serializing pdf")
	}
	return out, nil
}
