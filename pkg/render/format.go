// Package render draws one record's field values onto a cached background
// image and encodes the result.
//
// A [Renderer] is built once per worker with private copies of the
// background and fonts, then reused for every record in the worker's share
// of a run. The hot path performs no per-record allocation beyond the
// encoded payload itself: the drawing surface is redrawn in place and font
// fit results are memoized.
package render

import (
	"strings"

	"github.com/certifyhq/certgen/pkg/errors"
)

// Format is a requested output document format.
type Format string

// Supported output formats.
const (
	FormatJPG Format = "jpg"
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[Format]bool{
	FormatJPG: true,
	FormatPNG: true,
	FormatPDF: true,
}

// DefaultQuality is the JPEG encoding quality used when none is configured.
const DefaultQuality = 92

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string { return string(f) }

// ParseFormats parses a comma-separated format list ("jpg,pdf").
// An empty input defaults to JPG.
func ParseFormats(s string) ([]Format, error) {
	if strings.TrimSpace(s) == "" {
		return []Format{FormatJPG}, nil
	}
	var out []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "jpeg" {
			f = FormatJPG
		}
		if !ValidFormats[f] {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: jpg, png, pdf)", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Encoding is the raster encoding a Renderer produces. PDF output is not an
// Encoding: workers always emit a raster payload and the orchestrator wraps
// it into a paginated document after the chunk barrier.
type Encoding int

const (
	// EncodeJPEG encodes the surface as JPEG at the configured quality.
	EncodeJPEG Encoding = iota
	// EncodePNG encodes the surface as lossless PNG.
	EncodePNG
)

// Ext returns the file extension for the encoding, without the dot.
func (e Encoding) Ext() string {
	if e == EncodePNG {
		return "png"
	}
	return "jpg"
}

// BaseEncoding picks the raster encoding the pool renders in for a set of
// requested formats: PNG when PNG output was asked for, JPEG otherwise.
// PDF documents are wrapped from whichever raster encoding was produced.
func BaseEncoding(formats []Format) Encoding {
	for _, f := range formats {
		if f == FormatPNG {
			return EncodePNG
		}
	}
	return EncodeJPEG
}

// NeedsConversion reports whether any requested format requires a
// post-render transform (currently only PDF wrapping).
func NeedsConversion(formats []Format) bool {
	for _, f := range formats {
		if f == FormatPDF {
			return true
		}
	}
	return false
}
