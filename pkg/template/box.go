// Package template models the visual template a batch run draws on: the
// decoded background image and the field boxes placed over it.
//
// A field box binds one dataset column to a rectangle in background pixel
// space, together with font styling and alignment. Boxes are validated once
// at load time and treated as immutable for the remainder of a run.
package template

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/certifyhq/certgen/pkg/errors"
)

// HAlign is the horizontal text alignment within a box.
type HAlign string

// VAlign is the vertical text alignment within a box.
type VAlign string

// Supported alignments. Bottom is the default vertical alignment because
// certificate name lines typically sit on a printed rule near the box floor.
const (
	AlignLeft   HAlign = "left"
	AlignCenter HAlign = "center"
	AlignRight  HAlign = "right"

	AlignTop    VAlign = "top"
	AlignMiddle VAlign = "middle"
	AlignBottom VAlign = "bottom"
)

// DefaultMaxFontSize is the maximum font size used when a box does not
// specify one.
const DefaultMaxFontSize = 60

// Box is one placement descriptor: a rectangle in background-image pixel
// space bound to a dataset field. Boxes with an empty Field are kept for
// editing round-trips but excluded from rendering.
type Box struct {
	Field string `toml:"field" json:"field"`

	X int `toml:"x" json:"x"`
	Y int `toml:"y" json:"y"`
	W int `toml:"w" json:"w"`
	H int `toml:"h" json:"h"`

	MaxFontSize int    `toml:"max_font_size" json:"max_font_size"`
	Color       string `toml:"color" json:"color"`
	Font        string `toml:"font" json:"font"`

	HAlign HAlign `toml:"halign" json:"halign"`
	VAlign VAlign `toml:"valign" json:"valign"`
}

// Validate checks dimensions and alignment values, applying defaults for
// unset optional fields. It does not require Field to be non-empty; callers
// filter unbound boxes with [Printable].
func (b *Box) Validate() error {
	if b.W <= 0 || b.H <= 0 {
		return errors.New(errors.ErrCodeInvalidBox, "box %q has non-positive dimensions %dx%d", b.Field, b.W, b.H)
	}
	if b.X < 0 || b.Y < 0 {
		return errors.New(errors.ErrCodeInvalidBox, "box %q has negative position (%d,%d)", b.Field, b.X, b.Y)
	}
	if b.MaxFontSize == 0 {
		b.MaxFontSize = DefaultMaxFontSize
	}
	if b.MaxFontSize < MinFontSize {
		return errors.New(errors.ErrCodeInvalidBox, "box %q max font size %d below minimum %d", b.Field, b.MaxFontSize, MinFontSize)
	}
	if b.Color == "" {
		b.Color = "#000000"
	}
	if _, err := ParseHexColor(b.Color); err != nil {
		return err
	}
	switch b.HAlign {
	case "":
		b.HAlign = AlignCenter
	case AlignLeft, AlignCenter, AlignRight:
	default:
		return errors.New(errors.ErrCodeInvalidBox, "box %q has unknown horizontal alignment %q", b.Field, b.HAlign)
	}
	switch b.VAlign {
	case "":
		b.VAlign = AlignBottom
	case AlignTop, AlignMiddle, AlignBottom:
	default:
		return errors.New(errors.ErrCodeInvalidBox, "box %q has unknown vertical alignment %q", b.Field, b.VAlign)
	}
	return nil
}

// MinFontSize is the smallest font size the fit search will return.
const MinFontSize = 10

// Printable returns the boxes that participate in rendering: those bound to
// a named field. The result is a copy; mutating it does not affect boxes.
func Printable(boxes []Box) []Box {
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Field) != "" {
			out = append(out, b)
		}
	}
	return out
}

// Fields returns the distinct field names printed by the given boxes, in
// first-appearance order. These are the columns that matter for print-field
// deduplication.
func Fields(boxes []Box) []string {
	seen := make(map[string]bool, len(boxes))
	var out []string
	for _, b := range boxes {
		f := strings.TrimSpace(b.Field)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// ParseHexColor parses a "#RRGGBB" or "#RGB" hex color string.
func ParseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 4:
		_, err = fmt.Sscanf(s, "#%1x%1x%1x", &c.R, &c.G, &c.B)
		// Expand 4-bit channels: #abc -> #aabbcc.
		c.R *= 17
		c.G *= 17
		c.B *= 17
	default:
		err = fmt.Errorf("length %d", len(s))
	}
	if err != nil {
		return color.RGBA{}, errors.New(errors.ErrCodeInvalidColor, "invalid hex color %q", s)
	}
	return c, nil
}
