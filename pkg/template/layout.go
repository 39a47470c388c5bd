package template

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/certifyhq/certgen/pkg/errors"
)

// Layout is a set of field boxes as stored in a layout file. The box editor
// writes these files; the batch engine only reads them.
//
// Example:
//
//	[[box]]
//	field = "first_name"
//	x = 579
//	y = 611
//	w = 840
//	h = 199
//	max_font_size = 72
//	color = "#000000"
//	font = "JetBrainsMonoNerdFontPropo-Medium.ttf"
//	halign = "center"
//	valign = "bottom"
type Layout struct {
	Boxes []Box `toml:"box"`
}

// LoadLayout reads and validates a TOML layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "layout file %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidLayout, err, "reading layout file %s", path)
	}
	return ParseLayout(data)
}

// ParseLayout decodes a TOML layout document and validates every box.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := toml.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLayout, err, "parsing layout")
	}
	if len(l.Boxes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidLayout, "layout defines no boxes")
	}
	for i := range l.Boxes {
		if err := l.Boxes[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &l, nil
}
