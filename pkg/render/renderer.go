package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/certifyhq/certgen/pkg/errors"
	"github.com/certifyhq/certgen/pkg/template"
)

// Box padding and placement offsets, in background pixels. These match the
// product's established output so regenerated batches line up with old ones.
const (
	boxPadding       = 10 // fit-search padding on width and height
	edgeInset        = 5  // left/right anchor inset, top baseline inset
	bottomInset      = 8  // bottom baseline inset
	lineHeightTenths = 12 // line height factor 1.2, in tenths
)

// boxLayout is a field box with everything the per-record hot path needs
// precomputed: parsed color and the horizontal anchor for its alignment.
type boxLayout struct {
	template.Box
	rgba    color.RGBA
	anchorX int // left inset, right inset, or midpoint depending on HAlign
}

// Options configures a Renderer. Background and FontData must be private to
// the renderer; workers clone them before construction.
type Options struct {
	Background *image.RGBA
	Boxes      []template.Box    // printable, validated boxes
	FontData   map[string][]byte // raw font bytes keyed by box font id ("" allowed)
	Encoding   Encoding
	Quality    int // JPEG quality; 0 means DefaultQuality
}

// Renderer turns one record into one encoded payload. It is not safe for
// concurrent use; each render worker owns exactly one.
type Renderer struct {
	background *image.RGBA
	surface    *image.RGBA
	dc         *gg.Context
	boxes      []boxLayout
	fonts      map[string]*truetype.Font
	faces      map[faceKey]font.Face
	fit        map[fitKey]int
	encoding   Encoding
	quality    int
}

type faceKey struct {
	font string
	size int
}

// New builds a Renderer. It parses fonts and precomputes per-box layout so
// the per-record path does no setup work.
func New(opts Options) (*Renderer, error) {
	if opts.Background == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "renderer requires a background image")
	}
	quality := opts.Quality
	if quality == 0 {
		quality = DefaultQuality
	}

	r := &Renderer{
		background: opts.Background,
		surface:    image.NewRGBA(opts.Background.Bounds()),
		boxes:      make([]boxLayout, 0, len(opts.Boxes)),
		fonts:      make(map[string]*truetype.Font, len(opts.FontData)),
		faces:      make(map[faceKey]font.Face),
		fit:        make(map[fitKey]int),
		encoding:   opts.Encoding,
		quality:    quality,
	}
	r.dc = gg.NewContextForRGBA(r.surface)

	for name, data := range opts.FontData {
		f, err := truetype.Parse(data)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "parsing font %q", name)
		}
		r.fonts[name] = f
	}

	for _, b := range opts.Boxes {
		if strings.TrimSpace(b.Field) == "" {
			continue
		}
		if _, ok := r.fonts[b.Font]; !ok {
			return nil, errors.New(errors.ErrCodeFontNotFound, "no font data supplied for box %q font %q", b.Field, b.Font)
		}
		rgba, err := template.ParseHexColor(b.Color)
		if err != nil {
			return nil, err
		}
		bl := boxLayout{Box: b, rgba: rgba}
		switch b.HAlign {
		case template.AlignLeft:
			bl.anchorX = b.X + edgeInset
		case template.AlignRight:
			bl.anchorX = b.X + b.W - edgeInset
		default:
			bl.anchorX = b.X + b.W/2
		}
		r.boxes = append(r.boxes, bl)
	}
	if len(r.boxes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidBox, "no printable boxes")
	}
	return r, nil
}

// Bounds returns the output document's pixel bounds.
func (r *Renderer) Bounds() image.Rectangle { return r.background.Bounds() }

// Draw renders the record's field values onto the internal surface,
// replacing whatever the previous record left there. It returns an error
// without drawing partial text when every printed field is empty, and
// converts any drawing panic into an error rather than unwinding through
// the worker.
func (r *Renderer) Draw(record map[string]string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.ErrCodeRender, "draw panic: %v", p)
		}
	}()

	copy(r.surface.Pix, r.background.Pix)

	drew := false
	for i := range r.boxes {
		b := &r.boxes[i]
		text := strings.TrimSpace(record[b.Field])
		if text == "" {
			continue
		}
		drew = true

		size := r.fitSize(text, b)
		face := r.face(b.Font, size)
		r.dc.SetFontFace(face)
		textW, _ := r.dc.MeasureString(text)

		var x float64
		switch b.HAlign {
		case template.AlignLeft:
			x = float64(b.anchorX)
		case template.AlignRight:
			x = float64(b.anchorX) - textW
		default:
			x = float64(b.anchorX) - textW/2
		}

		var y float64
		switch b.VAlign {
		case template.AlignTop:
			y = float64(b.Y + size + edgeInset)
		case template.AlignMiddle:
			y = float64(b.Y + (b.H+size)/2)
		default:
			y = float64(b.Y + b.H - bottomInset)
		}

		r.dc.SetColor(b.rgba)
		r.dc.DrawString(text, x, y)
	}
	if !drew {
		return errors.New(errors.ErrCodeRender, "all fields empty")
	}
	return nil
}

// Snapshot copies the current surface into dst, allocating when dst is nil
// or the wrong size. The returned image is independent of the surface, so a
// background encode can run while the next record is drawn.
func (r *Renderer) Snapshot(dst *image.RGBA) *image.RGBA {
	if dst == nil || !dst.Bounds().Eq(r.surface.Bounds()) {
		dst = image.NewRGBA(r.surface.Bounds())
	}
	copy(dst.Pix, r.surface.Pix)
	return dst
}

// Encode encodes an image in the renderer's configured encoding.
// It is safe to call concurrently with Draw as long as img is not the
// live surface (use Snapshot).
func (r *Renderer) Encode(img image.Image) (payload []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			payload, err = nil, errors.New(errors.ErrCodeEncode, "encode panic: %v", p)
		}
	}()

	var buf bytes.Buffer
	switch r.encoding {
	case EncodePNG:
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality})
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncode, err, "encoding %s", r.encoding.Ext())
	}
	return buf.Bytes(), nil
}

// Render is the one-shot path: draw the record and encode the surface.
// Used for probes and previews; batch workers pipeline Draw/Snapshot/Encode
// instead.
func (r *Renderer) Render(record map[string]string) ([]byte, error) {
	if err := r.Draw(record); err != nil {
		return nil, err
	}
	return r.Encode(r.surface)
}

func (r *Renderer) face(fontName string, size int) font.Face {
	key := faceKey{font: fontName, size: size}
	if f, ok := r.faces[key]; ok {
		return f
	}
	f := truetype.NewFace(r.fonts[fontName], &truetype.Options{
		Size:    float64(size),
		DPI:     72, // size in px == size in pt at 72 DPI
		Hinting: font.HintingFull,
	})
	r.faces[key] = f
	return f
}

// String implements fmt.Stringer for debug logging.
func (r *Renderer) String() string {
	b := r.background.Bounds()
	return fmt.Sprintf("renderer(%dx%d, %d boxes, %s)", b.Dx(), b.Dy(), len(r.boxes), r.encoding.Ext())
}
