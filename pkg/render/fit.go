package render

import "github.com/certifyhq/certgen/pkg/template"

// fitKey memoizes fit-search results. Keying by text length rather than the
// full text assumes same-length strings have near-identical widths; for a
// single template's font that is close enough, and it keeps the cache tiny
// on datasets full of similar names. A documented approximation, not
// exactness.
type fitKey struct {
	textLen int
	boxW    int
	boxH    int
	maxSize int
	font    string
}

// fitSize returns the largest font size in [MinFontSize, box.MaxFontSize]
// whose rendered width fits boxW-padding and whose line height
// (size × 1.2) fits boxH-padding. Binary search over the integer range:
// fits(size) is monotonic in size, so O(log range) measurements replace the
// old linear decrement. If nothing fits, the minimum size is used anyway:
// a cramped line beats a missing one.
func (r *Renderer) fitSize(text string, b *boxLayout) int {
	key := fitKey{textLen: len(text), boxW: b.W, boxH: b.H, maxSize: b.MaxFontSize, font: b.Font}
	if size, ok := r.fit[key]; ok {
		return size
	}

	best := template.MinFontSize
	lo, hi := template.MinFontSize, b.MaxFontSize
	for lo <= hi {
		mid := (lo + hi) / 2
		if r.fits(text, b, mid) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	r.fit[key] = best
	return best
}

func (r *Renderer) fits(text string, b *boxLayout, size int) bool {
	if size*lineHeightTenths > (b.H-boxPadding)*10 {
		return false
	}
	r.dc.SetFontFace(r.face(b.Font, size))
	w, _ := r.dc.MeasureString(text)
	return w <= float64(b.W-boxPadding)
}
