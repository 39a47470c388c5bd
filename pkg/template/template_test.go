package template

import (
	"image"
	"image/color"
	"testing"
)

func TestBoxValidateDefaults(t *testing.T) {
	b := Box{Field: "name", X: 10, Y: 20, W: 300, H: 80}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if b.MaxFontSize != DefaultMaxFontSize {
		t.Errorf("MaxFontSize = %d, want default %d", b.MaxFontSize, DefaultMaxFontSize)
	}
	if b.HAlign != AlignCenter || b.VAlign != AlignBottom {
		t.Errorf("alignment defaults = %s/%s, want center/bottom", b.HAlign, b.VAlign)
	}
	if b.Color != "#000000" {
		t.Errorf("Color default = %q", b.Color)
	}
}

func TestBoxValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		box  Box
	}{
		{"zero width", Box{Field: "a", W: 0, H: 10}},
		{"negative position", Box{Field: "a", X: -1, W: 10, H: 10}},
		{"bad halign", Box{Field: "a", W: 10, H: 10, HAlign: "justify"}},
		{"bad valign", Box{Field: "a", W: 10, H: 10, VAlign: "baseline"}},
		{"bad color", Box{Field: "a", W: 10, H: 10, Color: "red"}},
		{"tiny max font", Box{Field: "a", W: 10, H: 10, MaxFontSize: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.box
			if err := b.Validate(); err == nil {
				t.Errorf("Validate accepted %+v", tt.box)
			}
		})
	}
}

func TestPrintableFiltersUnboundBoxes(t *testing.T) {
	boxes := []Box{
		{Field: "name", W: 10, H: 10},
		{Field: "  ", W: 10, H: 10},
		{Field: "", W: 10, H: 10},
		{Field: "team", W: 10, H: 10},
	}
	got := Printable(boxes)
	if len(got) != 2 || got[0].Field != "name" || got[1].Field != "team" {
		t.Errorf("Printable = %+v", got)
	}
}

func TestFieldsDeduplicates(t *testing.T) {
	boxes := []Box{
		{Field: "name"}, {Field: "team"}, {Field: "name"}, {Field: ""},
	}
	got := Fields(boxes)
	if len(got) != 2 || got[0] != "name" || got[1] != "team" {
		t.Errorf("Fields = %v", got)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#000000", color.RGBA{0, 0, 0, 255}, false},
		{"#ff8000", color.RGBA{255, 128, 0, 255}, false},
		{"#fff", color.RGBA{255, 255, 255, 255}, false},
		{"red", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLayout(t *testing.T) {
	data := []byte(`
[[box]]
field = "first_name"
x = 579
y = 611
w = 840
h = 199
max_font_size = 72

[[box]]
field = ""
x = 0
y = 0
w = 100
h = 40
`)
	l, err := ParseLayout(data)
	if err != nil {
		t.Fatalf("ParseLayout: %v", err)
	}
	if len(l.Boxes) != 2 {
		t.Fatalf("got %d boxes, want 2", len(l.Boxes))
	}
	if l.Boxes[0].MaxFontSize != 72 {
		t.Errorf("MaxFontSize = %d, want 72", l.Boxes[0].MaxFontSize)
	}
	if got := Printable(l.Boxes); len(got) != 1 {
		t.Errorf("Printable count = %d, want 1", len(got))
	}
}

func TestParseLayoutRejectsEmpty(t *testing.T) {
	if _, err := ParseLayout([]byte("")); err == nil {
		t.Error("empty layout should be rejected")
	}
	if _, err := ParseLayout([]byte("[[box]]\nfield = \"x\"\nw = 0\nh = 10")); err == nil {
		t.Error("invalid box should be rejected")
	}
}

func TestCloneBackgroundIsIndependent(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Pix[0] = 200
	dst := CloneBackground(src)
	dst.Pix[0] = 7
	if src.Pix[0] != 200 {
		t.Error("mutating clone changed source pixels")
	}
}
