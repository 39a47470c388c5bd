package fontcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JetBrainsMonoNerdFontPropo-Medium.ttf", "JetBrainsMono Medium"},
		{"Liberation_Sans-Bold.otf", "Liberation Sans Bold"},
		{"Simple.ttf", "Simple"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Zeta.ttf", "Alpha.otf", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	fonts, err := New(dir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(fonts) != 2 {
		t.Fatalf("got %d fonts, want 2", len(fonts))
	}
	if fonts[0].Filename != "Alpha.otf" || fonts[1].Filename != "Zeta.ttf" {
		t.Errorf("unexpected order: %+v", fonts)
	}
}

func TestListMissingDir(t *testing.T) {
	fonts, err := New(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if fonts != nil {
		t.Errorf("got %v, want nil", fonts)
	}
}

func TestResolvePrefersCatalogDir(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "MyFont.ttf")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := New(dir).Resolve("MyFont.ttf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != p {
		t.Errorf("Resolve = %q, want %q", got, p)
	}
}

func TestResolveFallsBack(t *testing.T) {
	dir := t.TempDir()
	fb := filepath.Join(dir, "DejaVuSans.ttf")
	if err := os.WriteFile(fb, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Requested font is absent; the catalog-dir fallback should win before
	// any system lookup.
	got, err := New(dir).Resolve("Missing.ttf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != fb {
		t.Errorf("Resolve = %q, want fallback %q", got, fb)
	}
}
