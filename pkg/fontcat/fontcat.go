// Package fontcat resolves font identifiers to parsed TrueType fonts.
//
// Fonts are looked up first in a local fonts directory (the product ships a
// curated set there), then in the operating system's font paths via
// go-findfont. Parsed fonts are cached per catalog; truetype.Font values are
// read-only after parsing and safe to share.
package fontcat

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/flopp/go-findfont"
	"github.com/golang/freetype/truetype"

	"github.com/certifyhq/certgen/pkg/errors"
)

// Info describes one available font for catalog listings.
type Info struct {
	Filename    string `json:"filename"`
	DisplayName string `json:"displayName"`
}

// fallbacks are tried, in order, when a requested font cannot be resolved.
// Mirrors the product's historical fallback chain.
var fallbacks = []string{
	"DejaVuSans.ttf",
	"LiberationSans-Regular.ttf",
	"Arial.ttf",
}

// Catalog resolves and caches fonts from a directory plus system paths.
type Catalog struct {
	dir string

	mu     sync.Mutex
	parsed map[string]*truetype.Font
}

// New creates a catalog over the given fonts directory. The directory may
// be empty or missing; resolution then relies on system fonts alone.
func New(dir string) *Catalog {
	return &Catalog{dir: dir, parsed: make(map[string]*truetype.Font)}
}

// propoPattern strips the verbose Nerd Font suffix from display names.
var propoPattern = regexp.MustCompile(`NerdFontPropo`)

// spacePattern collapses runs of whitespace left over after cleanup.
var spacePattern = regexp.MustCompile(`\s+`)

// List returns the catalog's available fonts sorted by display name.
// Only .ttf and .otf files are listed.
func (c *Catalog) List() ([]Info, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "reading fonts directory %s", c.dir)
	}

	var fonts []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		fonts = append(fonts, Info{
			Filename:    e.Name(),
			DisplayName: DisplayName(e.Name()),
		})
	}
	sort.Slice(fonts, func(i, j int) bool { return fonts[i].DisplayName < fonts[j].DisplayName })
	return fonts, nil
}

// DisplayName derives a human-readable name from a font filename:
// "JetBrainsMono-NerdFontPropo_Medium.ttf" becomes "JetBrainsMono Medium".
func DisplayName(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	name := strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	name = propoPattern.ReplaceAllString(name, "")
	name = strings.TrimSpace(spacePattern.ReplaceAllString(name, " "))
	if name == "" {
		return stem
	}
	return name
}

// Resolve returns the path of the named font file: the catalog directory
// first, then system font paths, then the fallback chain. An empty name
// goes straight to the fallbacks.
func (c *Catalog) Resolve(name string) (string, error) {
	if name != "" {
		if c.dir != "" {
			p := filepath.Join(c.dir, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		if p, err := findfont.Find(name); err == nil {
			return p, nil
		}
	}
	for _, fb := range fallbacks {
		if c.dir != "" {
			p := filepath.Join(c.dir, fb)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		if p, err := findfont.Find(fb); err == nil {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeFontNotFound, "font %q not found and no fallback available", name)
}

// Load resolves and parses the named font. Parsed fonts are cached; the
// returned *truetype.Font must be treated as read-only.
func (c *Catalog) Load(name string) (*truetype.Font, error) {
	path, err := c.Resolve(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.parsed[path]; ok {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "reading font %s", path)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "parsing font %s", path)
	}
	c.parsed[path] = f
	return f, nil
}

// LoadBytes resolves the named font and returns its raw file contents.
// Render workers parse their own private copy from these bytes.
func (c *Catalog) LoadBytes(name string) ([]byte, error) {
	path, err := c.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFontNotFound, err, "reading font %s", path)
	}
	return data, nil
}
