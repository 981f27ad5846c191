// internal/merge/naming.go
package merge

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/valpere/BrandLocator/internal/config"
)

// BrandNamer turns input file names into brand display names.
type BrandNamer struct {
	aliases   map[string]string
	suffixes  []string
	overrides map[string]string
}

// NewBrandNamer builds a namer from the brands configuration.
func NewBrandNamer(cfg config.BrandsConfig) *BrandNamer {
	aliases := make(map[string]string, len(cfg.Aliases))
	for k, v := range cfg.Aliases {
		aliases[strings.ToLower(k)] = v
	}
	return &BrandNamer{
		aliases:   aliases,
		suffixes:  cfg.StripSuffixes,
		overrides: make(map[string]string),
	}
}

// Override pins the brand name for a file, matched by full path or base name.
func (n *BrandNamer) Override(file, brand string) {
	n.overrides[file] = brand
}

// Name returns the brand for path: an override, else the alias of the file
// stem, else the stem with underscores as spaces in title case.
func (n *BrandNamer) Name(path string) string {
	base := filepath.Base(path)
	if brand, ok := n.overrides[path]; ok {
		return brand
	}
	if brand, ok := n.overrides[base]; ok {
		return brand
	}

	stem := n.Stem(base)
	if brand, ok := n.aliases[strings.ToLower(stem)]; ok {
		return brand
	}
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Stem strips the first matching configured suffix from a base name.
func (n *BrandNamer) Stem(base string) string {
	for _, suffix := range n.suffixes {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}

// HasOverride reports whether path has a pinned brand name.
func (n *BrandNamer) HasOverride(path string) bool {
	_, full := n.overrides[path]
	_, base := n.overrides[filepath.Base(path)]
	return full || base
}
