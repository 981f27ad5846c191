// internal/filter/chains.go

// Package filter drops locations belonging to large retail chains before
// they reach enrichment or merge.
package filter

import (
	"strings"

	"github.com/valpere/BrandLocator/pkg/types"
)

// ChainFilter matches store names against a denylist of chain names.
// Matching is a case-insensitive substring test. The filter holds no state
// beyond the lowered denylist, so Apply is deterministic and idempotent.
type ChainFilter struct {
	denylist []string
	lowered  []string
}

// NewChainFilter returns a filter for denylist. Blank entries are ignored.
func NewChainFilter(denylist []string) *ChainFilter {
	f := &ChainFilter{}
	for _, chain := range denylist {
		chain = strings.TrimSpace(chain)
		if chain == "" {
			continue
		}
		f.denylist = append(f.denylist, chain)
		f.lowered = append(f.lowered, strings.ToLower(chain))
	}
	return f
}

// Denylist returns the chain names the filter drops.
func (f *ChainFilter) Denylist() []string {
	return append([]string(nil), f.denylist...)
}

// Match returns the denylist entry contained in name, or "" when none is.
func (f *ChainFilter) Match(name string) string {
	lower := strings.ToLower(name)
	for i, chain := range f.lowered {
		if strings.Contains(lower, chain) {
			return f.denylist[i]
		}
	}
	return ""
}

// Excluded reports whether a store named name is dropped.
func (f *ChainFilter) Excluded(name string) bool {
	return f.Match(name) != ""
}

// Apply returns the records whose names match no chain, in their original
// order, and the number of records dropped. The input slice is not modified.
func (f *ChainFilter) Apply(records []types.RawLocationRecord) ([]types.RawLocationRecord, int) {
	kept := make([]types.RawLocationRecord, 0, len(records))
	for _, rec := range records {
		if f.Excluded(rec.Name) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept, len(records) - len(kept)
}
