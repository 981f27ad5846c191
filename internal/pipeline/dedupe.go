// internal/pipeline/dedupe.go
package pipeline

import "github.com/valpere/BrandLocator/pkg/types"

// Deduplicate drops repeated records from one source, keeping the first
// occurrence. Records are keyed by platform id, or by name, address and city
// when they carry none. It returns the survivors and how many were dropped.
func Deduplicate(records []types.RawLocationRecord) ([]types.RawLocationRecord, int) {
	seen := make(map[string]bool, len(records))
	out := make([]types.RawLocationRecord, 0, len(records))
	for _, rec := range records {
		key := rec.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}
