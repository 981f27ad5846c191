// internal/merge/duplicates.go
package merge

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/valpere/BrandLocator/pkg/types"
)

// DuplicatePair is two structurally keyed stores that look like the same
// place. Pairs are reported, never merged.
type DuplicatePair struct {
	KeyA, KeyB   string
	NameA, NameB string
	City, State  string
	Score        float64
}

// SuspectedDuplicates compares stores that fell back to the structural key
// within the same city and state, and returns pairs whose canonical names
// score at least threshold on Jaro-Winkler. Results are sorted by score,
// highest first.
func SuspectedDuplicates(stores []*types.CanonicalStoreRecord, threshold float64) []DuplicatePair {
	groups := make(map[string][]*types.CanonicalStoreRecord)
	var order []string
	for _, s := range stores {
		if !strings.HasPrefix(s.IdentityKey, PrefixHash) || strings.TrimSpace(s.City) == "" {
			continue
		}
		g := Canonicalize(s.City) + "|" + Canonicalize(s.State)
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], s)
	}

	var pairs []DuplicatePair
	for _, g := range order {
		members := groups[g]
		for i := 0; i < len(members); i++ {
			a := Canonicalize(members[i].Name)
			for j := i + 1; j < len(members); j++ {
				b := Canonicalize(members[j].Name)
				if a == "" || b == "" {
					continue
				}
				score := matchr.JaroWinkler(a, b, false)
				if score < threshold {
					continue
				}
				pairs = append(pairs, DuplicatePair{
					KeyA: members[i].IdentityKey, KeyB: members[j].IdentityKey,
					NameA: members[i].Name, NameB: members[j].Name,
					City: members[i].City, State: members[i].State,
					Score: score,
				})
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
	return pairs
}
