// internal/merge/summary.go
package merge

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// BrandSummary is one row of the per-brand table.
type BrandSummary struct {
	Brand string
	types.BrandStats
}

// TopStore is a store found in several brand locators.
type TopStore struct {
	Name       string
	BrandCount int
	Brands     []string
}

// Summary describes a merged directory for humans.
type Summary struct {
	TotalStores int
	Brands      []BrandSummary
	// Distribution maps a brand count to the number of stores with it.
	Distribution        map[int]int
	MultiBrandStores    int
	TopStores           []TopStore
	SuspectedDuplicates []DuplicatePair
}

// Summarize computes the merge summary. topN limits TopStores; a threshold
// of zero skips the suspected duplicate report.
func Summarize(dir *types.MergedDirectory, topN int, threshold float64) *Summary {
	s := &Summary{
		TotalStores:  len(dir.Stores),
		Distribution: make(map[int]int),
	}

	for _, brand := range dir.Brands() {
		s.Brands = append(s.Brands, BrandSummary{Brand: brand, BrandStats: *dir.BrandStats[brand]})
	}

	var multi []*types.CanonicalStoreRecord
	for _, store := range dir.Stores {
		s.Distribution[store.BrandCount]++
		if store.BrandCount > 1 {
			multi = append(multi, store)
		}
	}
	s.MultiBrandStores = len(multi)

	sort.SliceStable(multi, func(i, j int) bool { return multi[i].BrandCount > multi[j].BrandCount })
	if topN >= 0 && len(multi) > topN {
		multi = multi[:topN]
	}
	for _, store := range multi {
		s.TopStores = append(s.TopStores, TopStore{
			Name:       displayName(store),
			BrandCount: store.BrandCount,
			Brands:     append([]string(nil), store.Brands...),
		})
	}

	if threshold > 0 {
		s.SuspectedDuplicates = SuspectedDuplicates(dir.Stores, threshold)
	}
	return s
}

// Render writes the summary as tables.
func (s *Summary) Render(w io.Writer) {
	fmt.Fprintf(w, "Total unique stores: %d\n\n", s.TotalStores)

	brands := newTable(w, "Stores by brand")
	brands.AppendHeader(table.Row{"Brand", "Total", "New", "Already present"})
	for _, b := range s.Brands {
		brands.AppendRow(table.Row{b.Brand, b.TotalStores, b.NewStores, b.ExistingStores})
	}
	brands.Render()

	counts := make([]int, 0, len(s.Distribution))
	for c := range s.Distribution {
		counts = append(counts, c)
	}
	sort.Ints(counts)
	dist := newTable(w, "Stores by brand count")
	dist.AppendHeader(table.Row{"Brands", "Stores"})
	for _, c := range counts {
		label := fmt.Sprintf("found in %d brands", c)
		if c == 1 {
			label = "exclusive to 1 brand"
		}
		dist.AppendRow(table.Row{label, s.Distribution[c]})
	}
	dist.Render()

	if len(s.TopStores) > 0 {
		top := newTable(w, "Top multi-brand stores")
		top.AppendHeader(table.Row{"Store", "Brands", "Carried"})
		for _, t := range s.TopStores {
			top.AppendRow(table.Row{utils.TruncateString(t.Name, 40), t.BrandCount, strings.Join(t.Brands, ", ")})
		}
		top.Render()
	}

	if len(s.SuspectedDuplicates) > 0 {
		dups := newTable(w, "Suspected duplicates (not merged)")
		dups.AppendHeader(table.Row{"Store A", "Store B", "City", "Score"})
		for _, d := range s.SuspectedDuplicates {
			dups.AppendRow(table.Row{d.NameA, d.NameB, d.City, fmt.Sprintf("%.3f", d.Score)})
		}
		dups.Render()
	}

	fmt.Fprintf(w, "%d brands tracked, %d stores carry multiple brands\n", len(s.Brands), s.MultiBrandStores)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle(title)
	return t
}
