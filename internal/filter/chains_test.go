// internal/filter/chains_test.go
package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/pkg/types"
)

func names(records []types.RawLocationRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func record(name string) types.RawLocationRecord {
	return types.RawLocationRecord{Name: name}
}

func TestChainFilterApply(t *testing.T) {
	f := NewChainFilter(config.DefaultChains())

	in := []types.RawLocationRecord{
		record("Acme Whole Foods Express"),
		record("Green Grocer"),
		record("SUPER TARGET #123"),
		record("walmart neighborhood market"),
		record("Corner Co-op"),
	}

	kept, excluded := f.Apply(in)

	assert.Equal(t, 3, excluded)
	if diff := cmp.Diff([]string{"Green Grocer", "Corner Co-op"}, names(kept)); diff != "" {
		t.Errorf("kept names mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, in, 5, "input is not modified")
}

func TestChainFilterIdempotent(t *testing.T) {
	f := NewChainFilter([]string{"Whole Foods", "Kroger"})
	in := []types.RawLocationRecord{
		record("Kroger Marketplace"), record("Local Shop"), record("Whole Foods Market"), record("Deli"),
	}

	once, n1 := f.Apply(in)
	twice, n2 := f.Apply(once)

	assert.Equal(t, 2, n1)
	assert.Equal(t, 0, n2)
	assert.Equal(t, names(once), names(twice))
}

func TestChainFilterMatch(t *testing.T) {
	f := NewChainFilter([]string{" Stop & Shop ", "", "Safeway"})

	tests := []struct {
		name string
		want string
	}{
		{"STOP & SHOP #44", "Stop & Shop"},
		{"Safeway Fuel", "Safeway"},
		{"Stop and Shop", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Match(tt.name))
		})
	}
	assert.Equal(t, []string{"Stop & Shop", "Safeway"}, f.Denylist())
}

func TestChainFilterEmptyDenylist(t *testing.T) {
	kept, excluded := NewChainFilter(nil).Apply([]types.RawLocationRecord{record("Whole Foods")})
	assert.Len(t, kept, 1)
	assert.Zero(t, excluded)

	kept, excluded = NewChainFilter(nil).Apply(nil)
	assert.NotNil(t, kept)
	assert.Zero(t, excluded)
}
