package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

const browseYAML = `
stores:
  default:
    attributes:
      - key: color
        values: [red, blue]
  Electronics:
    attributes:
      - key: brand
        values: [acme]
    ranges:
      - key: priority
        values:
          - id: low
            upper: "5"
          - id: high
            lower: "5"
            include_lower: true
`

func TestParseFilters(t *testing.T) {
	filters, err := ParseFilters(strings.NewReader(browseYAML), "electronics")
	require.NoError(t, err)
	require.Len(t, filters, 2)

	assert.Equal(t, domain.NewAttributeFilter("brand", "acme"), filters[0])
	assert.Equal(t, domain.FilterRange, filters[1].Kind)
	assert.Equal(t, "priority", filters[1].Key)
	assert.Equal(t, []domain.FilterValue{
		{ID: "low", Upper: "5"},
		{ID: "high", Lower: "5", IncludeLower: true},
	}, filters[1].Values)
}

func TestParseFilters_DefaultStore(t *testing.T) {
	filters, err := ParseFilters(strings.NewReader(browseYAML), "unknown")
	require.NoError(t, err)

	assert.Equal(t, []domain.Filter{domain.NewAttributeFilter("color", "red", "blue")}, filters)
}

func TestParseFilters_NoStore(t *testing.T) {
	filters, err := ParseFilters(strings.NewReader("stores:\n  b2b: {}\n"), "retail")
	require.NoError(t, err)
	assert.Empty(t, filters)
}

func TestParseFilters_Empty(t *testing.T) {
	filters, err := ParseFilters(strings.NewReader(""), "any")
	require.NoError(t, err)
	assert.Empty(t, filters)
}

func TestParseFilters_Invalid(t *testing.T) {
	_, err := ParseFilters(strings.NewReader("stores: [1, 2"), "any")
	assert.Error(t, err)

	_, err = ParseFilters(strings.NewReader("stores:\n  default:\n    attributes:\n      - values: [x]\n"), "any")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFileFilterSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(browseYAML), 0644))

	filters, err := NewFileFilterSource(path).Filters(context.Background(), "Electronics")
	require.NoError(t, err)
	assert.Len(t, filters, 2)
}

func TestFileFilterSource_MissingFile(t *testing.T) {
	filters, err := NewFileFilterSource(filepath.Join(t.TempDir(), "none.yaml")).Filters(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, filters)
}

func TestCachedFilterSource(t *testing.T) {
	source := &fakeFilterSource{filters: []domain.Filter{domain.NewAttributeFilter("color", "red")}}
	cached := NewCachedFilterSource(source, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		filters, err := cached.Filters(ctx, "Retail")
		require.NoError(t, err)
		assert.Len(t, filters, 1)
	}
	assert.Equal(t, 1, source.callCount())

	_, err := cached.Filters(ctx, "retail")
	require.NoError(t, err)
	assert.Equal(t, 1, source.callCount(), "store ids are case-insensitive")

	_, err = cached.Filters(ctx, "b2b")
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount(), "stores are cached separately")

	cached.Refresh("RETAIL")
	_, err = cached.Filters(ctx, "retail")
	require.NoError(t, err)
	assert.Equal(t, 3, source.callCount())

	cached.RefreshAll()
	_, err = cached.Filters(ctx, "b2b")
	require.NoError(t, err)
	assert.Equal(t, 4, source.callCount())
}

func TestCachedFilterSource_Expiry(t *testing.T) {
	source := &fakeFilterSource{}
	cached := NewCachedFilterSource(source, 20*time.Millisecond)
	ctx := context.Background()

	_, err := cached.Filters(ctx, "retail")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = cached.Filters(ctx, "retail")
	require.NoError(t, err)

	assert.Equal(t, 2, source.callCount())
}

func TestCachedFilterSource_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	source := &fakeFilterSource{err: boom}
	cached := NewCachedFilterSource(source, time.Hour)

	_, err := cached.Filters(context.Background(), "retail")
	assert.ErrorIs(t, err, boom)

	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()

	_, err = cached.Filters(context.Background(), "retail")
	require.NoError(t, err)
	assert.Equal(t, 2, source.callCount())
}

func TestSelectFilters(t *testing.T) {
	browse := []domain.Filter{
		domain.NewAttributeFilter("color", "red", "blue"),
		domain.NewRangeFilter("priority", domain.RangeValue("low", "", "5", false, false)),
		domain.NewAttributeFilter("brand", "acme"),
	}

	selected := SelectFilters(browse, map[string][]string{
		"Color":    {"BLUE"},
		"priority": {"high"},
		"size":     {"xl"},
	})

	assert.Equal(t, []domain.Filter{domain.NewAttributeFilter("color", "blue")}, selected)
}
