package search

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// DefaultStore holds the browse filters used by stores without their own.
const DefaultStore = "default"

// FilterSource provides the browse filters configured for a store.
type FilterSource interface {
	Filters(ctx context.Context, storeID string) ([]domain.Filter, error)
}

// browseFile is the YAML layout of a browse filter file:
//
//	stores:
//	  default:
//	    attributes:
//	      - key: color
//	        values: [red, blue]
//	    ranges:
//	      - key: priority
//	        values:
//	          - id: low
//	            upper: "5"
//	          - id: high
//	            lower: "5"
//	            include_lower: true
type browseFile struct {
	Stores map[string]browsing `yaml:"stores"`
}

type browsing struct {
	Attributes []attributeFilter `yaml:"attributes"`
	Ranges     []rangeFilter     `yaml:"ranges"`
}

type attributeFilter struct {
	Key    string   `yaml:"key"`
	Values []string `yaml:"values"`
}

type rangeFilter struct {
	Key    string       `yaml:"key"`
	Values []rangeValue `yaml:"values"`
}

type rangeValue struct {
	ID           string `yaml:"id"`
	Lower        string `yaml:"lower"`
	Upper        string `yaml:"upper"`
	IncludeLower bool   `yaml:"include_lower"`
	IncludeUpper bool   `yaml:"include_upper"`
}

// FileFilterSource reads browse filters from a YAML file on every call.
type FileFilterSource struct {
	path string
}

// NewFileFilterSource creates a filter source backed by the file at path.
func NewFileFilterSource(path string) *FileFilterSource {
	return &FileFilterSource{path: path}
}

// Filters returns the filters of storeID, falling back to the default store.
// A missing file yields no filters.
func (s *FileFilterSource) Filters(_ context.Context, storeID string) ([]domain.Filter, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open browse filters: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseFilters(f, storeID)
}

// ParseFilters decodes a browse filter document and returns the filters
// of storeID, falling back to the default store.
func ParseFilters(r io.Reader, storeID string) ([]domain.Filter, error) {
	var file browseFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse browse filters: %w", err)
	}

	b, ok := lookupStore(file.Stores, storeID)
	if !ok {
		return nil, nil
	}

	var filters []domain.Filter
	for _, a := range b.Attributes {
		if a.Key == "" {
			return nil, fmt.Errorf("%w: attribute filter without key", domain.ErrInvalidArgument)
		}
		filters = append(filters, domain.NewAttributeFilter(a.Key, a.Values...))
	}
	for _, rf := range b.Ranges {
		if rf.Key == "" {
			return nil, fmt.Errorf("%w: range filter without key", domain.ErrInvalidArgument)
		}
		values := make([]domain.FilterValue, 0, len(rf.Values))
		for _, v := range rf.Values {
			values = append(values, domain.RangeValue(v.ID, v.Lower, v.Upper, v.IncludeLower, v.IncludeUpper))
		}
		filters = append(filters, domain.NewRangeFilter(rf.Key, values...))
	}
	return filters, nil
}

func lookupStore(stores map[string]browsing, storeID string) (browsing, bool) {
	for name, b := range stores {
		if strings.EqualFold(name, storeID) {
			return b, true
		}
	}
	b, ok := stores[DefaultStore]
	return b, ok
}

// CachedFilterSource memoizes another source per store id for a fixed TTL.
type CachedFilterSource struct {
	source FilterSource
	cache  *cache.Cache
}

// NewCachedFilterSource caches the filters of source for ttl.
func NewCachedFilterSource(source FilterSource, ttl time.Duration) *CachedFilterSource {
	return &CachedFilterSource{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Filters returns the cached filters of storeID, loading them on a miss.
func (s *CachedFilterSource) Filters(ctx context.Context, storeID string) ([]domain.Filter, error) {
	key := strings.ToLower(storeID)
	if cached, found := s.cache.Get(key); found {
		return cached.([]domain.Filter), nil
	}

	filters, err := s.source.Filters(ctx, storeID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, filters, cache.DefaultExpiration)
	return filters, nil
}

// Refresh drops the cached filters of storeID.
func (s *CachedFilterSource) Refresh(storeID string) {
	s.cache.Delete(strings.ToLower(storeID))
}

// RefreshAll drops every cached entry.
func (s *CachedFilterSource) RefreshAll() {
	s.cache.Flush()
}

// SelectFilters narrows browse filters to the values a caller selected,
// keyed by filter key. Filters with no selected value are dropped.
func SelectFilters(filters []domain.Filter, selected map[string][]string) []domain.Filter {
	var out []domain.Filter
	for _, f := range filters {
		for key, ids := range selected {
			if !strings.EqualFold(key, f.Key) {
				continue
			}
			if applied, ok := f.Select(ids); ok {
				out = append(out, applied)
			}
		}
	}
	return out
}
