package search

import (
	"context"
	"strings"
	"sync"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// fakeBackend serves hits from a fixed ranked id list.
type fakeBackend struct {
	mu     sync.Mutex
	ids    []string
	facets []domain.Facet

	// errs are returned by successive calls; nil entries succeed.
	errs []error

	takes      []int
	lastFacets []domain.Filter
	lastScope  string
}

func newFakeBackend(ids ...string) *fakeBackend {
	return &fakeBackend{ids: ids}
}

func (b *fakeBackend) Search(_ context.Context, scope string, c domain.Criteria, facets []domain.Filter) (*domain.SearchResultPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.takes = append(b.takes, c.Take())
	b.lastFacets = facets
	b.lastScope = scope

	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	start := min(c.Skip(), len(b.ids))
	end := min(c.Skip()+c.Take(), len(b.ids))
	page := &domain.SearchResultPage{TotalCount: len(b.ids), Facets: b.facets}
	for i, id := range b.ids[start:end] {
		page.Hits = append(page.Hits, domain.SearchHit{ID: id, Rank: start + i})
	}
	return page, nil
}

// fakeLoader resolves known ids and returns them in reverse request order.
type fakeLoader struct {
	mu    sync.Mutex
	known map[string]bool
	errs  []error

	requests  [][]string
	lastGroup domain.ResponseGroup
	lastHint  string
	lastKind  domain.EntityKind
}

func newFakeLoader(ids ...string) *fakeLoader {
	l := &fakeLoader{known: make(map[string]bool)}
	for _, id := range ids {
		l.known[strings.ToLower(id)] = true
	}
	return l
}

func (l *fakeLoader) GetByIDs(_ context.Context, kind domain.EntityKind, ids []string, group domain.ResponseGroup, scopeHint string) ([]domain.Entity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.requests = append(l.requests, append([]string(nil), ids...))
	l.lastGroup = group
	l.lastHint = scopeHint
	l.lastKind = kind

	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		if err != nil {
			return nil, err
		}
	}

	var out []domain.Entity
	for i := len(ids) - 1; i >= 0; i-- {
		if l.known[strings.ToLower(ids[i])] {
			out = append(out, domain.Entity{ID: strings.ToUpper(ids[i]), Kind: kind, Name: "Entity " + ids[i]})
		}
	}
	return out, nil
}

// fakeFilterSource returns fixed filters and counts calls.
type fakeFilterSource struct {
	mu      sync.Mutex
	filters []domain.Filter
	err     error
	calls   int
}

func (s *fakeFilterSource) Filters(_ context.Context, _ string) ([]domain.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.filters, s.err
}

func (s *fakeFilterSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func recordIDs(records []domain.Entity) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, strings.ToLower(r.ID))
	}
	return ids
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('a'+i))
	}
	return out
}
