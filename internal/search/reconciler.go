// Package search implements the read path: it runs catalog searches against
// the index and reconciles the ranked hits with the authoritative store.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

const (
	// DefaultMaxAttempts bounds the search/load round trips of one call.
	DefaultMaxAttempts = 3

	// DefaultCallTimeout bounds a single search or load call.
	DefaultCallTimeout = 10 * time.Second
)

// ErrAttemptsExhausted is returned when search or load calls keep timing out
// until the attempt budget is spent. It wraps the last deadline error.
var ErrAttemptsExhausted = errors.New("search attempts exhausted")

// Backend is the query side of the search backend.
type Backend interface {
	Search(ctx context.Context, scope string, criteria domain.Criteria, facets []domain.Filter) (*domain.SearchResultPage, error)
}

// Loader resolves ids against the authoritative store. Unknown or
// out-of-scope ids are skipped and records may come back in any order.
type Loader interface {
	GetByIDs(ctx context.Context, kind domain.EntityKind, ids []string, group domain.ResponseGroup, scopeHint string) ([]domain.Entity, error)
}

// Result is one reconciled page.
type Result struct {
	// Records are authoritative entities in search rank order.
	Records []domain.Entity `json:"records"`

	// TotalCount is the hit count reported by the backend.
	TotalCount int `json:"total_count"`

	Aggregations []domain.Aggregation `json:"aggregations,omitempty"`
}

// Options tunes a Reconciler. Zero values use defaults.
type Options struct {
	MaxAttempts int
	CallTimeout time.Duration
}

// Reconciler maps ranked search hits to authoritative records and
// over-fetches to fill pages whose hits no longer resolve.
type Reconciler struct {
	backend Backend
	loader  Loader
	filters FilterSource
	opts    Options
}

// NewReconciler creates a reconciler. filters may be nil, in which case
// searches request no facets.
func NewReconciler(backend Backend, loader Loader, filters FilterSource, opts Options) *Reconciler {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Reconciler{
		backend: backend,
		loader:  loader,
		filters: filters,
		opts:    opts,
	}
}

// Search runs criteria against scope and returns the authoritative records
// of the requested page.
//
// Hits that do not resolve in the store are drift. Each round that finds
// drift widens the window by the number of unresolved hits and searches
// again, never past the backend total, until the page fills or the attempt
// budget is spent. A short page is then returned without error.
func (r *Reconciler) Search(ctx context.Context, scope string, criteria domain.Criteria) (*Result, error) {
	kind, ok := domain.KindForDocumentType(criteria.DocumentType())
	if !ok {
		return nil, fmt.Errorf("%w: unknown document type %q", domain.ErrInvalidArgument, criteria.DocumentType())
	}

	facets, err := r.facetFilters(ctx, criteria.StoreID())
	if err != nil {
		return nil, err
	}

	requested := criteria.Take()
	current := criteria

	var (
		page    *domain.SearchResultPage
		seen    = make(map[string]struct{})
		rank    = make(map[string]int)
		records []domain.Entity
		lastErr error
	)

	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		res, err := r.search(ctx, scope, current, facets)
		if err != nil {
			if isTimeout(ctx, err) {
				lastErr = err
				slog.Warn("Search timed out", "scope", scope, "document_type", criteria.DocumentType(), "attempt", attempt)
				continue
			}
			return nil, err
		}
		page = res

		if len(page.Hits) == 0 {
			break
		}

		var newIDs []string
		for _, h := range page.Hits {
			id := strings.ToLower(h.ID)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			rank[id] = h.Rank
			newIDs = append(newIDs, h.ID)
		}

		loaded := 0
		if len(newIDs) > 0 {
			entities, err := r.load(ctx, kind, newIDs, current)
			if err != nil {
				if isTimeout(ctx, err) {
					// Unload the round so the next attempt fetches these hits again.
					for _, id := range newIDs {
						delete(seen, strings.ToLower(id))
					}
					lastErr = err
					slog.Warn("Load timed out", "scope", scope, "document_type", criteria.DocumentType(), "attempt", attempt)
					continue
				}
				return nil, err
			}
			pending := make(map[string]struct{}, len(newIDs))
			for _, id := range newIDs {
				pending[strings.ToLower(id)] = struct{}{}
			}
			for _, e := range entities {
				id := strings.ToLower(e.ID)
				if _, ok := pending[id]; !ok {
					continue
				}
				delete(pending, id)
				records = append(records, e)
				loaded++
			}
		}
		lastErr = nil

		deficit := len(newIDs) - loaded
		if deficit <= 0 {
			break
		}

		slog.Debug("Search results drifted from store",
			"scope", scope, "document_type", criteria.DocumentType(),
			"attempt", attempt, "missing", deficit, "total", page.TotalCount)

		if criteria.Skip()+current.Take() >= page.TotalCount {
			break
		}
		current = current.WithTake(min(current.Take()+deficit, page.TotalCount-criteria.Skip()))
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, r.opts.MaxAttempts, lastErr)
	}

	sortByRank(records, rank)
	if len(records) > requested {
		records = records[:requested]
	}

	result := &Result{Records: records}
	if page != nil {
		result.TotalCount = page.TotalCount
		result.Aggregations = Aggregations(page.Facets, criteria.CurrentFilters())
	}
	return result, nil
}

func (r *Reconciler) search(ctx context.Context, scope string, criteria domain.Criteria, facets []domain.Filter) (*domain.SearchResultPage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	page, err := r.backend.Search(ctx, scope, criteria, facets)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return page, nil
}

func (r *Reconciler) load(ctx context.Context, kind domain.EntityKind, ids []string, criteria domain.Criteria) ([]domain.Entity, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	entities, err := r.loader.GetByIDs(ctx, kind, ids, criteria.ResponseGroup(), criteria.ScopeHint())
	if err != nil {
		return nil, fmt.Errorf("failed to load %d records: %w", len(ids), err)
	}
	return entities, nil
}

func (r *Reconciler) facetFilters(ctx context.Context, storeID string) ([]domain.Filter, error) {
	if r.filters == nil {
		return nil, nil
	}
	filters, err := r.filters.Filters(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load browse filters: %w", err)
	}
	return filters, nil
}

// isTimeout reports whether err is a per-call deadline rather than the
// caller's own cancellation.
func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

// sortByRank orders records by the rank of their hit.
func sortByRank(records []domain.Entity, rank map[string]int) {
	slices.SortFunc(records, func(a, b domain.Entity) int {
		return cmp.Compare(rank[strings.ToLower(a.ID)], rank[strings.ToLower(b.ID)])
	})
}

// Aggregations annotates facets with the values applied by current filters.
// A value is applied when a current filter on the same field selects its id.
func Aggregations(facets []domain.Facet, current []domain.Filter) []domain.Aggregation {
	if len(facets) == 0 {
		return nil
	}

	applied := make(map[string]map[string]struct{})
	for _, f := range current {
		field := strings.ToLower(f.Key)
		if applied[field] == nil {
			applied[field] = make(map[string]struct{})
		}
		for _, id := range f.ValueIDs() {
			applied[field][strings.ToLower(id)] = struct{}{}
		}
	}

	out := make([]domain.Aggregation, 0, len(facets))
	for _, facet := range facets {
		agg := domain.Aggregation{Field: facet.Field, Items: make([]domain.AggregationItem, 0, len(facet.Values))}
		values := applied[strings.ToLower(facet.Field)]
		for _, v := range facet.Values {
			_, isApplied := values[strings.ToLower(v.ID)]
			agg.Items = append(agg.Items, domain.AggregationItem{Value: v.ID, Count: v.Count, IsApplied: isApplied})
		}
		out = append(out, agg)
	}
	return out
}
