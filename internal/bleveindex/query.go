package bleveindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// nameBoost favours phrase matches on the display name over body content.
const nameBoost = 2.0

// Search runs criteria against scope and returns one page of ranked hits.
// Each facet filter is answered with per-value hit counts under the same query.
func (b *Backend) Search(ctx context.Context, scope string, criteria domain.Criteria, facets []domain.Filter) (*domain.SearchResultPage, error) {
	b.mu.Lock()
	s, err := b.scope(scope)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	q := buildQuery(criteria)

	req := bleve.NewSearchRequestOptions(q, criteria.Take(), criteria.Skip(), false)
	req.SortBy(sortOrder(criteria.Sort()))

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	prefix := docID(criteria.DocumentType(), "")
	page := &domain.SearchResultPage{
		Hits:       make([]domain.SearchHit, 0, len(res.Hits)),
		TotalCount: int(res.Total),
	}
	for i, h := range res.Hits {
		page.Hits = append(page.Hits, domain.SearchHit{
			ID:   strings.TrimPrefix(h.ID, prefix),
			Rank: criteria.Skip() + i,
		})
	}

	for _, f := range facets {
		facet, err := s.countFacet(ctx, q, f)
		if err != nil {
			return nil, err
		}
		if len(facet.Values) > 0 {
			page.Facets = append(page.Facets, facet)
		}
	}

	return page, nil
}

// countFacet counts the hits of q matching each value of f.
func (s *scopeIndex) countFacet(ctx context.Context, q query.Query, f domain.Filter) (domain.Facet, error) {
	facet := domain.Facet{Field: f.Key}
	for _, v := range f.Values {
		vq := valueQuery(f.Kind, f.Key, v)
		if vq == nil {
			continue
		}
		req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(q, vq), 0, 0, false)
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return facet, fmt.Errorf("facet %s failed: %w", f.Key, err)
		}
		if res.Total > 0 {
			facet.Values = append(facet.Values, domain.FacetValue{ID: v.ID, Count: int(res.Total)})
		}
	}
	return facet, nil
}

// buildQuery combines the document type, the search phrase, the filters the
// criteria contribute and the filters the caller applied.
func buildQuery(criteria domain.Criteria) query.Query {
	must := []query.Query{termQuery(FieldDocumentType, criteria.DocumentType())}

	if phrase := strings.TrimSpace(criteria.SearchPhrase()); phrase != "" {
		content := bleve.NewMatchQuery(phrase)
		content.SetField(domain.FieldContent)

		name := bleve.NewMatchQuery(phrase)
		name.SetField(domain.FieldName)
		name.SetBoost(nameBoost)

		code := termQuery(domain.FieldIs, strings.ToLower(phrase))

		must = append(must, bleve.NewDisjunctionQuery(content, name, code))
	}

	filters := append(criteria.ContributeFilters(), criteria.CurrentFilters()...)
	for _, f := range filters {
		if fq := filterQuery(f); fq != nil {
			must = append(must, fq)
		}
	}

	return bleve.NewConjunctionQuery(must...)
}

// filterQuery matches any value of f. A filter without usable values is skipped.
func filterQuery(f domain.Filter) query.Query {
	var anyOf []query.Query
	for _, v := range f.Values {
		if vq := valueQuery(f.Kind, f.Key, v); vq != nil {
			anyOf = append(anyOf, vq)
		}
	}
	switch len(anyOf) {
	case 0:
		return nil
	case 1:
		return anyOf[0]
	default:
		return bleve.NewDisjunctionQuery(anyOf...)
	}
}

// valueQuery matches one filter value.
func valueQuery(kind domain.FilterKind, field string, v domain.FilterValue) query.Query {
	switch kind {
	case domain.FilterAttribute:
		return attributeQuery(field, v.Value)
	case domain.FilterRange:
		return rangeQuery(field, v)
	default:
		return nil
	}
}

func attributeQuery(field, value string) query.Query {
	if value == "" {
		return nil
	}
	tq := termQuery(field, value)
	if value == "true" || value == "false" {
		bq := bleve.NewBoolFieldQuery(value == "true")
		bq.SetField(field)
		return bleve.NewDisjunctionQuery(tq, bq)
	}
	return tq
}

// rangeQuery matches numerically when every given bound is a number and
// lexically otherwise. Empty bounds are open.
func rangeQuery(field string, v domain.FilterValue) query.Query {
	if v.Lower == "" && v.Upper == "" {
		return nil
	}

	lower, lowerNum := parseBound(v.Lower)
	upper, upperNum := parseBound(v.Upper)
	if lowerNum && upperNum {
		q := bleve.NewNumericRangeInclusiveQuery(lower, upper, &v.IncludeLower, &v.IncludeUpper)
		q.SetField(field)
		return q
	}

	q := bleve.NewTermRangeInclusiveQuery(v.Lower, v.Upper, &v.IncludeLower, &v.IncludeUpper)
	q.SetField(field)
	return q
}

// parseBound returns the numeric value of a bound. An empty bound is numeric
// with a nil value.
func parseBound(s string) (*float64, bool) {
	if s == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}

func termQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}

// sortOrder renders sort fields for SortBy, breaking ties by document id.
func sortOrder(fields []domain.SortField) []string {
	order := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		name := strings.ToLower(f.Field)
		if name == "" {
			continue
		}
		if f.Descending {
			name = "-" + name
		}
		order = append(order, name)
	}
	return append(order, "_id")
}
