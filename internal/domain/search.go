package domain

// SearchHit is one ranked document id returned by the search backend.
type SearchHit struct {
	ID   string
	Rank int
}

// FacetValue is the hit count for one facet value.
type FacetValue struct {
	ID    string
	Count int
}

// Facet summarizes hit counts for one browse filter.
type Facet struct {
	Field  string
	Values []FacetValue
}

// SearchResultPage is one page of ranked hits as reported by the backend.
type SearchResultPage struct {
	Hits       []SearchHit
	TotalCount int
	Facets     []Facet
}

// AggregationItem is a facet value annotated for presentation.
type AggregationItem struct {
	Value     string `json:"value"`
	Count     int    `json:"count"`
	IsApplied bool   `json:"is_applied"`
}

// Aggregation is a facet passed through to callers with applied-state marks.
type Aggregation struct {
	Field string            `json:"field"`
	Items []AggregationItem `json:"items"`
}
