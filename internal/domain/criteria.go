package domain

import (
	"strconv"
	"strings"
	"time"
)

// SortField orders hits by an index field.
type SortField struct {
	Field      string
	Descending bool
}

// DefaultSort orders by the sortable display field.
var DefaultSort = []SortField{{Field: FieldSort}}

// Criteria is an immutable search request. Each criteria kind contributes its
// own system filters; callers never inspect the concrete type.
type Criteria interface {
	DocumentType() string
	StoreID() string
	SearchPhrase() string
	Skip() int
	Take() int
	Sort() []SortField

	// CurrentFilters are the browse filter values the caller applied.
	CurrentFilters() []Filter

	// ContributeFilters are the filters implied by the criteria kind and its parameters.
	ContributeFilters() []Filter

	// ScopeHint narrows authoritative loads (for example to one catalog).
	ScopeHint() string
	ResponseGroup() ResponseGroup
	CacheKey() string

	// WithTake returns a copy requesting a different window size.
	WithTake(take int) Criteria
}

// KeywordSearch holds the parameters common to every criteria kind.
type KeywordSearch struct {
	StoreID        string
	SearchPhrase   string
	Skip           int
	Take           int
	Sort           []SortField
	CurrentFilters []Filter
	ResponseGroup  ResponseGroup
}

// keywordCriteria implements the parameter accessors shared by all kinds.
type keywordCriteria struct {
	documentType string
	p            KeywordSearch
}

func newKeywordCriteria(documentType string, p KeywordSearch) keywordCriteria {
	p.Sort = append([]SortField(nil), p.Sort...)
	filters := make([]Filter, 0, len(p.CurrentFilters))
	for _, f := range p.CurrentFilters {
		f.Values = append([]FilterValue(nil), f.Values...)
		filters = append(filters, f)
	}
	p.CurrentFilters = filters
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Take < 0 {
		p.Take = 0
	}
	return keywordCriteria{documentType: documentType, p: p}
}

func (c keywordCriteria) DocumentType() string         { return c.documentType }
func (c keywordCriteria) StoreID() string              { return c.p.StoreID }
func (c keywordCriteria) SearchPhrase() string         { return c.p.SearchPhrase }
func (c keywordCriteria) Skip() int                    { return c.p.Skip }
func (c keywordCriteria) Take() int                    { return c.p.Take }
func (c keywordCriteria) ResponseGroup() ResponseGroup { return c.p.ResponseGroup }

func (c keywordCriteria) Sort() []SortField {
	if len(c.p.Sort) == 0 {
		return DefaultSort
	}
	return append([]SortField(nil), c.p.Sort...)
}

func (c keywordCriteria) CurrentFilters() []Filter {
	return append([]Filter(nil), c.p.CurrentFilters...)
}

func (c keywordCriteria) cacheKey() string {
	var sb strings.Builder
	sb.WriteString("dt:" + c.documentType)
	sb.WriteString("_st:" + c.p.StoreID)
	sb.WriteString("_phr:" + c.p.SearchPhrase)
	sb.WriteString("_sk:" + strconv.Itoa(c.p.Skip))
	sb.WriteString("_tk:" + strconv.Itoa(c.p.Take))
	sb.WriteString("_rg:" + c.p.ResponseGroup.String())
	for _, s := range c.Sort() {
		sb.WriteString("_so:" + s.Field)
		if s.Descending {
			sb.WriteString(":desc")
		}
	}
	for _, f := range c.p.CurrentFilters {
		sb.WriteString("_f:" + f.cacheKey())
	}
	return sb.String()
}

// normalizeOutlines trims trailing separators and wildcards and lower-cases,
// matching how outlines are written by the projector.
func normalizeOutlines(outlines []string) []string {
	out := make([]string, 0, len(outlines))
	for _, o := range outlines {
		o = strings.ToLower(strings.TrimRight(o, "/*"))
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ProductSearch holds the parameters of a product search.
type ProductSearch struct {
	KeywordSearch

	// Catalog restricts hits and authoritative loads to one catalog.
	Catalog string

	// Outlines restrict hits to entities under any of the given paths,
	// e.g. "electronics/cameras".
	Outlines []string

	// ClassTypes restrict hits by concrete entity kind name.
	ClassTypes []string

	// StartDate is the availability instant; zero means now.
	StartDate time.Time

	// StartDateFrom, when set, only matches products that became available after it.
	StartDateFrom *time.Time

	// EndDate, when set, only matches products still available after it.
	EndDate *time.Time

	// WithHidden includes hidden (inactive) products.
	WithHidden bool
}

// ProductCriteria searches catalog products.
type ProductCriteria struct {
	keywordCriteria
	catalog       string
	outlines      []string
	classTypes    []string
	startDate     time.Time
	startDateFrom *time.Time
	endDate       *time.Time
	withHidden    bool
	key           string
}

// NewProductCriteria builds immutable product criteria.
func NewProductCriteria(p ProductSearch) *ProductCriteria {
	c := &ProductCriteria{
		keywordCriteria: newKeywordCriteria(DocumentTypeProduct, p.KeywordSearch),
		catalog:         p.Catalog,
		outlines:        normalizeOutlines(p.Outlines),
		classTypes:      append([]string(nil), p.ClassTypes...),
		startDate:       p.StartDate,
		withHidden:      p.WithHidden,
	}
	if c.startDate.IsZero() {
		c.startDate = time.Now().UTC()
	}
	if p.StartDateFrom != nil {
		t := *p.StartDateFrom
		c.startDateFrom = &t
	}
	if p.EndDate != nil {
		t := *p.EndDate
		c.endDate = &t
	}
	c.key = c.buildCacheKey()
	return c
}

// Catalog returns the catalog the search is restricted to.
func (c *ProductCriteria) Catalog() string { return c.catalog }

// Outlines returns the normalized outline restrictions.
func (c *ProductCriteria) Outlines() []string { return append([]string(nil), c.outlines...) }

// ScopeHint returns the catalog, which authoritative loads are restricted to.
func (c *ProductCriteria) ScopeHint() string { return c.catalog }

// CacheKey returns the key computed at construction.
func (c *ProductCriteria) CacheKey() string { return c.key }

// ContributeFilters returns availability, kind, catalog, outline and status filters.
func (c *ProductCriteria) ContributeFilters() []Filter {
	var from string
	if c.startDateFrom != nil {
		from = FormatIndexTime(*c.startDateFrom)
	}
	filters := []Filter{
		NewRangeFilter(FieldStartDate, RangeValue("", from, FormatIndexTime(c.startDate), false, true)),
	}
	if c.endDate != nil {
		filters = append(filters, NewRangeFilter(FieldEndDate, RangeValue("", FormatIndexTime(*c.endDate), "", false, false)))
	}
	if len(c.classTypes) > 0 {
		filters = append(filters, NewAttributeFilter(FieldType, c.classTypes...))
	}
	if c.catalog != "" {
		filters = append(filters, NewAttributeFilter(FieldCatalog, strings.ToLower(c.catalog)))
	}
	if len(c.outlines) > 0 {
		filters = append(filters, NewAttributeFilter(FieldOutline, c.outlines...))
	}
	if !c.withHidden {
		filters = append(filters, NewAttributeFilter(FieldStatus, StatusVisible))
	}
	return filters
}

// WithTake returns a copy with a different window size.
func (c *ProductCriteria) WithTake(take int) Criteria {
	cp := *c
	cp.p.Take = max(take, 0)
	cp.key = cp.buildCacheKey()
	return &cp
}

func (c *ProductCriteria) buildCacheKey() string {
	var sb strings.Builder
	sb.WriteString(c.keywordCriteria.cacheKey())
	sb.WriteString("_cat:" + c.catalog)
	for _, o := range c.outlines {
		sb.WriteString("_out:" + o)
	}
	for _, ct := range c.classTypes {
		sb.WriteString("_ct:" + ct)
	}
	if c.startDateFrom != nil {
		sb.WriteString("_sdf:" + FormatIndexTime(*c.startDateFrom))
	}
	if c.endDate != nil {
		sb.WriteString("_ed:" + FormatIndexTime(*c.endDate))
	}
	if c.withHidden {
		sb.WriteString("_hidden")
	}
	return sb.String()
}

// CategorySearch holds the parameters of a category search.
type CategorySearch struct {
	KeywordSearch

	// Outlines restrict hits to categories under any of the given paths.
	Outlines []string
}

// CategoryCriteria searches catalog categories.
type CategoryCriteria struct {
	keywordCriteria
	outlines []string
	key      string
}

// NewCategoryCriteria builds immutable category criteria.
func NewCategoryCriteria(p CategorySearch) *CategoryCriteria {
	c := &CategoryCriteria{
		keywordCriteria: newKeywordCriteria(DocumentTypeCategory, p.KeywordSearch),
		outlines:        normalizeOutlines(p.Outlines),
	}
	c.key = c.buildCacheKey()
	return c
}

// Outlines returns the normalized outline restrictions.
func (c *CategoryCriteria) Outlines() []string { return append([]string(nil), c.outlines...) }

// ScopeHint is empty: category loads are not restricted.
func (c *CategoryCriteria) ScopeHint() string { return "" }

// CacheKey returns the key computed at construction.
func (c *CategoryCriteria) CacheKey() string { return c.key }

// ContributeFilters returns the outline filter, if any.
func (c *CategoryCriteria) ContributeFilters() []Filter {
	if len(c.outlines) == 0 {
		return nil
	}
	return []Filter{NewAttributeFilter(FieldOutline, c.outlines...)}
}

// WithTake returns a copy with a different window size.
func (c *CategoryCriteria) WithTake(take int) Criteria {
	cp := *c
	cp.p.Take = max(take, 0)
	cp.key = cp.buildCacheKey()
	return &cp
}

func (c *CategoryCriteria) buildCacheKey() string {
	var sb strings.Builder
	sb.WriteString(c.keywordCriteria.cacheKey())
	for _, o := range c.outlines {
		sb.WriteString("_out:" + o)
	}
	return sb.String()
}

var (
	_ Criteria = (*ProductCriteria)(nil)
	_ Criteria = (*CategoryCriteria)(nil)
)
