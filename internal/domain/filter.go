package domain

import (
	"strconv"
	"strings"
)

// FilterKind is the closed set of filter shapes the backend understands.
type FilterKind int

const (
	// FilterAttribute matches any of a list of exact values.
	FilterAttribute FilterKind = iota

	// FilterRange matches values within any of a list of ranges.
	FilterRange
)

func (k FilterKind) String() string {
	switch k {
	case FilterAttribute:
		return "attribute"
	case FilterRange:
		return "range"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// FilterValue is one selectable value of a filter. Attribute values use
// Value; range values use the bounds, where an empty bound is open.
type FilterValue struct {
	ID           string
	Value        string
	Lower        string
	Upper        string
	IncludeLower bool
	IncludeUpper bool
}

// Filter restricts hits to documents whose Key field matches one of Values.
type Filter struct {
	Kind   FilterKind
	Key    string
	Values []FilterValue
}

// NewAttributeFilter builds an attribute filter whose value ids equal the values.
func NewAttributeFilter(key string, values ...string) Filter {
	f := Filter{Kind: FilterAttribute, Key: key, Values: make([]FilterValue, 0, len(values))}
	for _, v := range values {
		f.Values = append(f.Values, FilterValue{ID: v, Value: v})
	}
	return f
}

// NewRangeFilter builds a range filter.
func NewRangeFilter(key string, values ...FilterValue) Filter {
	return Filter{Kind: FilterRange, Key: key, Values: append([]FilterValue(nil), values...)}
}

// RangeValue builds one range filter value. An empty id is derived from the bounds.
func RangeValue(id, lower, upper string, includeLower, includeUpper bool) FilterValue {
	if id == "" {
		id = lower + ".." + upper
	}
	return FilterValue{ID: id, Lower: lower, Upper: upper, IncludeLower: includeLower, IncludeUpper: includeUpper}
}

// ValueIDs returns the ids of the filter's values.
func (f Filter) ValueIDs() []string {
	ids := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		ids = append(ids, v.ID)
	}
	return ids
}

// Select returns a copy of f keeping only values whose id is in ids
// (case-insensitive). ok is false when nothing is left.
func (f Filter) Select(ids []string) (Filter, bool) {
	out := Filter{Kind: f.Kind, Key: f.Key}
	for _, v := range f.Values {
		for _, id := range ids {
			if strings.EqualFold(v.ID, id) {
				out.Values = append(out.Values, v)
				break
			}
		}
	}
	return out, len(out.Values) > 0
}

// cacheKey renders the filter for criteria cache keys.
func (f Filter) cacheKey() string {
	var sb strings.Builder
	sb.WriteString(f.Kind.String())
	sb.WriteByte(':')
	sb.WriteString(f.Key)
	for _, v := range f.Values {
		sb.WriteByte('=')
		sb.WriteString(v.ID)
	}
	return sb.String()
}
