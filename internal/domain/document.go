package domain

import (
	"strings"
	"time"
)

// Index field names shared by the projector, the search backend and query building.
const (
	FieldKey          = "__key"
	FieldType         = "__type"
	FieldSort         = "__sort"
	FieldOutline      = "__outline"
	FieldContent      = "__content"
	FieldIs           = "is"
	FieldStatus       = "status"
	FieldCode         = "code"
	FieldName         = "name"
	FieldCreated      = "createddate"
	FieldModified     = "lastmodifieddate"
	FieldPriority     = "priority"
	FieldCatalog      = "catalog"
	FieldStartDate    = "startdate"
	FieldEndDate      = "enddate"
	StatusVisible     = "visible"
	StatusHidden      = "hidden"
	OutlineSeparator  = "/"
	priorityFieldBase = "priority_"
)

// PriorityField returns the name of the per-link priority field.
func PriorityField(containerID, entityID string) string {
	return priorityFieldBase + containerID + "_" + entityID
}

// ContentField returns the full-text field for a language, or the default
// content field when language is empty.
func ContentField(language string) string {
	if language == "" {
		return FieldContent
	}
	return FieldContent + "_" + strings.ToLower(language)
}

// MaxTime is the latest representable index timestamp. It is used for missing
// modification and end dates so that they sort last in descending order.
var MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// IndexTimeLayout renders timestamps with a fixed width so that lexical and
// chronological order agree.
const IndexTimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatIndexTime renders t for keyword storage in the index.
func FormatIndexTime(t time.Time) string {
	return t.UTC().Format(IndexTimeLayout)
}

// Field is one value of an index document.
type Field struct {
	Name  string
	Value any

	// Stored fields are retrievable from search hits.
	Stored bool

	// Analyzed fields are tokenized for full-text matching; the rest are
	// indexed verbatim for exact lookups, filters and sorting.
	Analyzed bool

	// Collection marks a multi-valued field.
	Collection bool
}

// IndexDocument is an ordered multimap of fields. Repeated names are
// multi-valued fields.
type IndexDocument struct {
	Fields []Field
}

// NewIndexDocument creates an empty document.
func NewIndexDocument() *IndexDocument {
	return &IndexDocument{}
}

// Add appends a field.
func (d *IndexDocument) Add(f Field) {
	d.Fields = append(d.Fields, f)
}

// Key returns the identity key of the document.
func (d *IndexDocument) Key() string {
	if v, ok := d.First(FieldKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// First returns the first value of the named field.
func (d *IndexDocument) First(name string) (any, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Values returns every value of the named field, in insertion order.
func (d *IndexDocument) Values(name string) []any {
	var values []any
	for _, f := range d.Fields {
		if f.Name == name {
			values = append(values, f.Value)
		}
	}
	return values
}

// Strings returns the string values of the named field.
func (d *IndexDocument) Strings(name string) []string {
	var values []string
	for _, v := range d.Values(name) {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// Lookup returns the first field with the given name.
func (d *IndexDocument) Lookup(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
