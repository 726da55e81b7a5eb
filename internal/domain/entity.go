package domain

import (
	"strings"
	"time"
)

// EntityKind is the concrete kind of an authoritative catalog record.
type EntityKind string

const (
	// KindCategory is a catalog category (a container in the outline tree).
	KindCategory EntityKind = "Category"

	// KindProduct is a catalog product (a leaf in the outline tree).
	KindProduct EntityKind = "CatalogProduct"
)

// Tag returns the lower-case semantic tag used by the "is" facet.
func (k EntityKind) Tag() string {
	switch k {
	case KindCategory:
		return "category"
	case KindProduct:
		return "product"
	default:
		return strings.ToLower(string(k))
	}
}

// DocumentType returns the index document type the kind is published under.
func (k EntityKind) DocumentType() string {
	switch k {
	case KindCategory:
		return DocumentTypeCategory
	case KindProduct:
		return DocumentTypeProduct
	default:
		return strings.ToLower(string(k))
	}
}

// Index document types.
const (
	DocumentTypeCategory = "category"
	DocumentTypeProduct  = "catalogitem"
)

// KindForDocumentType maps an index document type back to its entity kind.
func KindForDocumentType(documentType string) (EntityKind, bool) {
	switch strings.ToLower(documentType) {
	case DocumentTypeCategory:
		return KindCategory, true
	case DocumentTypeProduct:
		return KindProduct, true
	default:
		return "", false
	}
}

// ValueType is the type of a custom property value.
type ValueType string

const (
	ValueShortText ValueType = "ShortText"
	ValueLongText  ValueType = "LongText"
	ValueNumber    ValueType = "Number"
	ValueBoolean   ValueType = "Boolean"
	ValueDateTime  ValueType = "DateTime"
)

// IsText reports whether values of this type are free text.
func (v ValueType) IsText() bool {
	return v == ValueShortText || v == ValueLongText
}

// Property is a custom property definition attached to an entity.
type Property struct {
	Name         string    `json:"name"`
	ValueType    ValueType `json:"value_type"`
	Multilingual bool      `json:"multilingual"`
}

// PropertyValue is one value of a custom property.
// Value holds a string, float64, bool or time.Time depending on ValueType.
type PropertyValue struct {
	PropertyName string    `json:"property_name"`
	ValueType    ValueType `json:"value_type"`
	LanguageCode string    `json:"language_code,omitempty"`
	Value        any       `json:"value"`
}

// Outline is the path of node ids from the top-level container (catalog)
// down to the entity itself, inclusive.
type Outline struct {
	Items []string `json:"items"`
}

// Valid reports whether the outline holds at least one container and the entity.
func (o Outline) Valid() bool {
	return len(o.Items) >= 2
}

// Root returns the top-level container id.
func (o Outline) Root() string {
	if len(o.Items) == 0 {
		return ""
	}
	return o.Items[0]
}

// Containers returns the outline without its trailing entity id.
func (o Outline) Containers() []string {
	if len(o.Items) == 0 {
		return nil
	}
	return o.Items[:len(o.Items)-1]
}

// Link is a priority link placing an entity into a (virtual) container.
type Link struct {
	CatalogID  string `json:"catalog_id"`
	CategoryID string `json:"category_id"`
	Priority   int    `json:"priority"`
}

// Entity is an authoritative catalog record, either a category or a product.
// It is owned by the catalog store; the index never mutates it.
type Entity struct {
	ID         string     `json:"id"`
	Kind       EntityKind `json:"kind"`
	Name       string     `json:"name"`
	Code       string     `json:"code"`
	IsActive   bool       `json:"is_active"`
	Priority   int        `json:"priority"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`

	// StartDate and EndDate bound product availability. Unused for categories.
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	Properties     []Property      `json:"properties,omitempty"`
	PropertyValues []PropertyValue `json:"property_values,omitempty"`
	Outlines       []Outline       `json:"outlines,omitempty"`
	Links          []Link          `json:"links,omitempty"`
}

// FindProperty returns the property definition matching the value's name
// (case-insensitive) and value type.
func (e *Entity) FindProperty(value PropertyValue) (Property, bool) {
	for _, p := range e.Properties {
		if strings.EqualFold(p.Name, value.PropertyName) && p.ValueType == value.ValueType {
			return p, true
		}
	}
	return Property{}, false
}

// SameID compares entity ids the way the catalog does (case-insensitive).
func SameID(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ResponseGroup selects which parts of an entity a store lookup loads.
type ResponseGroup uint8

const (
	WithProperties ResponseGroup = 1 << iota
	WithOutlines
	WithLinks

	// ResponseGroupInfo loads only the entity's own columns.
	ResponseGroupInfo ResponseGroup = 0

	// ResponseGroupFull loads everything.
	ResponseGroupFull = WithProperties | WithOutlines | WithLinks
)

// Has reports whether all flags in g are set.
func (r ResponseGroup) Has(g ResponseGroup) bool {
	return r&g == g
}

// String renders the group for cache keys and logs.
func (r ResponseGroup) String() string {
	var parts []string
	if r.Has(WithProperties) {
		parts = append(parts, "properties")
	}
	if r.Has(WithOutlines) {
		parts = append(parts, "outlines")
	}
	if r.Has(WithLinks) {
		parts = append(parts, "links")
	}
	if len(parts) == 0 {
		return "info"
	}
	return strings.Join(parts, "|")
}
