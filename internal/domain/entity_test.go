package domain

import (
	"errors"
	"testing"
)

func TestEntityKind_Mappings(t *testing.T) {
	tests := []struct {
		kind    EntityKind
		tag     string
		docType string
	}{
		{KindCategory, "category", DocumentTypeCategory},
		{KindProduct, "product", DocumentTypeProduct},
		{EntityKind("Bundle"), "bundle", "bundle"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Tag(); got != tt.tag {
				t.Errorf("Tag() = %q, want %q", got, tt.tag)
			}
			if got := tt.kind.DocumentType(); got != tt.docType {
				t.Errorf("DocumentType() = %q, want %q", got, tt.docType)
			}
		})
	}

	if k, ok := KindForDocumentType("CatalogItem"); !ok || k != KindProduct {
		t.Errorf("KindForDocumentType(CatalogItem) = %q, %v", k, ok)
	}
	if _, ok := KindForDocumentType("unknown"); ok {
		t.Error("Expected unknown document type to be rejected")
	}
}

func TestOutline(t *testing.T) {
	o := Outline{Items: []string{"catalog", "cat-a", "product-1"}}
	if !o.Valid() {
		t.Error("Expected outline to be valid")
	}
	if o.Root() != "catalog" {
		t.Errorf("Root() = %q", o.Root())
	}
	if c := o.Containers(); len(c) != 2 || c[1] != "cat-a" {
		t.Errorf("Containers() = %v", c)
	}

	short := Outline{Items: []string{"catalog"}}
	if short.Valid() {
		t.Error("Single-item outline must be invalid")
	}
	if (Outline{}).Root() != "" {
		t.Error("Empty outline has no root")
	}
}

func TestEntity_FindProperty(t *testing.T) {
	e := Entity{Properties: []Property{
		{Name: "Color", ValueType: ValueShortText},
		{Name: "Description", ValueType: ValueLongText, Multilingual: true},
	}}

	if p, ok := e.FindProperty(PropertyValue{PropertyName: "description", ValueType: ValueLongText}); !ok || !p.Multilingual {
		t.Errorf("Expected case-insensitive match, got %+v, %v", p, ok)
	}
	if _, ok := e.FindProperty(PropertyValue{PropertyName: "color", ValueType: ValueNumber}); ok {
		t.Error("Value type must match too")
	}
}

func TestResponseGroup(t *testing.T) {
	if !ResponseGroupFull.Has(WithOutlines | WithProperties) {
		t.Error("Full group should include outlines and properties")
	}
	if ResponseGroupInfo.Has(WithLinks) {
		t.Error("Info group should not include links")
	}
	if got := (WithProperties | WithLinks).String(); got != "properties|links" {
		t.Errorf("String() = %q", got)
	}
	if got := ResponseGroupInfo.String(); got != "info" {
		t.Errorf("String() = %q", got)
	}
}

func TestPartition_Validate(t *testing.T) {
	var nilPartition *Partition
	if err := nilPartition.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for nil partition, got %v", err)
	}

	p := &Partition{Keys: []string{"a"}}
	if err := p.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for missing operation, got %v", err)
	}

	p.Operation = OperationRemove
	if err := p.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestFilter_Select(t *testing.T) {
	f := NewAttributeFilter("color", "Red", "Blue", "Green")

	selected, ok := f.Select([]string{"red", "green"})
	if !ok {
		t.Fatal("Expected selection to keep values")
	}
	if ids := selected.ValueIDs(); len(ids) != 2 || ids[0] != "Red" || ids[1] != "Green" {
		t.Errorf("Selected ids = %v", ids)
	}

	if _, ok := f.Select([]string{"purple"}); ok {
		t.Error("Expected empty selection to report false")
	}

	r := NewRangeFilter("price", RangeValue("", "0", "100", true, false))
	if r.Values[0].ID != "0..100" {
		t.Errorf("Derived range id = %q", r.Values[0].ID)
	}
	if r.Kind.String() != "range" || FilterKind(9).String() != "unknown(9)" {
		t.Error("Unexpected FilterKind strings")
	}
}
