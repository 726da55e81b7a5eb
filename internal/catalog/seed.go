package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// Seed is a YAML catalog fixture: entities to save and entities to delete.
type Seed struct {
	Entities []SeedEntity `yaml:"entities"`
	Deleted  []SeedRef    `yaml:"deleted"`
}

// SeedRef identifies an entity to delete.
type SeedRef struct {
	Kind string `yaml:"kind"`
	ID   string `yaml:"id"`
}

// SeedEntity is the YAML form of a catalog entity.
type SeedEntity struct {
	ID        string         `yaml:"id"`
	Kind      string         `yaml:"kind"`
	Name      string         `yaml:"name"`
	Code      string         `yaml:"code"`
	Active    *bool          `yaml:"active"`
	Priority  int            `yaml:"priority"`
	StartDate *time.Time     `yaml:"start_date"`
	EndDate   *time.Time     `yaml:"end_date"`
	Props     []SeedProperty `yaml:"properties"`
	Values    []SeedValue    `yaml:"values"`
	Outlines  [][]string     `yaml:"outlines"`
	Links     []SeedLink     `yaml:"links"`
}

// SeedProperty is a property definition.
type SeedProperty struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Multilingual bool   `yaml:"multilingual"`
}

// SeedValue is a property value.
type SeedValue struct {
	Property string `yaml:"property"`
	Type     string `yaml:"type"`
	Language string `yaml:"language"`
	Value    any    `yaml:"value"`
}

// SeedLink is a priority link.
type SeedLink struct {
	Catalog  string `yaml:"catalog"`
	Category string `yaml:"category"`
	Priority int    `yaml:"priority"`
}

// LoadSeedFile reads a seed from a YAML file.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadSeed(f)
}

// LoadSeed decodes a seed from YAML.
func LoadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	return &seed, nil
}

// ToEntity converts the YAML form into a domain entity.
func (se SeedEntity) ToEntity() (domain.Entity, error) {
	kind, err := parseKind(se.Kind)
	if err != nil {
		return domain.Entity{}, err
	}

	e := domain.Entity{
		ID:        se.ID,
		Kind:      kind,
		Name:      se.Name,
		Code:      se.Code,
		IsActive:  se.Active == nil || *se.Active,
		Priority:  se.Priority,
		StartDate: se.StartDate,
		EndDate:   se.EndDate,
	}
	for _, p := range se.Props {
		e.Properties = append(e.Properties, domain.Property{
			Name:         p.Name,
			ValueType:    domain.ValueType(p.Type),
			Multilingual: p.Multilingual,
		})
	}
	for _, v := range se.Values {
		pv := domain.PropertyValue{
			PropertyName: v.Property,
			ValueType:    domain.ValueType(v.Type),
			LanguageCode: v.Language,
		}
		if pv.Value, err = convertValue(pv.ValueType, v.Value); err != nil {
			return domain.Entity{}, fmt.Errorf("entity %s property %s: %w", se.ID, v.Property, err)
		}
		e.PropertyValues = append(e.PropertyValues, pv)
	}
	for _, items := range se.Outlines {
		e.Outlines = append(e.Outlines, domain.Outline{Items: items})
	}
	for _, l := range se.Links {
		e.Links = append(e.Links, domain.Link{CatalogID: l.Catalog, CategoryID: l.Category, Priority: l.Priority})
	}
	return e, nil
}

// Import saves every seed entity, then applies the deletions.
func Import(ctx context.Context, store *Store, seed *Seed) (saved, deleted int, err error) {
	for _, se := range seed.Entities {
		e, err := se.ToEntity()
		if err != nil {
			return saved, deleted, err
		}
		if err := store.Save(ctx, &e); err != nil {
			return saved, deleted, fmt.Errorf("saving %s: %w", e.ID, err)
		}
		saved++
	}
	for _, ref := range seed.Deleted {
		kind, err := parseKind(ref.Kind)
		if err != nil {
			return saved, deleted, err
		}
		if err := store.Delete(ctx, kind, ref.ID); err != nil {
			return saved, deleted, fmt.Errorf("deleting %s: %w", ref.ID, err)
		}
		deleted++
	}
	return saved, deleted, nil
}

func parseKind(s string) (domain.EntityKind, error) {
	switch strings.ToLower(s) {
	case "category":
		return domain.KindCategory, nil
	case "product", "catalogproduct":
		return domain.KindProduct, nil
	default:
		return "", fmt.Errorf("%w: entity kind %q", domain.ErrInvalidArgument, s)
	}
}

func convertValue(t domain.ValueType, v any) (any, error) {
	switch t {
	case domain.ValueNumber:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case domain.ValueBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case domain.ValueDateTime:
		switch d := v.(type) {
		case time.Time:
			return d.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339, d)
			if err != nil {
				return nil, err
			}
			return parsed.UTC(), nil
		}
	case domain.ValueShortText, domain.ValueLongText:
		if v == nil {
			return "", nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("%w: value %v for type %s", domain.ErrInvalidArgument, v, t)
}
