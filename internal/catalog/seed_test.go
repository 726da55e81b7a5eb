package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

const seedYAML = `
entities:
  - id: c1
    kind: category
    name: Cameras
    code: CAM
    priority: 5
    outlines:
      - [main, c1]
  - id: p1
    kind: product
    name: Compact Camera
    code: CC-1
    active: false
    start_date: 2024-01-01T00:00:00Z
    properties:
      - name: Weight
        type: Number
    values:
      - property: Weight
        type: Number
        value: 2
      - property: Waterproof
        type: Boolean
        value: true
      - property: Released
        type: DateTime
        value: "2024-02-01T10:00:00Z"
      - property: Color
        type: ShortText
        value: 42
    outlines:
      - [main, c1, p1]
    links:
      - catalog: virtual
        category: deals
        priority: 9
deleted:
  - kind: category
    id: c1
`

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, seed.Entities, 2)
	require.Len(t, seed.Deleted, 1)

	e, err := seed.Entities[1].ToEntity()
	require.NoError(t, err)

	assert.Equal(t, domain.KindProduct, e.Kind)
	assert.False(t, e.IsActive)
	require.NotNil(t, e.StartDate)
	assert.True(t, e.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.Len(t, e.PropertyValues, 4)
	assert.Equal(t, 2.0, e.PropertyValues[0].Value)
	assert.Equal(t, true, e.PropertyValues[1].Value)
	released, ok := e.PropertyValues[2].Value.(time.Time)
	require.True(t, ok)
	assert.True(t, released.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "42", e.PropertyValues[3].Value)
	assert.Equal(t, []domain.Outline{{Items: []string{"main", "c1", "p1"}}}, e.Outlines)
	assert.Equal(t, []domain.Link{{CatalogID: "virtual", CategoryID: "deals", Priority: 9}}, e.Links)

	c, err := seed.Entities[0].ToEntity()
	require.NoError(t, err)
	assert.True(t, c.IsActive, "active defaults to true")
}

func TestLoadSeed_Empty(t *testing.T) {
	seed, err := LoadSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, seed.Entities)
}

func TestLoadSeed_Invalid(t *testing.T) {
	_, err := LoadSeed(strings.NewReader("entities: [unclosed"))
	assert.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0644))

	seed, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, seed.Entities, 2)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeedEntity_ToEntity_Errors(t *testing.T) {
	tests := []struct {
		name   string
		entity SeedEntity
	}{
		{name: "unknown kind", entity: SeedEntity{ID: "x", Kind: "pricelist"}},
		{name: "bad number", entity: SeedEntity{ID: "x", Kind: "product", Values: []SeedValue{{Property: "w", Type: "Number", Value: "heavy"}}}},
		{name: "bad date", entity: SeedEntity{ID: "x", Kind: "product", Values: []SeedValue{{Property: "d", Type: "DateTime", Value: "yesterday"}}}},
		{name: "bad boolean", entity: SeedEntity{ID: "x", Kind: "product", Values: []SeedValue{{Property: "b", Type: "Boolean", Value: "yes"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.entity.ToEntity()
			assert.Error(t, err)
		})
	}
}

func TestImport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed, err := LoadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	saved, deleted, err := Import(ctx, s, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	assert.Equal(t, 1, deleted)

	products, err := s.GetByIDs(ctx, domain.KindProduct, []string{"p1"}, domain.ResponseGroupFull, "")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Compact Camera", products[0].Name)

	categories, err := s.GetByIDs(ctx, domain.KindCategory, []string{"c1"}, domain.ResponseGroupInfo, "")
	require.NoError(t, err)
	assert.Empty(t, categories)

	history, err := s.FindHistory(ctx, domain.KindCategory, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.EntryDeleted, history[1].Operation)
}

func TestImport_DeleteMissing(t *testing.T) {
	s := newTestStore(t)
	seed := &Seed{Deleted: []SeedRef{{Kind: "product", ID: "ghost"}}}

	_, _, err := Import(context.Background(), s, seed)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
