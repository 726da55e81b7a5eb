package indexing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// fakeStore holds entities in creation order.
type fakeStore struct {
	mu       sync.Mutex
	entities []domain.Entity
	err      error

	getCalls  int
	listCalls int
}

func newFakeStore(entities ...domain.Entity) *fakeStore {
	return &fakeStore{entities: entities}
}

func (s *fakeStore) GetByIDs(_ context.Context, kind domain.EntityKind, ids []string, _ domain.ResponseGroup, _ string) ([]domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.err != nil {
		return nil, s.err
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[strings.ToLower(id)] = true
	}
	var out []domain.Entity
	for _, e := range s.entities {
		if e.Kind == kind && want[strings.ToLower(e.ID)] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ListIDs(_ context.Context, kind domain.EntityKind, skip, take int) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.err != nil {
		return nil, 0, s.err
	}

	var all []string
	for _, e := range s.entities {
		if e.Kind == kind {
			all = append(all, e.ID)
		}
	}
	start := min(skip, len(all))
	end := min(skip+take, len(all))
	return all[start:end], len(all), nil
}

// memoryBackend keeps committed documents per scope and document type.
type memoryBackend struct {
	mu        sync.Mutex
	docs      map[string]map[string]*domain.IndexDocument
	commits   int
	closes    int
	removed   []string
	removeErr error
	indexErr  error

	// failKey makes indexing of that document key fail.
	failKey string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{docs: make(map[string]map[string]*domain.IndexDocument)}
}

func typeKey(scope, documentType string) string {
	return scope + "/" + documentType
}

func (b *memoryBackend) Begin(_ context.Context, scope string) (domain.IndexBatch, error) {
	return &memoryBatch{backend: b, scope: scope}, nil
}

func (b *memoryBackend) RemoveAll(_ context.Context, scope, documentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.docs, typeKey(scope, documentType))
	return nil
}

type stagedRemoval struct {
	documentType string
	id           string
}

// memoryBatch stages changes until Commit applies them to its backend.
type memoryBatch struct {
	backend  *memoryBackend
	scope    string
	indexed  map[string][]*domain.IndexDocument
	removals []stagedRemoval
}

func (m *memoryBatch) Index(_ context.Context, documentType string, doc *domain.IndexDocument) error {
	if err := m.backend.indexErr; err != nil {
		return err
	}
	if m.backend.failKey != "" && doc.Key() == m.backend.failKey {
		return fmt.Errorf("cannot index %s", doc.Key())
	}
	if m.indexed == nil {
		m.indexed = make(map[string][]*domain.IndexDocument)
	}
	m.indexed[documentType] = append(m.indexed[documentType], doc)
	return nil
}

func (m *memoryBatch) Remove(_ context.Context, documentType, keyField, id string) error {
	if err := m.backend.removeErr; err != nil {
		return err
	}
	if keyField != domain.FieldKey {
		return fmt.Errorf("unexpected key field %s", keyField)
	}
	m.removals = append(m.removals, stagedRemoval{documentType: documentType, id: id})
	return nil
}

func (m *memoryBatch) Commit(_ context.Context) error {
	b := m.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commits++
	for documentType, docs := range m.indexed {
		key := typeKey(m.scope, documentType)
		if b.docs[key] == nil {
			b.docs[key] = make(map[string]*domain.IndexDocument)
		}
		for _, d := range docs {
			b.docs[key][d.Key()] = d
		}
	}
	for _, r := range m.removals {
		delete(b.docs[typeKey(m.scope, r.documentType)], r.id)
		b.removed = append(b.removed, r.id)
	}
	m.indexed, m.removals = nil, nil
	return nil
}

func (m *memoryBatch) Close() error {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	m.backend.closes++
	m.indexed, m.removals = nil, nil
	return nil
}

// keys returns the sorted committed keys of a document type.
func (b *memoryBackend) keys(scope, documentType string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.docs[typeKey(scope, documentType)] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func productEntity(id string) domain.Entity {
	return domain.Entity{ID: id, Kind: domain.KindProduct, Name: "Product " + id, IsActive: true, CreatedAt: t0}
}

func categoryEntity(id string) domain.Entity {
	return domain.Entity{ID: id, Kind: domain.KindCategory, Name: "Category " + id, IsActive: true, CreatedAt: t0}
}
