// Package bleveindex implements the search backend on Bleve: one index per
// scope, partitioned by document type.
package bleveindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	// removeAllBatchSize is the number of ids deleted per round by RemoveAll.
	removeAllBatchSize = 500
)

var errBatchClosed = errors.New("batch is closed")

// scopeIndex is an open index of one scope.
type scopeIndex struct {
	index     bleve.Index
	analyzers analyzers
}

// Backend is a Bleve search backend. It is safe for concurrent use.
type Backend struct {
	baseDir string
	mu      sync.Mutex
	scopes  map[string]*scopeIndex
}

// New creates a backend storing indexes under baseDir/indexes.
// An empty baseDir keeps every index in memory.
func New(baseDir string) *Backend {
	return &Backend{
		baseDir: baseDir,
		scopes:  make(map[string]*scopeIndex),
	}
}

// indexPath returns the path to the index of a scope.
func (b *Backend) indexPath(scope string) string {
	return filepath.Join(b.baseDir, "indexes", scope+IndexSuffix)
}

// scope returns the open index of a scope, opening or creating it.
// Callers hold b.mu.
func (b *Backend) scope(scope string) (*scopeIndex, error) {
	if s, ok := b.scopes[scope]; ok {
		return s, nil
	}
	if scope == "" || strings.ContainsAny(scope, `/\`) {
		return nil, fmt.Errorf("%w: scope %q", domain.ErrInvalidArgument, scope)
	}

	idx, err := b.openIndex(scope)
	if err != nil {
		return nil, err
	}

	s := &scopeIndex{
		index: idx,
		analyzers: analyzers{
			keyword:  idx.Mapping().AnalyzerNamed(keyword.Name),
			standard: idx.Mapping().AnalyzerNamed(standard.Name),
		},
	}
	b.scopes[scope] = s
	return s, nil
}

func (b *Backend) openIndex(scope string) (bleve.Index, error) {
	if b.baseDir == "" {
		idx, err := bleve.NewMemOnly(CreateIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		return idx, nil
	}

	path := b.indexPath(scope)

	// Try to open existing index
	idx, err := bleve.Open(path)
	if err == nil {
		return idx, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create indexes directory: %w", err)
	}
	idx, err = bleve.New(path, CreateIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	slog.Info("Created index", "scope", scope, "path", path)
	return idx, nil
}

// Begin starts a batch of changes to scope. Batches are independent: each
// commits only what it staged.
func (b *Backend) Begin(_ context.Context, scope string) (domain.IndexBatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.scope(scope)
	if err != nil {
		return nil, err
	}
	return &Batch{scope: s, batch: s.index.NewBatch()}, nil
}

// Batch stages changes to one scope. It is owned by a single caller.
type Batch struct {
	scope  *scopeIndex
	batch  *bleve.Batch
	closed bool
}

// Index stages a document.
func (x *Batch) Index(_ context.Context, documentType string, doc *domain.IndexDocument) error {
	if x.closed {
		return errBatchClosed
	}
	d, err := encode(documentType, doc, x.scope.analyzers)
	if err != nil {
		return err
	}
	return x.batch.IndexAdvanced(d)
}

// Remove stages deletion of the documents whose keyField equals id.
func (x *Batch) Remove(ctx context.Context, documentType, keyField, id string) error {
	if x.closed {
		return errBatchClosed
	}
	if keyField == domain.FieldKey {
		x.batch.Delete(docID(documentType, id))
		return nil
	}

	q := bleve.NewConjunctionQuery(termQuery(FieldDocumentType, documentType), termQuery(keyField, id))
	ids, err := x.scope.searchIDs(ctx, q, removeAllBatchSize)
	if err != nil {
		return fmt.Errorf("failed to find documents to remove: %w", err)
	}
	for _, id := range ids {
		x.batch.Delete(id)
	}
	return nil
}

// Commit writes the staged changes. A failed write leaves nothing staged.
func (x *Batch) Commit(_ context.Context) error {
	if x.closed {
		return errBatchClosed
	}
	return x.scope.write(x.batch)
}

// Close discards anything not committed. It is safe to call more than once.
func (x *Batch) Close() error {
	x.batch.Reset()
	x.closed = true
	return nil
}

// RemoveAll deletes every document of documentType from scope. Batches
// still open are not affected.
func (b *Backend) RemoveAll(ctx context.Context, scope, documentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.scope(scope)
	if err != nil {
		return err
	}
	q := termQuery(FieldDocumentType, documentType)
	removed := 0
	for {
		ids, err := s.searchIDs(ctx, q, removeAllBatchSize)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		batch := s.index.NewBatch()
		for _, id := range ids {
			batch.Delete(id)
		}
		if err := s.write(batch); err != nil {
			return err
		}
		removed += len(ids)
	}

	slog.Debug("Cleared document type", "scope", scope, "document_type", documentType, "removed", removed)
	return nil
}

// Count returns the number of committed documents of documentType in scope.
func (b *Backend) Count(ctx context.Context, scope, documentType string) (int, error) {
	b.mu.Lock()
	s, err := b.scope(scope)
	b.mu.Unlock()
	if err != nil {
		return 0, err
	}

	req := bleve.NewSearchRequestOptions(termQuery(FieldDocumentType, documentType), 0, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(res.Total), nil
}

// Shutdown closes every open index.
func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, s := range b.scopes {
		if err := s.index.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index %s: %w", name, err)
		}
		delete(b.scopes, name)
	}
	return firstErr
}

func (s *scopeIndex) write(batch *bleve.Batch) error {
	defer batch.Reset()
	if batch.Size() == 0 {
		return nil
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to write batch: %w", err)
	}
	return nil
}

func (s *scopeIndex) searchIDs(ctx context.Context, q query.Query, size int) ([]string, error) {
	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}
