package indexing

import (
	"context"
	"fmt"
	"strings"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// Backend is the write side of the search backend.
type Backend interface {
	// Begin starts a batch of changes to scope.
	Begin(ctx context.Context, scope string) (domain.IndexBatch, error)

	// RemoveAll deletes every document of documentType.
	RemoveAll(ctx context.Context, scope, documentType string) error
}

// Publisher pushes projected documents to the backend. It never retries;
// partitions are idempotent so callers replay them whole.
type Publisher struct {
	backend Backend
}

// NewPublisher creates a publisher.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// Publish indexes docs in order in a batch of its own, then commits and
// closes it. On failure nothing of docs becomes visible.
func (p *Publisher) Publish(ctx context.Context, scope, documentType string, docs []*domain.IndexDocument) (err error) {
	batch, err := p.backend.Begin(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to begin %s batch: %w", documentType, err)
	}
	defer func() {
		if cerr := batch.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", documentType, cerr)
		}
	}()

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if err := batch.Index(ctx, documentType, doc); err != nil {
			return fmt.Errorf("failed to index document %q: %w", doc.Key(), err)
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", documentType, err)
	}
	return nil
}

// Remove deletes the documents with the given entity ids in a batch of its
// own, then commits.
func (p *Publisher) Remove(ctx context.Context, scope, documentType string, ids []string) (err error) {
	batch, err := p.backend.Begin(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to begin %s batch: %w", documentType, err)
	}
	defer func() {
		if cerr := batch.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", documentType, cerr)
		}
	}()

	for _, id := range ids {
		if err := batch.Remove(ctx, documentType, domain.FieldKey, strings.ToLower(id)); err != nil {
			return fmt.Errorf("failed to remove document %q: %w", id, err)
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", documentType, err)
	}
	return nil
}

// RemoveAll clears every document of a type.
func (p *Publisher) RemoveAll(ctx context.Context, scope, documentType string) error {
	if err := p.backend.RemoveAll(ctx, scope, documentType); err != nil {
		return fmt.Errorf("failed to clear %s: %w", documentType, err)
	}
	return nil
}
