package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

const (
	// DefaultProjectionWorkers bounds concurrent projections within a partition.
	DefaultProjectionWorkers = 4

	// DefaultPublishWorkers bounds concurrently processed partitions.
	DefaultPublishWorkers = 2
)

// Store is the read side of the authoritative catalog used while building.
type Store interface {
	// GetByIDs loads entities in no particular order. Unknown ids are skipped.
	GetByIDs(ctx context.Context, kind domain.EntityKind, ids []string, group domain.ResponseGroup, scopeHint string) ([]domain.Entity, error)

	// ListIDs pages through every entity id of kind and reports the total.
	ListIDs(ctx context.Context, kind domain.EntityKind, skip, take int) ([]string, int, error)
}

// BuilderOptions tunes an IndexBuilder. Zero values use defaults.
type BuilderOptions struct {
	PartitionSize     int
	ProjectionWorkers int
	PublishWorkers    int
}

// BuildRequest describes one build run.
type BuildRequest struct {
	// Rebuild clears the document type and re-indexes everything.
	Rebuild bool

	// Start and End bound the change window. A zero Start means a full scan.
	Start time.Time
	End   time.Time
}

// BuildStats summarizes a build run.
type BuildStats struct {
	Partitions int `json:"partitions"`
	Indexed    int `json:"indexed"`
	Removed    int `json:"removed"`

	// Missing counts ids of Index partitions that no longer resolve in the
	// store. They are removed from the index.
	Missing int `json:"missing"`
}

// IndexBuilder runs the write path for one entity kind:
// collect changes, partition, project and publish.
type IndexBuilder struct {
	kind      domain.EntityKind
	store     Store
	collector *ChangeCollector
	projector *Projector
	publisher *Publisher
	opts      BuilderOptions
}

// NewIndexBuilder creates a builder for kind.
func NewIndexBuilder(kind domain.EntityKind, store Store, log ChangeLog, projector *Projector, publisher *Publisher, opts BuilderOptions) *IndexBuilder {
	if opts.PartitionSize <= 0 {
		opts.PartitionSize = MaxPartitionSize
	}
	if opts.ProjectionWorkers <= 0 {
		opts.ProjectionWorkers = DefaultProjectionWorkers
	}
	if opts.PublishWorkers <= 0 {
		opts.PublishWorkers = DefaultPublishWorkers
	}
	return &IndexBuilder{
		kind:      kind,
		store:     store,
		collector: NewChangeCollector(log),
		projector: projector,
		publisher: publisher,
		opts:      opts,
	}
}

// Kind returns the entity kind the builder indexes.
func (b *IndexBuilder) Kind() domain.EntityKind {
	return b.kind
}

// DocumentType returns the index document type the builder writes.
func (b *IndexBuilder) DocumentType() string {
	return b.kind.DocumentType()
}

// GetPartitions returns the work for a build. A rebuild or a zero start
// enumerates every entity; otherwise the change window is collected and
// Remove partitions are returned ahead of Index partitions.
func (b *IndexBuilder) GetPartitions(ctx context.Context, rebuild bool, start, end time.Time) ([]domain.Partition, error) {
	if rebuild || start.IsZero() {
		return b.fullScan(ctx)
	}

	changes, err := b.collector.Collect(ctx, b.kind, start, end)
	if err != nil {
		return nil, err
	}
	removed, indexed := SplitChanges(changes)

	removals, err := Partition(domain.OperationRemove, removed, b.opts.PartitionSize)
	if err != nil {
		return nil, err
	}
	updates, err := Partition(domain.OperationIndex, indexed, b.opts.PartitionSize)
	if err != nil {
		return nil, err
	}
	return append(removals, updates...), nil
}

// fullScan pages through the store, one partition per page.
func (b *IndexBuilder) fullScan(ctx context.Context) ([]domain.Partition, error) {
	var partitions []domain.Partition
	for skip := 0; ; {
		ids, total, err := b.store.ListIDs(ctx, b.kind, skip, b.opts.PartitionSize)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate %s: %w", b.kind, err)
		}
		if len(ids) == 0 {
			break
		}
		partitions = append(partitions, domain.Partition{Operation: domain.OperationIndex, Keys: ids})
		skip += len(ids)
		if skip >= total {
			break
		}
	}
	return partitions, nil
}

// CreateDocuments loads the partition's entities and projects them on a
// bounded worker pool. Documents are returned in load order.
func (b *IndexBuilder) CreateDocuments(ctx context.Context, partition *domain.Partition) ([]*domain.IndexDocument, error) {
	if err := partition.Validate(); err != nil {
		return nil, err
	}
	if len(partition.Keys) == 0 {
		return nil, nil
	}

	entities, err := b.store.GetByIDs(ctx, b.kind, partition.Keys, domain.ResponseGroupFull, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", b.kind, err)
	}

	docs := make([]*domain.IndexDocument, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.ProjectionWorkers)
	for i := range entities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = b.projector.Project(&entities[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// PublishDocuments publishes projected documents.
func (b *IndexBuilder) PublishDocuments(ctx context.Context, scope string, docs []*domain.IndexDocument) error {
	return b.publisher.Publish(ctx, scope, b.DocumentType(), docs)
}

// RemoveDocuments removes documents by entity id.
func (b *IndexBuilder) RemoveDocuments(ctx context.Context, scope string, ids []string) error {
	return b.publisher.Remove(ctx, scope, b.DocumentType(), ids)
}

// RemoveAll clears the builder's document type.
func (b *IndexBuilder) RemoveAll(ctx context.Context, scope string) error {
	return b.publisher.RemoveAll(ctx, scope, b.DocumentType())
}

// Build runs one build over scope. Partitions are processed concurrently up
// to the configured publish worker count; the first failure cancels the rest.
func (b *IndexBuilder) Build(ctx context.Context, scope string, req BuildRequest) (BuildStats, error) {
	logger := slog.With("scope", scope, "document_type", b.DocumentType())

	partitions, err := b.GetPartitions(ctx, req.Rebuild, req.Start, req.End)
	if err != nil {
		return BuildStats{}, err
	}

	if req.Rebuild {
		logger.Info("Clearing document type for rebuild")
		if err := b.RemoveAll(ctx, scope); err != nil {
			return BuildStats{}, err
		}
	}

	var indexed, removed, missing atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.PublishWorkers)
	for i := range partitions {
		partition := &partitions[i]
		g.Go(func() error {
			switch partition.Operation {
			case domain.OperationRemove:
				if err := b.RemoveDocuments(gctx, scope, partition.Keys); err != nil {
					return err
				}
				removed.Add(int64(len(partition.Keys)))
			default:
				docs, err := b.CreateDocuments(gctx, partition)
				if err != nil {
					return err
				}
				if err := b.PublishDocuments(gctx, scope, docs); err != nil {
					return err
				}
				indexed.Add(int64(len(docs)))

				gone := unresolved(partition.Keys, docs)
				if len(gone) > 0 {
					if err := b.RemoveDocuments(gctx, scope, gone); err != nil {
						return err
					}
					missing.Add(int64(len(gone)))
				}
			}
			logger.Debug("Partition processed", "partition", i, "operation", partition.Operation, "keys", len(partition.Keys))
			return nil
		})
	}

	stats := BuildStats{Partitions: len(partitions)}
	err = g.Wait()
	stats.Indexed = int(indexed.Load())
	stats.Removed = int(removed.Load())
	stats.Missing = int(missing.Load())
	if err != nil {
		return stats, fmt.Errorf("build %s: %w", b.DocumentType(), err)
	}

	logger.Info("Build complete", "partitions", stats.Partitions, "indexed", stats.Indexed, "removed", stats.Removed, "missing", stats.Missing)
	return stats, nil
}

// unresolved returns the keys that produced no document.
func unresolved(keys []string, docs []*domain.IndexDocument) []string {
	found := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if d != nil {
			found[d.Key()] = struct{}{}
		}
	}
	var gone []string
	for _, k := range keys {
		if _, ok := found[strings.ToLower(k)]; !ok {
			gone = append(gone, k)
		}
	}
	return gone
}
