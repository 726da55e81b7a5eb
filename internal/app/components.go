package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sha1n/mcp-catalog-search/internal/bleveindex"
	"github.com/sha1n/mcp-catalog-search/internal/catalog"
	"github.com/sha1n/mcp-catalog-search/internal/config"
	"github.com/sha1n/mcp-catalog-search/internal/domain"
	"github.com/sha1n/mcp-catalog-search/internal/indexing"
	"github.com/sha1n/mcp-catalog-search/internal/search"
)

// Components holds the wired write and read paths.
type Components struct {
	Store      *catalog.Store
	Backend    *bleveindex.Backend
	Service    *indexing.Service
	Filters    *search.CachedFilterSource
	Reconciler *search.Reconciler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewComponents opens the catalog store and the index backend and wires
// one index builder per entity kind.
func NewComponents(settings *config.Settings) (*Components, error) {
	store, err := catalog.NewStore(settings.Catalog.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}

	backend := bleveindex.New(settings.Index.BaseDir)
	projector := indexing.NewProjector(settings.Index.LegacyStatus)
	publisher := indexing.NewPublisher(backend)
	opts := indexing.BuilderOptions{
		PartitionSize:     settings.Index.BatchSize,
		ProjectionWorkers: settings.Index.ProjectionWorkers,
		PublishWorkers:    settings.Index.PublishWorkers,
	}

	var builders []*indexing.IndexBuilder
	for _, kind := range []domain.EntityKind{domain.KindCategory, domain.KindProduct} {
		builders = append(builders, indexing.NewIndexBuilder(kind, store, store, projector, publisher, opts))
	}

	svc, err := indexing.NewService(&settings.Index, builders...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create index service: %w", err)
	}

	filters := search.NewCachedFilterSource(search.NewFileFilterSource(settings.Search.FiltersFile), settings.Search.FilterTTL)
	reconciler := search.NewReconciler(backend, store, filters, search.Options{
		MaxAttempts: settings.Search.MaxAttempts,
		CallTimeout: settings.Search.CallTimeout,
	})

	return &Components{
		Store:      store,
		Backend:    backend,
		Service:    svc,
		Filters:    filters,
		Reconciler: reconciler,
	}, nil
}

// StartSync runs the initial build and then the periodic sync in the
// background until Close.
func (c *Components) StartSync() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Service.Initialize(ctx); err != nil {
			slog.Error("Index initialization failed", "error", err)
			return
		}
		c.Service.Run(ctx)
	}()
}

// Close stops the sync loop, flushes the indexes and closes the store.
func (c *Components) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	var errs []error
	if err := c.Service.SaveManifest(); err != nil {
		errs = append(errs, fmt.Errorf("failed to save manifest: %w", err))
	}
	if err := c.Backend.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close indexes: %w", err))
	}
	if err := c.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close catalog store: %w", err))
	}
	return errors.Join(errs...)
}
