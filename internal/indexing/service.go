package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sha1n/mcp-catalog-search/internal/config"
	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// WindowOverlap is how far an incremental build reaches back before the
// previous window end. A change stamped before that end but committed after
// the previous build read the log is collected again by the next build.
const WindowOverlap = time.Minute

// ErrUnknownDocumentType indicates a document type no builder is registered for.
var ErrUnknownDocumentType = errors.New("unknown document type")

// Service coordinates index builds for every configured document type.
type Service struct {
	settings     *config.IndexSettings
	builders     map[string]*IndexBuilder
	manifest     *Manifest
	manifestPath string
	lock         *BuildLock
	now          func() time.Time
	buildMu      sync.Mutex
	ready        bool
	mu           sync.RWMutex
}

// NewService creates a build service. Builders are keyed by document type.
// With an empty base directory the manifest lives in memory and no
// cross-process lock is taken.
func NewService(settings *config.IndexSettings, builders ...*IndexBuilder) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	s := &Service{
		settings: settings,
		builders: make(map[string]*IndexBuilder, len(builders)),
		manifest: NewManifest(),
		now:      time.Now,
	}
	for _, b := range builders {
		s.builders[b.DocumentType()] = b
	}

	if settings.BaseDir != "" {
		s.manifestPath = filepath.Join(settings.BaseDir, ManifestFilename)
		manifest, err := LoadManifest(s.manifestPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		s.manifest = manifest
		s.lock = NewBuildLock(filepath.Join(settings.BaseDir, LockFilename))
	}

	if removed := s.manifest.RemoveStaleBuilds(settings.Scope, s.DocumentTypes()); len(removed) > 0 {
		slog.Info("Dropped build state of unconfigured document types", "scope", settings.Scope, "document_types", removed)
	}

	return s, nil
}

// Initialize runs the first build with leader/follower logic: the process
// that wins the build lock builds, the others wait for it to finish.
func (s *Service) Initialize(ctx context.Context) error {
	acquired, err := s.tryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		slog.Info("Acquired build leader lock, starting build", "scope", s.settings.Scope)
		if _, err := s.BuildAll(ctx, false); err != nil {
			slog.Error("Build failed", "error", err)
			// Serve whatever the index already holds
		}
		if err := s.saveManifest(); err != nil {
			slog.Error("Failed to save manifest", "error", err)
		}
		s.unlock()
	} else {
		slog.Info("Another instance is building, waiting for completion")
		if err := s.lock.Lock(ctx, s.settings.LockTimeout); err != nil {
			slog.Warn("Timeout waiting for build, using existing indexes", "error", err)
		} else {
			s.unlock()
			if err := s.reloadManifest(); err != nil {
				slog.Error("Failed to reload manifest", "error", err)
			}
		}
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

// Run rebuilds incrementally every sync interval until ctx is done. Ticks
// on which another process holds the build lock are skipped.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.settings.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			acquired, err := s.tryLock()
			if err != nil {
				slog.Error("Failed to acquire build lock", "error", err)
				continue
			}
			if !acquired {
				slog.Debug("Build lock held elsewhere, skipping sync")
				continue
			}
			if _, err := s.BuildAll(ctx, false); err != nil {
				slog.Error("Periodic build failed", "error", err)
			}
			if err := s.saveManifest(); err != nil {
				slog.Error("Failed to save manifest", "error", err)
			}
			s.unlock()
		}
	}
}

// BuildAll builds every configured document type concurrently. Each type
// continues from the window end recorded by its last successful build.
func (s *Service) BuildAll(ctx context.Context, rebuild bool) (map[string]BuildStats, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	types := s.DocumentTypes()
	results := make([]BuildStats, len(types))
	failures := make([]error, len(types))

	var g errgroup.Group
	for i, documentType := range types {
		g.Go(func() error {
			results[i], failures[i] = s.build(ctx, s.builders[documentType], rebuild)
			return nil
		})
	}
	_ = g.Wait()

	s.manifest.UpdateLastBuild()

	stats := make(map[string]BuildStats, len(types))
	var failed []string
	for i, documentType := range types {
		stats[documentType] = results[i]
		if failures[i] != nil {
			failed = append(failed, documentType)
		}
	}
	if len(failed) > 0 {
		return stats, fmt.Errorf("%d document type build(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return stats, nil
}

// Build builds a single document type.
func (s *Service) Build(ctx context.Context, documentType string, rebuild bool) (BuildStats, error) {
	b, ok := s.builders[strings.ToLower(documentType)]
	if !ok {
		return BuildStats{}, fmt.Errorf("%w: %s", ErrUnknownDocumentType, documentType)
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.build(ctx, b, rebuild)
}

func (s *Service) build(ctx context.Context, b *IndexBuilder, rebuild bool) (BuildStats, error) {
	scope := s.settings.Scope
	documentType := b.DocumentType()

	state := s.manifest.GetBuildState(scope, documentType)
	end := s.now().UTC()
	req := BuildRequest{Rebuild: rebuild, End: end}
	if !rebuild && !state.WindowEnd.IsZero() {
		req.Start = state.WindowEnd.Add(-WindowOverlap)
	}

	slog.Info("Building index", "scope", scope, "document_type", documentType,
		"rebuild", rebuild, "full_scan", req.Start.IsZero())

	stats, err := b.Build(ctx, scope, req)
	if err != nil {
		slog.Error("Index build failed", "scope", scope, "document_type", documentType, "error", err)
		s.manifest.SetBuildError(scope, documentType, err.Error())
		return stats, err
	}

	s.manifest.SetBuildState(scope, documentType, BuildState{
		WindowEnd: end,
		BuiltAt:   s.now().UTC(),
		Indexed:   stats.Indexed,
		Removed:   stats.Removed + stats.Missing,
	})
	return stats, nil
}

// DocumentTypes returns the configured document types that have a builder.
func (s *Service) DocumentTypes() []string {
	var types []string
	for _, t := range s.settings.DocumentTypes {
		if _, ok := s.builders[t]; ok {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// Kinds returns the entity kinds of the configured document types.
func (s *Service) Kinds() []domain.EntityKind {
	var kinds []domain.EntityKind
	for _, t := range s.DocumentTypes() {
		kinds = append(kinds, s.builders[t].Kind())
	}
	return kinds
}

// Scope returns the index scope the service builds.
func (s *Service) Scope() string {
	return s.settings.Scope
}

// State returns the recorded build state of a document type.
func (s *Service) State(documentType string) BuildState {
	return s.manifest.GetBuildState(s.settings.Scope, documentType)
}

// IsReady returns true once the initial build (or wait) has completed.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// SaveManifest persists the build state.
func (s *Service) SaveManifest() error {
	return s.saveManifest()
}

func (s *Service) saveManifest() error {
	if s.manifestPath == "" {
		return nil
	}
	return s.manifest.Save(s.manifestPath)
}

func (s *Service) reloadManifest() error {
	if s.manifestPath == "" {
		return nil
	}
	manifest, err := LoadManifest(s.manifestPath)
	if err != nil {
		return err
	}
	s.manifest = manifest
	return nil
}

func (s *Service) tryLock() (bool, error) {
	if s.lock == nil {
		return true, nil
	}
	return s.lock.TryLock()
}

func (s *Service) unlock() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		slog.Error("Failed to unlock", "error", err)
	}
}
