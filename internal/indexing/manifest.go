package indexing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the default manifest filename
	ManifestFilename = "manifest.json"
)

// Manifest stores the build state of every (scope, document type) pair.
type Manifest struct {
	Version   int                   `json:"version"`
	LastBuild time.Time             `json:"last_build"`
	Builds    map[string]BuildState `json:"builds"`
	mu        sync.RWMutex          `json:"-"`
}

// BuildState stores the state of the last build of one document type.
type BuildState struct {
	// WindowEnd is the end of the last successfully indexed change window.
	// The next incremental build starts there; zero forces a full scan.
	WindowEnd time.Time `json:"window_end"`
	BuiltAt   time.Time `json:"built_at"`
	Indexed   int       `json:"indexed"`
	Removed   int       `json:"removed"`
	Error     string    `json:"error,omitempty"`
}

// NewManifest creates a new empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Builds:  make(map[string]BuildState),
	}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Builds == nil {
		manifest.Builds = make(map[string]BuildState)
	}

	return &manifest, nil
}

// Save writes the manifest to disk atomically.
// Uses write-to-temp + rename pattern to prevent corruption.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

func buildKey(scope, documentType string) string {
	return scope + "/" + documentType
}

// GetBuildState returns the state for a document type, or a zero state.
func (m *Manifest) GetBuildState(scope, documentType string) BuildState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Builds[buildKey(scope, documentType)]
}

// SetBuildState records a successful build.
func (m *Manifest) SetBuildState(scope, documentType string, state BuildState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Builds[buildKey(scope, documentType)] = state
}

// SetBuildError records a failed build, keeping the last window end so the
// next build replays the failed window.
func (m *Manifest) SetBuildError(scope, documentType, err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := buildKey(scope, documentType)
	state := m.Builds[key]
	state.Error = err
	m.Builds[key] = state
}

// ResetBuild forgets the window of a document type so the next build is a full scan.
func (m *Manifest) ResetBuild(scope, documentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Builds, buildKey(scope, documentType))
}

// RemoveStaleBuilds removes states of scope whose document type is not in
// documentTypes. Returns the removed document types.
func (m *Manifest) RemoveStaleBuilds(scope string, documentTypes []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	expected := make(map[string]bool, len(documentTypes))
	for _, t := range documentTypes {
		expected[buildKey(scope, t)] = true
	}

	prefix := scope + "/"
	var removed []string
	for key := range m.Builds {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix && !expected[key] {
			removed = append(removed, key[len(prefix):])
		}
	}
	for _, t := range removed {
		delete(m.Builds, buildKey(scope, t))
	}
	return removed
}

// UpdateLastBuild updates the last build timestamp.
func (m *Manifest) UpdateLastBuild() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastBuild = time.Now()
}

// NeedsBuildCheck returns true if enough time has passed since the last build.
func (m *Manifest) NeedsBuildCheck(interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LastBuild.IsZero() {
		return true
	}
	return time.Since(m.LastBuild) >= interval
}

// BuildErrors returns the document types whose last build failed, keyed by
// scope/document type.
func (m *Manifest) BuildErrors() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string)
	for key, state := range m.Builds {
		if state.Error != "" {
			result[key] = state.Error
		}
	}
	return result
}
