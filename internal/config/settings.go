package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the server reads.
const EnvPrefix = "CATALOG_SEARCH"

// Document types accepted by index.document_types.
const (
	DocumentTypeCategory = "category"
	DocumentTypeProduct  = "catalogitem"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// AuthSettings configuration for SSE authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CatalogSettings configuration for the authoritative catalog store
type CatalogSettings struct {
	DatabasePath string `mapstructure:"database_path"`
}

// IndexSettings configuration for search index building
type IndexSettings struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseDir           string        `mapstructure:"base_dir"` // empty keeps indexes in memory
	Scope             string        `mapstructure:"scope"`
	DocumentTypes     []string      `mapstructure:"document_types"`
	SyncInterval      time.Duration `mapstructure:"sync_interval"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	BatchSize         int           `mapstructure:"batch_size"`
	ProjectionWorkers int           `mapstructure:"projection_workers"`
	PublishWorkers    int           `mapstructure:"publish_workers"`
	LegacyStatus      bool          `mapstructure:"legacy_status"`
}

// SearchSettings configuration for search and result reconciliation
type SearchSettings struct {
	MaxResults  int           `mapstructure:"max_results"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	FiltersFile string        `mapstructure:"filters_file"`
	FilterTTL   time.Duration `mapstructure:"filter_ttl"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	Auth      AuthSettings    `mapstructure:"auth"`
	Catalog   CatalogSettings `mapstructure:"catalog"`
	Index     IndexSettings   `mapstructure:"index"`
	Search    SearchSettings  `mapstructure:"search"`
}

// keys maps every nested setting to its CLI flag name.
var keys = map[string]string{
	"transport":                "transport",
	"host":                     "host",
	"port":                     "port",
	"log_level":                "log-level",
	"auth.type":                "auth-type",
	"auth.basic.username":      "auth-basic-username",
	"auth.basic.password":      "auth-basic-password",
	"auth.api_keys":            "auth-api-keys",
	"catalog.database_path":    "catalog-db",
	"index.enabled":            "index-enabled",
	"index.base_dir":           "index-base-dir",
	"index.scope":              "index-scope",
	"index.document_types":     "index-document-types",
	"index.sync_interval":      "index-sync-interval",
	"index.lock_timeout":       "index-lock-timeout",
	"index.batch_size":         "index-batch-size",
	"index.projection_workers": "index-projection-workers",
	"index.publish_workers":    "index-publish-workers",
	"index.legacy_status":      "index-legacy-status",
	"search.max_results":       "search-max-results",
	"search.max_attempts":      "search-max-attempts",
	"search.call_timeout":      "search-call-timeout",
	"search.filters_file":      "search-filters-file",
	"search.filter_ttl":        "search-filter-ttl",
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("auth.type", AuthTypeNone)

	baseDir := defaultBaseDir()
	v.SetDefault("catalog.database_path", filepath.Join(baseDir, "catalog.db"))

	// Index defaults
	v.SetDefault("index.enabled", true)
	v.SetDefault("index.base_dir", baseDir)
	v.SetDefault("index.scope", "catalog")
	v.SetDefault("index.document_types", []string{DocumentTypeCategory, DocumentTypeProduct})
	v.SetDefault("index.sync_interval", 5*time.Minute)
	v.SetDefault("index.lock_timeout", 60*time.Second)
	v.SetDefault("index.batch_size", 100)
	v.SetDefault("index.projection_workers", 4)
	v.SetDefault("index.publish_workers", 2)
	v.SetDefault("index.legacy_status", false)

	// Search defaults
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.max_attempts", 3)
	v.SetDefault("search.call_timeout", 10*time.Second)
	v.SetDefault("search.filters_file", "")
	v.SetDefault("search.filter_ttl", 5*time.Minute)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested keys explicitly so Unmarshal sees env-only values
	for key := range keys {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, flag := range keys {
			if f := flags.Lookup(flag); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle comma-separated API keys from env var
	apiKeysEnv := os.Getenv(EnvPrefix + "_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}
	settings.Auth.APIKeys = filterEmptyStrings(settings.Auth.APIKeys)

	// Handle comma-separated document types from env var
	typesEnv := os.Getenv(EnvPrefix + "_INDEX_DOCUMENT_TYPES")
	if typesEnv != "" {
		if len(settings.Index.DocumentTypes) == 0 || (len(settings.Index.DocumentTypes) == 1 && strings.Contains(settings.Index.DocumentTypes[0], ",")) {
			settings.Index.DocumentTypes = strings.Split(typesEnv, ",")
		}
	}
	for i := range settings.Index.DocumentTypes {
		settings.Index.DocumentTypes[i] = strings.ToLower(strings.TrimSpace(settings.Index.DocumentTypes[i]))
	}
	settings.Index.DocumentTypes = filterEmptyStrings(settings.Index.DocumentTypes)

	// Expand home directory in paths
	settings.Index.BaseDir = expandHomeDir(settings.Index.BaseDir)
	settings.Catalog.DatabasePath = expandHomeDir(settings.Catalog.DatabasePath)
	settings.Search.FiltersFile = expandHomeDir(settings.Search.FiltersFile)

	return &settings, nil
}

// defaultBaseDir returns the default data directory
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".catalog-search"
	}
	return filepath.Join(home, ".catalog-search")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting or incomplete configurations.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	switch strings.ToLower(s.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("log-level must be one of debug, info, warn, error, got: " + s.LogLevel)
	}

	if err := validateAuthSettings(&s.Auth); err != nil {
		return err
	}

	if s.Catalog.DatabasePath == "" {
		return errors.New("catalog-db cannot be empty")
	}

	if err := validateIndexSettings(&s.Index); err != nil {
		return err
	}

	return validateSearchSettings(&s.Search)
}

// validateAuthSettings rejects mutually exclusive or incomplete credentials
func validateAuthSettings(a *AuthSettings) error {
	hasBasicCreds := a.Basic.Username != "" || a.Basic.Password != ""
	hasAPIKeys := len(a.APIKeys) > 0

	switch a.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if a.Basic.Username == "" || a.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + a.Type)
	}
	return nil
}

// validateIndexSettings validates the index build configuration
func validateIndexSettings(ix *IndexSettings) error {
	if !ix.Enabled {
		return nil // No validation needed when disabled
	}

	if ix.Scope == "" {
		return errors.New("index-scope cannot be empty")
	}

	if len(ix.DocumentTypes) == 0 {
		return errors.New("index-enabled requires at least one document type (index-document-types)")
	}
	for _, t := range ix.DocumentTypes {
		if t != DocumentTypeCategory && t != DocumentTypeProduct {
			return fmt.Errorf("unknown document type: %s", t)
		}
	}

	if ix.SyncInterval <= 0 {
		return errors.New("index-sync-interval must be positive")
	}

	if ix.LockTimeout <= 0 {
		return errors.New("index-lock-timeout must be positive")
	}

	if ix.BatchSize <= 0 {
		return errors.New("index-batch-size must be positive")
	}

	if ix.ProjectionWorkers <= 0 || ix.PublishWorkers <= 0 {
		return errors.New("index worker counts must be positive")
	}

	return nil
}

// validateSearchSettings validates the search configuration
func validateSearchSettings(sr *SearchSettings) error {
	if sr.MaxResults <= 0 {
		return errors.New("search-max-results must be positive")
	}

	if sr.MaxAttempts <= 0 {
		return errors.New("search-max-attempts must be positive")
	}

	if sr.CallTimeout <= 0 {
		return errors.New("search-call-timeout must be positive")
	}

	if sr.FilterTTL < 0 {
		return errors.New("search-filter-ttl cannot be negative")
	}

	return nil
}
