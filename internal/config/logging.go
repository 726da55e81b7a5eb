package config

import (
	"context"
	"log/slog"
	"strings"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}
	logger.InfoContext(ctx, "Config: log_level", "value", s.LogLevel)

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: catalog.database_path", "value", s.Catalog.DatabasePath)

	logger.InfoContext(ctx, "Config: index.enabled", "value", s.Index.Enabled)
	if s.Index.Enabled {
		logger.InfoContext(ctx, "Config: index", "value", IndexSettingsLogValue(s.Index))
	}
	logger.InfoContext(ctx, "Config: search", "value", SearchSettingsLogValue(s.Search))
}

// ParseLevel maps a log_level setting to a slog level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked credentials
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	password := ""
	if s.Basic.Password != "" {
		password = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.String("username", s.Basic.Username),
		slog.String("password", password),
		slog.Any("api_keys", keys),
	)
}

// IndexSettingsLogValue returns a slog.Value for IndexSettings
func IndexSettingsLogValue(s IndexSettings) slog.Value {
	baseDir := s.BaseDir
	if baseDir == "" {
		baseDir = "(memory)"
	}
	return slog.GroupValue(
		slog.String("base_dir", baseDir),
		slog.String("scope", s.Scope),
		slog.String("document_types", strings.Join(s.DocumentTypes, ",")),
		slog.Duration("sync_interval", s.SyncInterval),
		slog.Int("batch_size", s.BatchSize),
		slog.Bool("legacy_status", s.LegacyStatus),
	)
}

// SearchSettingsLogValue returns a slog.Value for SearchSettings
func SearchSettingsLogValue(s SearchSettings) slog.Value {
	return slog.GroupValue(
		slog.Int("max_results", s.MaxResults),
		slog.Int("max_attempts", s.MaxAttempts),
		slog.Duration("call_timeout", s.CallTimeout),
		slog.String("filters_file", s.FiltersFile),
		slog.Duration("filter_ttl", s.FilterTTL),
	)
}

// SettingsLogValue returns a slog.Value for Settings
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("log_level", s.LogLevel),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("index", IndexSettingsLogValue(s.Index)),
		slog.Any("search", SearchSettingsLogValue(s.Search)),
	)
}
