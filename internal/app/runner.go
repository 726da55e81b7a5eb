package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-catalog-search/internal/config"
	mcputil "github.com/sha1n/mcp-catalog-search/internal/mcp"
	"github.com/sha1n/mcp-catalog-search/internal/search"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(*config.Settings) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// LoadValidSettings loads settings and rejects inconsistent ones.
func LoadValidSettings(params RunParams, flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

// ConfigureLogging installs the default logger. Always stderr, stdout may
// carry the stdio transport.
func ConfigureLogging(settings *config.Settings) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(settings.LogLevel)})
	slog.SetDefault(slog.New(handler))
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := LoadValidSettings(params, flags)
	if err != nil {
		return err
	}

	ConfigureLogging(settings)

	slog.Info("Starting catalog search server", "version", version)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, settings)
}

// CreateMCPServer creates the MCP server with registered tools. With the
// index disabled no tools are registered.
func CreateMCPServer(settings *config.Settings) (*mcp.Server, func(), error) {
	cfg := mcputil.ServerConfig{
		Name:    "catalog-search",
		Version: "1.0.0",
	}
	if !settings.Index.Enabled {
		slog.Warn("Index disabled, serving no tools")
		return mcputil.CreateServer(cfg), nil, nil
	}

	components, err := NewComponents(settings)
	if err != nil {
		return nil, nil, err
	}
	components.StartSync()

	cfg.Index = components.Service
	cfg.Search = search.NewSearchHandler(components.Reconciler, components.Filters, search.HandlerOptions{
		Scope:      components.Service.Scope(),
		MaxResults: settings.Search.MaxResults,
		Ready:      components.Service.IsReady,
	})

	cleanup := func() {
		if err := components.Close(); err != nil {
			slog.Error("Failed to close components", "error", err)
		}
	}
	return mcputil.CreateServer(cfg), cleanup, nil
}
