package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-catalog-search/internal/indexing"
	"github.com/sha1n/mcp-catalog-search/internal/search"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// Search serves search_catalog when set.
	Search *search.SearchHandler

	// Index serves build_index when set.
	Index *indexing.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Search != nil {
		search.RegisterSearchTool(s, cfg.Search)
	}
	if cfg.Index != nil {
		indexing.RegisterBuildTool(s, cfg.Index)
	}

	return s
}
