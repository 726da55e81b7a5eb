package indexing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// BuildArgument defines build_index parameters.
type BuildArgument struct {
	DocumentType string `json:"document_type,omitempty" jsonschema_description:"Document type to build (category or catalogitem); all configured types when empty"`
	Rebuild      bool   `json:"rebuild,omitempty" jsonschema_description:"Clear the document type and re-index every entity instead of applying recent changes"`
}

// BuildHandler handles the build_index MCP tool.
type BuildHandler struct {
	service *Service
}

// NewBuildHandler creates a new build handler.
func NewBuildHandler(service *Service) *BuildHandler {
	return &BuildHandler{service: service}
}

// Handle runs a build and reports its statistics.
func (h *BuildHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args BuildArgument) (*mcp.CallToolResult, any, error) {
	stats := make(map[string]BuildStats)
	var err error

	if args.DocumentType == "" {
		stats, err = h.service.BuildAll(ctx, args.Rebuild)
	} else {
		var s BuildStats
		s, err = h.service.Build(ctx, args.DocumentType, args.Rebuild)
		stats[strings.ToLower(args.DocumentType)] = s
	}
	if saveErr := h.service.SaveManifest(); saveErr != nil && err == nil {
		err = saveErr
	}

	text := formatStats(h.service.Scope(), stats)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Build failed: %s\n\n%s", err, text)},
			},
			IsError: true,
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func formatStats(scope string, stats map[string]BuildStats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Scope: %s\n", scope))
	types := make([]string, 0, len(stats))
	for t := range stats {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		s := stats[t]
		sb.WriteString(fmt.Sprintf("- %s: %d partitions, %d indexed, %d removed, %d missing\n",
			t, s.Partitions, s.Indexed, s.Removed, s.Missing))
	}
	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *BuildHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "build_index",
		Description: "Synchronize the catalog search index with the catalog store, incrementally or as a full rebuild",
	}
}

// RegisterBuildTool registers the build tool with an MCP server.
func RegisterBuildTool(server *mcp.Server, service *Service) {
	handler := NewBuildHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
