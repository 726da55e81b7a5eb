package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// SearchArgument defines search_catalog parameters.
type SearchArgument struct {
	DocumentType string              `json:"document_type,omitempty" jsonschema_description:"What to search: catalogitem (default) or category"`
	Query        string              `json:"query,omitempty" jsonschema_description:"Free-text search phrase matched against names, codes and text properties"`
	Store        string              `json:"store,omitempty" jsonschema_description:"Store whose browse filters drive aggregations"`
	Catalog      string              `json:"catalog,omitempty" jsonschema_description:"Restrict products to one catalog"`
	Outlines     []string            `json:"outlines,omitempty" jsonschema_description:"Restrict hits to entities under any of these paths (e.g. electronics/cameras)"`
	Filters      map[string][]string `json:"filters,omitempty" jsonschema_description:"Selected browse filter value ids keyed by filter key"`
	Sort         string              `json:"sort,omitempty" jsonschema_description:"Comma-separated sort fields; prefix with - for descending (e.g. -priority,name)"`
	Skip         int                 `json:"skip,omitempty" jsonschema_description:"Number of hits to skip"`
	Take         int                 `json:"take,omitempty" jsonschema_description:"Page size (capped by the server)"`
	WithHidden   bool                `json:"with_hidden,omitempty" jsonschema_description:"Include inactive products"`
}

// HandlerOptions configures a SearchHandler.
type HandlerOptions struct {
	Scope      string
	MaxResults int

	// Ready reports whether the index can serve searches. Nil means always ready.
	Ready func() bool
}

// SearchHandler handles the search_catalog MCP tool.
type SearchHandler struct {
	reconciler *Reconciler
	filters    FilterSource
	opts       HandlerOptions
}

// NewSearchHandler creates a new search handler. filters may be nil.
func NewSearchHandler(reconciler *Reconciler, filters FilterSource, opts HandlerOptions) *SearchHandler {
	return &SearchHandler{
		reconciler: reconciler,
		filters:    filters,
		opts:       opts,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if h.opts.Ready != nil && !h.opts.Ready() {
		return errorResult("Search is not available. The catalog is still being indexed. Please try again later."), nil, nil
	}

	criteria, err := h.buildCriteria(ctx, args)
	if err != nil {
		return errorResult(fmt.Sprintf("Invalid search: %s", err)), nil, nil
	}

	result, err := h.reconciler.Search(ctx, h.opts.Scope, criteria)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: formatResult(criteria, result)},
		},
	}, nil, nil
}

func (h *SearchHandler) buildCriteria(ctx context.Context, args SearchArgument) (domain.Criteria, error) {
	take := args.Take
	if take <= 0 || (h.opts.MaxResults > 0 && take > h.opts.MaxResults) {
		take = h.opts.MaxResults
	}
	if args.Skip < 0 {
		return nil, fmt.Errorf("skip must not be negative")
	}

	var current []domain.Filter
	if len(args.Filters) > 0 && h.filters != nil {
		browse, err := h.filters.Filters(ctx, args.Store)
		if err != nil {
			return nil, err
		}
		current = SelectFilters(browse, args.Filters)
	}

	keyword := domain.KeywordSearch{
		StoreID:        args.Store,
		SearchPhrase:   strings.TrimSpace(args.Query),
		Skip:           args.Skip,
		Take:           take,
		Sort:           ParseSort(args.Sort),
		CurrentFilters: current,
		ResponseGroup:  domain.WithOutlines,
	}

	switch strings.ToLower(args.DocumentType) {
	case "", domain.DocumentTypeProduct:
		return domain.NewProductCriteria(domain.ProductSearch{
			KeywordSearch: keyword,
			Catalog:       args.Catalog,
			Outlines:      args.Outlines,
			WithHidden:    args.WithHidden,
		}), nil
	case domain.DocumentTypeCategory:
		return domain.NewCategoryCriteria(domain.CategorySearch{
			KeywordSearch: keyword,
			Outlines:      args.Outlines,
		}), nil
	default:
		return nil, fmt.Errorf("unknown document type %q", args.DocumentType)
	}
}

// ParseSort parses "-priority,name" style sort expressions. The display
// name sorts by its keyword copy.
func ParseSort(expr string) []domain.SortField {
	var fields []domain.SortField
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		part = strings.ToLower(strings.TrimPrefix(part, "-"))
		if part == "" {
			continue
		}
		if part == domain.FieldName {
			part = domain.FieldSort
		}
		fields = append(fields, domain.SortField{Field: part, Descending: desc})
	}
	return fields
}

func formatResult(criteria domain.Criteria, result *Result) string {
	if len(result.Records) == 0 {
		return fmt.Sprintf("No results found (total %d)", result.TotalCount)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Showing %d of %d results (skip %d):\n\n",
		len(result.Records), result.TotalCount, criteria.Skip()))

	for i, e := range result.Records {
		sb.WriteString(fmt.Sprintf("%d. %s", criteria.Skip()+i+1, e.Name))
		if e.Code != "" {
			sb.WriteString(fmt.Sprintf(" [%s]", e.Code))
		}
		sb.WriteString(fmt.Sprintf("\n   id: %s, created: %s\n", e.ID, e.CreatedAt.Format(time.DateOnly)))
		for _, o := range e.Outlines {
			sb.WriteString(fmt.Sprintf("   outline: %s\n", strings.Join(o.Items, domain.OutlineSeparator)))
		}
	}

	if len(result.Aggregations) > 0 {
		sb.WriteString("\nAggregations:\n")
		for _, agg := range result.Aggregations {
			sb.WriteString(fmt.Sprintf("- %s:", agg.Field))
			for _, item := range agg.Items {
				mark := ""
				if item.IsApplied {
					mark = "*"
				}
				sb.WriteString(fmt.Sprintf(" %s%s (%d)", item.Value, mark, item.Count))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_catalog",
		Description: "Search catalog products or categories. Results are loaded from the catalog store in relevance order, with browse filter aggregations",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, handler *SearchHandler) {
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
