package docs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query  string `json:"query" jsonschema_description:"Space separated keywords; all must match as whole words, otherwise any keyword matching as a substring is returned"`
	Source string `json:"source,omitempty" jsonschema_description:"Restrict the search to one source (apps_in_toss, tds_react_native, tds_mobile)"`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results (default 10, max 50)"`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Number of results to skip, for paging"`
}

// SearchHandler handles the search_docs MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	source := strings.TrimSpace(args.Source)
	if !h.service.IsLoaded(source) {
		if source != "" {
			if _, err := domain.LookupSource(h.service.SourceList(), source); err != nil {
				return errorResult(err.Error()), nil, nil
			}
		}
		return textResult("Documentation is not loaded yet. Run the sync_sources tool, or try again once the startup sync has finished."), nil, nil
	}

	result, err := h.service.Search(args.Query, SearchOptions{
		Source: source,
		Limit:  args.Limit,
		Offset: args.Offset,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return errorResult(err.Error()), nil, nil
		}
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return textResult(h.formatResults(result)), nil, nil
}

// formatResults renders one page of search results as markdown.
func (h *SearchHandler) formatResults(result *SearchResult) string {
	if result.Total == 0 {
		return fmt.Sprintf("No results found for query: %s", result.Query)
	}
	if len(result.Chunks) == 0 {
		return fmt.Sprintf("No more results for '%s' (%d total, offset %d)", result.Query, result.Total, result.Offset)
	}

	names := make(map[string]string)
	for _, src := range h.service.SourceList() {
		names[src.ID] = src.Name
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s' (%s match):\n\n", result.Total, result.Query, result.Stage))

	for i, chunk := range result.Chunks {
		title := chunk.Breadcrumb()
		if title == "" {
			title = chunk.URL
		}
		sb.WriteString(fmt.Sprintf("### %d. %s\n", result.Offset+i+1, title))
		sb.WriteString(fmt.Sprintf("**Source**: %s (%s)\n", names[chunk.SourceID], chunk.SourceID))
		sb.WriteString(fmt.Sprintf("**URL**: %s\n\n", chunk.URL))
		sb.WriteString(chunk.Body)
		sb.WriteString("\n\n")
	}

	if next := result.Offset + len(result.Chunks); next < result.Total {
		sb.WriteString(fmt.Sprintf("... and %d more results (use offset=%d)\n", result.Total-next, next))
	}

	return sb.String()
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_docs",
		Description: "Search the Apps in Toss and TDS documentation by keywords",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service *Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}
