package docs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SourcesArgument is empty; list_sources takes no parameters.
type SourcesArgument struct{}

// SourcesHandler handles the list_sources MCP tool.
type SourcesHandler struct {
	service *Service
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(service *Service) *SourcesHandler {
	return &SourcesHandler{
		service: service,
	}
}

// Handle lists every source with its index state and last sync outcome.
func (h *SourcesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SourcesArgument) (*mcp.CallToolResult, any, error) {
	var sb strings.Builder
	for _, st := range h.service.Sources() {
		sb.WriteString(fmt.Sprintf("### %s (%s)\n", st.Source.Name, st.Source.ID))
		sb.WriteString(fmt.Sprintf("**Kind**: %s\n", st.Source.Kind))
		sb.WriteString(fmt.Sprintf("**Manifest**: %s\n", st.Source.ManifestURL))
		if st.Loaded {
			sb.WriteString(fmt.Sprintf("**Chunks**: %d\n", st.Chunks))
		} else {
			sb.WriteString("**Chunks**: not loaded\n")
		}
		if st.LastOutcome != nil {
			sb.WriteString(fmt.Sprintf("**Last sync**: %s at %s\n", st.LastOutcome.String(), st.LastSync.Format(time.RFC3339)))
		}
		sb.WriteString("\n")
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *SourcesHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_sources",
		Description: "List the documentation sources and their sync state",
	}
}

// RegisterSourcesTool registers the sources tool with an MCP server.
func RegisterSourcesTool(server *mcp.Server, service *Service) {
	handler := NewSourcesHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
