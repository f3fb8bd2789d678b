package docs

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadArgument defines read parameters.
type ReadArgument struct {
	URL string `json:"url" jsonschema_description:"Page URL as shown in search results"`
}

// ReadHandler handles the read_doc MCP tool.
type ReadHandler struct {
	service *Service
}

// NewReadHandler creates a new read handler.
func NewReadHandler(service *Service) *ReadHandler {
	return &ReadHandler{
		service: service,
	}
}

// Handle reassembles a cached page from its chunks.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.URL) == "" {
		return errorResult("URL cannot be empty"), nil, nil
	}

	chunks, err := h.service.ReadDoc(args.URL)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	if len(chunks) == 0 {
		return errorResult(fmt.Sprintf("Page not found: %s", strings.TrimSpace(args.URL))), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**URL**: %s\n", chunks[0].URL))
	sb.WriteString(fmt.Sprintf("**Source**: %s\n", chunks[0].SourceID))
	sb.WriteString(fmt.Sprintf("**Chunks**: %d\n\n", len(chunks)))
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(chunk.Body)
	}

	return textResult(sb.String()), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_doc",
		Description: "Read a whole documentation page from the local cache",
	}
}

// RegisterReadTool registers the read tool with an MCP server.
func RegisterReadTool(server *mcp.Server, service *Service) {
	handler := NewReadHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
