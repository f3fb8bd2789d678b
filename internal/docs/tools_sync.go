package docs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

// SyncArgument defines sync parameters.
type SyncArgument struct {
	Source string `json:"source,omitempty" jsonschema_description:"Source to sync (apps_in_toss, tds_react_native, tds_mobile); all sources when omitted"`
	Force  bool   `json:"force,omitempty" jsonschema_description:"Refetch every page even if the manifest is unchanged"`
	Reset  bool   `json:"reset,omitempty" jsonschema_description:"Delete the cached copy before syncing"`
}

// SyncHandler handles the sync_sources MCP tool.
type SyncHandler struct {
	service *Service
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(service *Service) *SyncHandler {
	return &SyncHandler{
		service: service,
	}
}

// Handle syncs the requested sources and reports one line per source.
func (h *SyncHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SyncArgument) (*mcp.CallToolResult, any, error) {
	source := strings.TrimSpace(args.Source)

	if args.Reset {
		if err := h.service.ClearCache(source); err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				return errorResult(err.Error()), nil, nil
			}
			return errorResult(fmt.Sprintf("Failed to reset cache: %s", err)), nil, nil
		}
	}

	outcomes, err := h.service.Sync(ctx, source, args.Force || args.Reset)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return errorResult(err.Error()), nil, nil
		}
		return errorResult(fmt.Sprintf("Sync failed: %s", err)), nil, nil
	}

	failed := 0
	var sb strings.Builder
	if len(outcomes) > 0 {
		sb.WriteString(fmt.Sprintf("Sync run %s\n\n", outcomes[0].RunID))
	}
	for _, out := range outcomes {
		sb.WriteString("- ")
		sb.WriteString(out.String())
		sb.WriteString("\n")
		for _, url := range out.FailedURLs {
			sb.WriteString(fmt.Sprintf("  - skipped: %s\n", url))
		}
		if out.Status == StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		sb.WriteString(fmt.Sprintf("\n%d of %d sources failed; previously synced documentation is still served.\n", failed, len(outcomes)))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
		IsError: failed == len(outcomes),
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *SyncHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sync_sources",
		Description: "Fetch the latest documentation and rebuild the search index",
	}
}

// RegisterSyncTool registers the sync tool with an MCP server.
func RegisterSyncTool(server *mcp.Server, service *Service) {
	handler := NewSyncHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
