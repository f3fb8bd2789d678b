package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-tossdocs-server/internal/docs"
)

// instructions tells clients how the documentation tools fit together.
const instructions = `Apps in Toss and TDS (Toss Design System) developer documentation.
Use search_docs with a few keywords (Korean or English) to find relevant sections,
then read_doc with a result URL to read the whole page.
list_sources shows what is indexed; sync_sources refreshes it.`

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	DocsSvc *docs.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &mcp.ServerOptions{
		Instructions: instructions,
	})

	if cfg.DocsSvc != nil {
		docs.RegisterSearchTool(s, cfg.DocsSvc)
		docs.RegisterReadTool(s, cfg.DocsSvc)
		docs.RegisterSyncTool(s, cfg.DocsSvc)
		docs.RegisterSourcesTool(s, cfg.DocsSvc)
	}

	return s
}
