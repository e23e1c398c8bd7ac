package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-lineage-server/internal/importer"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	// ImportSvc serves the import, search and read tools. When nil the
	// server starts without tools.
	ImportSvc *importer.Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.ImportSvc != nil {
		importer.RegisterTools(s, cfg.ImportSvc)
	}

	return s
}
