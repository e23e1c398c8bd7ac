package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ImportArgument defines import parameters.
type ImportArgument struct {
	Path      string `json:"path" jsonschema_description:"Path to a Gramps package (.gpkg), Gramps XML (.gramps) or ZIP export on the server"`
	Folder    string `json:"folder,omitempty" jsonschema_description:"Vault folder for the notes (defaults to the configured notes folder)"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema_description:"Replace existing notes in place and re-import unchanged archives"`
}

// ImportHandler handles the import MCP tool.
type ImportHandler struct {
	service *Service
}

// NewImportHandler creates a new import handler.
func NewImportHandler(service *Service) *ImportHandler {
	return &ImportHandler{service: service}
}

// Handle imports an archive and returns its summary.
func (h *ImportHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ImportArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	summary, err := h.service.Import(ctx, args.Path, ImportOptions{
		Folder:    args.Folder,
		Overwrite: args.Overwrite,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Import failed: %s", err)), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary.String()},
		},
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ImportHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "import_archive",
		Description: "Import a genealogy archive into the note vault, one note file per archive note",
	}
}

// errorResult wraps a message in an error tool result.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// RegisterTools registers the import, search and read tools with an MCP server.
func RegisterTools(server *mcp.Server, service *Service) {
	importHandler := NewImportHandler(service)
	mcp.AddTool(server, importHandler.GetToolDefinition(), importHandler.Handle)

	searchHandler := NewSearchHandler(service)
	mcp.AddTool(server, searchHandler.GetToolDefinition(), searchHandler.Handle)

	readHandler := NewReadHandler(service)
	mcp.AddTool(server, readHandler.GetToolDefinition(), readHandler.Handle)
}
