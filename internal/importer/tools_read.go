package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-lineage-server/internal/vault"
)

// maxReadBytes caps the size of a note returned by read_note.
const maxReadBytes = 256 * 1024

// ReadArgument defines read parameters.
type ReadArgument struct {
	Path string `json:"path" jsonschema_description:"Vault-relative note path as returned by search_notes"`
}

// ReadHandler handles the read MCP tool.
type ReadHandler struct {
	service *Service
}

// NewReadHandler creates a new read handler.
func NewReadHandler(service *Service) *ReadHandler {
	return &ReadHandler{service: service}
}

// Handle reads a note from the vault.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	notePath, err := vault.CleanPath(args.Path)
	if err != nil {
		return errorResult(fmt.Sprintf("Invalid path: %s", args.Path)), nil, nil
	}

	content, err := h.service.GetVault().Read(notePath)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return errorResult(fmt.Sprintf("Note not found: %s", notePath)), nil, nil
		}
		return errorResult(fmt.Sprintf("Error reading note: %s", err)), nil, nil
	}

	if len(content) > maxReadBytes {
		return errorResult(fmt.Sprintf("Note too large (%.2f KB). Maximum allowed size is %.2f KB", float64(len(content))/1024, float64(maxReadBytes)/1024)), nil, nil
	}
	if !utf8.Valid(content) {
		return errorResult("Cannot display binary file content"), nil, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Note**: `%s`\n", notePath))
	sb.WriteString(fmt.Sprintf("**Size**: %d bytes\n\n", len(content)))
	sb.WriteString(fmt.Sprintf("```markdown\n%s\n```", string(content)))

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}, nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *ReadHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "read_note",
		Description: "Read an imported note, including its frontmatter, from the vault",
	}
}
