package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-lineage-server/internal/domain"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query    string `json:"query" jsonschema_description:"Search query matched against note text, names and linked people, events or places"`
	Category string `json:"category,omitempty" jsonschema_description:"Filter by exact category label (e.g., Research Note, Transcript)"`
}

// SearchHandler handles the search MCP tool.
type SearchHandler struct {
	service *Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service *Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if !h.service.IsReady() {
		return errorResult("Search is not available. The note index is not open yet. Please try again later."), nil, nil
	}

	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	index, err := h.service.GetIndex()
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to access index: %s", err)), nil, nil
	}

	searchReq := bleve.NewSearchRequest(h.buildQuery(args))
	searchReq.Size = h.service.GetSettings().MaxResults
	searchReq.Fields = []string{domain.NoteFieldName, domain.NoteFieldPath, domain.NoteFieldCategory, domain.NoteFieldLinked}
	searchReq.Highlight = bleve.NewHighlight()
	searchReq.Highlight.AddField(domain.NoteFieldContent)

	results, err := index.SearchInContext(ctx, searchReq)
	if err != nil {
		return errorResult(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return h.formatResults(results, args.Query), nil, nil
}

// buildQuery matches content, boosting display names and linked entities,
// optionally restricted to one category.
func (h *SearchHandler) buildQuery(args SearchArgument) query.Query {
	contentQuery := bleve.NewMatchQuery(args.Query)
	contentQuery.SetField(domain.NoteFieldContent)

	nameQuery := bleve.NewMatchQuery(args.Query)
	nameQuery.SetField(domain.NoteFieldName)
	nameQuery.SetBoost(3.0)

	linkedQuery := bleve.NewMatchQuery(args.Query)
	linkedQuery.SetField(domain.NoteFieldLinked)
	linkedQuery.SetBoost(2.0)

	searchQuery := bleve.NewDisjunctionQuery(contentQuery, nameQuery, linkedQuery)

	category := strings.TrimSpace(args.Category)
	if category == "" {
		return searchQuery
	}
	categoryQuery := bleve.NewTermQuery(category)
	categoryQuery.SetField(domain.NoteFieldCategory)
	return bleve.NewConjunctionQuery(searchQuery, categoryQuery)
}

// formatResults formats Bleve search results for MCP response.
func (h *SearchHandler) formatResults(results *bleve.SearchResult, queryStr string) *mcp.CallToolResult {
	if results.Total == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("No notes found for query: %s", queryStr)},
			},
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d notes for '%s':\n\n", results.Total, queryStr))

	for i, hit := range results.Hits {
		name, _ := hit.Fields[domain.NoteFieldName].(string)
		notePath, _ := hit.Fields[domain.NoteFieldPath].(string)
		category, _ := hit.Fields[domain.NoteFieldCategory].(string)
		linked, _ := hit.Fields[domain.NoteFieldLinked].(string)

		sb.WriteString(fmt.Sprintf("### %d. [[%s]]\n", i+1, name))
		sb.WriteString(fmt.Sprintf("**Path**: `%s`\n", notePath))
		if category != "" {
			sb.WriteString(fmt.Sprintf("**Category**: %s\n", category))
		}
		if linked != "" {
			sb.WriteString(fmt.Sprintf("**Linked**: %s\n", linked))
		}
		sb.WriteString(fmt.Sprintf("**Score**: %.4f\n", hit.Score))

		if fragments, ok := hit.Fragments[domain.NoteFieldContent]; ok && len(fragments) > 0 {
			sb.WriteString("\n")
			for _, fragment := range fragments {
				sb.WriteString("> " + strings.ReplaceAll(fragment, "\n", " ") + "\n")
			}
		}
		sb.WriteString("\n")
	}

	if results.Total > uint64(len(results.Hits)) {
		sb.WriteString(fmt.Sprintf("... and %d more notes\n", results.Total-uint64(len(results.Hits))))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_notes",
		Description: "Full-text search over imported genealogy notes",
	}
}
