package importer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/mcp-lineage-server/internal/domain"
)

const (
	// IndexName is the directory name of the note index under <base>/indexes
	IndexName = "notes.bleve"

	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	// MaxBatchBytes is the maximum content bytes per batch (10MB)
	MaxBatchBytes = 10 * 1024 * 1024

	indexOpenTimeout = "5s"
)

// Indexer manages the Bleve index of materialized notes.
type Indexer struct {
	path string
}

// NewIndexer creates an indexer rooted at baseDir.
func NewIndexer(baseDir string) *Indexer {
	return &Indexer{path: filepath.Join(baseDir, "indexes", IndexName)}
}

// Path returns the index directory.
func (i *Indexer) Path() string {
	return i.path
}

// CreateIndexMapping creates the Bleve index mapping for note documents.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Content and display name are analyzed for full-text search
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(domain.NoteFieldContent, contentField)

	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = standard.Name
	nameField.Store = true
	docMapping.AddFieldMappingsAt(domain.NoteFieldName, nameField)

	linkedField := bleve.NewTextFieldMapping()
	linkedField.Analyzer = standard.Name
	linkedField.Store = true
	docMapping.AddFieldMappingsAt(domain.NoteFieldLinked, linkedField)

	// Category and path match exactly
	categoryField := bleve.NewTextFieldMapping()
	categoryField.Analyzer = keyword.Name
	categoryField.Store = true
	docMapping.AddFieldMappingsAt(domain.NoteFieldCategory, categoryField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	docMapping.AddFieldMappingsAt(domain.NoteFieldPath, pathField)

	// ID is stored but not indexed
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.NoteFieldID, idField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Open opens the index, creating it on first use. Opening an index held by
// another process fails after indexOpenTimeout.
func (i *Indexer) Open() (bleve.Index, error) {
	index, err := bleve.OpenUsing(i.path, map[string]interface{}{"bolt_timeout": indexOpenTimeout})
	if err == nil {
		return index, nil
	}
	if i.Exists() {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	index, err = bleve.New(i.path, CreateIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return index, nil
}

// Exists checks if the index has been created.
func (i *Indexer) Exists() bool {
	_, err := os.Stat(i.path)
	return err == nil
}

// Delete removes the index from disk.
func (i *Indexer) Delete() error {
	return os.RemoveAll(i.path)
}

// NewNoteDocument builds the indexed form of a successfully written note.
// The body is reduced to plain text.
func NewNoteDocument(result domain.MaterializeResult, body string) domain.NoteDocument {
	return domain.NoteDocument{
		ID:       result.InternalID,
		Name:     result.DisplayName,
		Path:     result.Path,
		Category: result.Category,
		Linked:   result.Linked,
		Content:  PlainText(body),
	}
}

// IndexNotes adds docs to index in bounded batches, keyed by vault path.
// It returns the number of documents indexed.
func IndexNotes(index bleve.Index, docs []domain.NoteDocument) (int, error) {
	batch := index.NewBatch()
	batchSize, batchBytes, total := 0, 0, 0

	for _, doc := range docs {
		if err := batch.Index(doc.Path, doc); err != nil {
			return total, fmt.Errorf("failed to index %s: %w", doc.Path, err)
		}
		batchSize++
		batchBytes += len(doc.Content)

		if batchSize >= MaxBatchSize || batchBytes >= MaxBatchBytes {
			if err := index.Batch(batch); err != nil {
				return total, fmt.Errorf("batch index failed: %w", err)
			}
			total += batchSize
			batch = index.NewBatch()
			batchSize, batchBytes = 0, 0
		}
	}

	if batchSize > 0 {
		if err := index.Batch(batch); err != nil {
			return total, fmt.Errorf("final batch index failed: %w", err)
		}
		total += batchSize
	}
	return total, nil
}
