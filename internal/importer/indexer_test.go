package importer

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/mcp-lineage-server/internal/domain"
)

func openTestIndex(t *testing.T) (*Indexer, bleve.Index) {
	t.Helper()
	indexer := NewIndexer(t.TempDir())
	index, err := indexer.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })
	return indexer, index
}

func TestNewIndexer_Path(t *testing.T) {
	dir := t.TempDir()
	indexer := NewIndexer(dir)
	want := filepath.Join(dir, "indexes", IndexName)
	if indexer.Path() != want {
		t.Errorf("Expected path %s, got %s", want, indexer.Path())
	}
	if indexer.Exists() {
		t.Error("Expected index not to exist before Open")
	}
}

func TestIndexer_OpenCreatesAndReopens(t *testing.T) {
	indexer := NewIndexer(t.TempDir())

	index, err := indexer.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := IndexNotes(index, []domain.NoteDocument{{ID: "note_N1", Path: "Notes/a.md", Content: "hello"}}); err != nil {
		t.Fatalf("IndexNotes failed: %v", err)
	}
	if err := index.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !indexer.Exists() {
		t.Fatal("Expected index to exist after Open")
	}

	reopened, err := indexer.Open()
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	count, err := reopened.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 document after reopen, got %d", count)
	}
}

func TestIndexer_Delete(t *testing.T) {
	indexer := NewIndexer(t.TempDir())
	index, err := indexer.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = index.Close()

	if err := indexer.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if indexer.Exists() {
		t.Error("Expected index to be removed")
	}
}

func TestIndexNotes_Batches(t *testing.T) {
	_, index := openTestIndex(t)

	docs := make([]domain.NoteDocument, MaxBatchSize*2+5)
	for i := range docs {
		docs[i] = domain.NoteDocument{
			ID:      fmt.Sprintf("note_N%04d", i),
			Path:    fmt.Sprintf("Notes/Note %d.md", i),
			Content: "parish register entry",
		}
	}

	count, err := IndexNotes(index, docs)
	if err != nil {
		t.Fatalf("IndexNotes failed: %v", err)
	}
	if count != len(docs) {
		t.Errorf("Expected %d indexed, got %d", len(docs), count)
	}
	total, _ := index.DocCount()
	if total != uint64(len(docs)) {
		t.Errorf("Expected %d documents, got %d", len(docs), total)
	}
}

func TestIndexNotes_SamePathReplaces(t *testing.T) {
	_, index := openTestIndex(t)

	doc := domain.NoteDocument{ID: "note_N1", Path: "Notes/a.md", Content: "first"}
	if _, err := IndexNotes(index, []domain.NoteDocument{doc}); err != nil {
		t.Fatal(err)
	}
	doc.Content = "second"
	if _, err := IndexNotes(index, []domain.NoteDocument{doc}); err != nil {
		t.Fatal(err)
	}

	total, _ := index.DocCount()
	if total != 1 {
		t.Errorf("Expected 1 document, got %d", total)
	}
}

func TestIndexMapping_FieldSearch(t *testing.T) {
	_, index := openTestIndex(t)

	docs := []domain.NoteDocument{
		{ID: "note_N1", Name: "Research Note on Anna Müller", Path: "Notes/r.md", Category: "Research Note", Linked: "Anna Müller", Content: "emigrated to Ohio in 1852"},
		{ID: "note_N2", Name: "Transcript N2", Path: "Notes/t.md", Category: "Transcript", Content: "baptism record from Ohio"},
	}
	if _, err := IndexNotes(index, docs); err != nil {
		t.Fatal(err)
	}

	content := bleve.NewMatchQuery("ohio")
	content.SetField(domain.NoteFieldContent)
	res, err := index.Search(bleve.NewSearchRequest(content))
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Errorf("Expected 2 content hits, got %d", res.Total)
	}

	category := bleve.NewTermQuery("Research Note")
	category.SetField(domain.NoteFieldCategory)
	res, err = index.Search(bleve.NewSearchRequest(category))
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Hits[0].ID != "Notes/r.md" {
		t.Errorf("Expected exact category match on Notes/r.md, got %d hits", res.Total)
	}
}

func TestNewNoteDocument(t *testing.T) {
	result := domain.MaterializeResult{
		OK:          true,
		Path:        "Notes/Research Note on Anna.md",
		InternalID:  "note_N1",
		DisplayName: "Research Note on Anna",
		Category:    "Research Note",
		Linked:      "Anna",
	}
	doc := NewNoteDocument(result, "**Emigrated** in 1852")

	if doc.ID != "note_N1" || doc.Path != result.Path || doc.Name != result.DisplayName {
		t.Errorf("Unexpected identity fields: %+v", doc)
	}
	if doc.Category != "Research Note" || doc.Linked != "Anna" {
		t.Errorf("Unexpected metadata: %+v", doc)
	}
	if doc.Content != "Emigrated in 1852" {
		t.Errorf("Expected plain content, got %q", doc.Content)
	}
}
