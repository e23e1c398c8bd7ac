package domain

// NoteDocument represents a materialized note in the Bleve search index.
type NoteDocument struct {
	// ID is the note's internal identifier (for example "note_N0001").
	ID string `json:"id"`

	// Name is the display name the note was written under.
	Name string `json:"name"`

	// Path is the vault-relative path of the note file.
	// Example: "Genealogy/Notes/Research Note on John Smith.md"
	Path string `json:"path"`

	// Category is the note category label, empty when unknown.
	Category string `json:"category"`

	// Linked is the name of the entity that first referenced the note.
	Linked string `json:"linked"`

	// Content is the plain text of the note body.
	Content string `json:"content"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	NoteFieldID       = "id"
	NoteFieldName     = "name"
	NoteFieldPath     = "path"
	NoteFieldCategory = "category"
	NoteFieldLinked   = "linked"
	NoteFieldContent  = "content"
)
