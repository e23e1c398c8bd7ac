package domain

// EntityKind identifies the kind of genealogy entity that references a note.
type EntityKind string

const (
	KindPerson EntityKind = "person"
	KindEvent  EntityKind = "event"
	KindPlace  EntityKind = "place"
	KindSource EntityKind = "source"
)

// EntityRef names the entity that references a note.
type EntityRef struct {
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
}

// Note is a parsed note record handed over by a domain parser.
//
// SourceHandle is always present. SourceID is only set by formats that
// carry explicit identifiers (for example Gramps "N0001").
type Note struct {
	SourceID     string
	SourceHandle string
	RecordType   string
	Private      bool
	Text         string
	Referencing  *EntityRef
}

// Person is a parsed person with the keys of the notes it references.
type Person struct {
	Handle   string
	ID       string
	Name     string
	NoteRefs []string
}

// Event is a parsed event with the keys of the notes it references.
type Event struct {
	Handle   string
	ID       string
	Label    string
	NoteRefs []string
}

// Place is a parsed place with the keys of the notes it references.
type Place struct {
	Handle   string
	ID       string
	Name     string
	NoteRefs []string
}

// Database is the typed output of a domain parser.
type Database struct {
	Notes  []Note
	People []Person
	Events []Event
	Places []Place
}

// HeaderField is one frontmatter key/value pair, in emission order.
type HeaderField struct {
	Key   string
	Value any
}

// MaterializedRecord is a note converted into a uniquely named output record.
type MaterializedRecord struct {
	// InternalID is derived from the source identifier and is stable across
	// re-imports of ID-bearing records.
	InternalID string

	// DisplayName is unique within the target folder at computation time only.
	DisplayName string

	Header []HeaderField
	Body   string
}

// MaterializeResult reports the outcome of writing one record.
// Write failures are carried in Error instead of being returned.
type MaterializeResult struct {
	OK          bool   `json:"ok"`
	Path        string `json:"path,omitempty"`
	InternalID  string `json:"internal_id,omitempty"`
	Link        string `json:"link,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Category    string `json:"category,omitempty"`
	Linked      string `json:"linked,omitempty"`
	Error       string `json:"error,omitempty"`
}
