package materialize

import (
	"fmt"
	"path"
	"strings"

	"github.com/sha1n/mcp-lineage-server/internal/domain"
	"github.com/sha1n/mcp-lineage-server/internal/vault"
)

// NoteExtension is appended to display names to form note file names.
const NoteExtension = ".md"

// shortHandleLength is the number of handle characters used when a note has no ID.
const shortHandleLength = 8

// categoryLabels maps lower-cased Gramps note types to display labels.
var categoryLabels = map[string]string{
	"general":          "General Note",
	"research":         "Research Note",
	"transcript":       "Transcript",
	"source text":      "Source Text",
	"citation":         "Citation Note",
	"report":           "Report Note",
	"to do":            "To Do",
	"link":             "Link",
	"html code":        "HTML Note",
	"person note":      "Person Note",
	"family note":      "Family Note",
	"event note":       "Event Note",
	"place note":       "Place Note",
	"source note":      "Source Note",
	"repository note":  "Repository Note",
	"media note":       "Media Note",
	"attribute note":   "Attribute Note",
	"address note":     "Address Note",
	"association note": "Association Note",
	"lds note":         "LDS Note",
}

// hostileChars cannot appear in file names on common filesystems.
const hostileChars = `\/:*?"<>|`

// CategoryLabel returns the display label for a note type and whether the
// type is known.
func CategoryLabel(recordType string) (string, bool) {
	label, ok := categoryLabels[strings.ToLower(strings.TrimSpace(recordType))]
	return label, ok
}

// ShortSourceID returns the note's explicit ID, or the first characters of
// its handle when the format supplies none.
func ShortSourceID(note domain.Note) string {
	if id := strings.TrimSpace(note.SourceID); id != "" {
		return id
	}
	handle := []rune(note.SourceHandle)
	if len(handle) > shortHandleLength {
		handle = handle[:shortHandleLength]
	}
	return string(handle)
}

// DisplayName derives the candidate name of a note before collision
// resolution. The result is already sanitized.
func DisplayName(note domain.Note) string {
	label, known := CategoryLabel(note.RecordType)

	var name string
	switch {
	case known && note.Referencing != nil && strings.TrimSpace(note.Referencing.Name) != "":
		name = fmt.Sprintf("%s on %s", label, note.Referencing.Name)
	case known:
		name = fmt.Sprintf("%s %s", label, ShortSourceID(note))
	default:
		name = fmt.Sprintf("Note %s", ShortSourceID(note))
	}
	return Sanitize(name)
}

// Sanitize replaces filesystem-hostile characters with a dash and collapses
// runs of whitespace into single spaces.
func Sanitize(name string) string {
	replaced := strings.Map(func(r rune) rune {
		if strings.ContainsRune(hostileChars, r) {
			return '-'
		}
		return r
	}, name)

	clean := strings.Join(strings.Fields(replaced), " ")
	if clean == "" {
		return "Note"
	}
	return clean
}

// NotePath joins a folder and a display name into a note file path.
func NotePath(folder, name string) string {
	return path.Join(folder, name+NoteExtension)
}

// ResolveUniqueName returns base, or base with the lowest " (n)" suffix
// (n >= 2) whose note path does not exist in v.
func ResolveUniqueName(v vault.Vault, folder, base string) string {
	return resolveName(base, func(name string) bool {
		return v.Exists(NotePath(folder, name))
	})
}

// resolveName returns base, or base with the lowest " (n)" suffix (n >= 2)
// that is not taken.
func resolveName(base string, taken func(name string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", base, n)
		if !taken(candidate) {
			return candidate
		}
	}
}
