package materialize

import (
	"strings"

	"github.com/sha1n/mcp-lineage-server/internal/domain"
)

// BodyConverter turns a note's rich text into the serialized body.
type BodyConverter interface {
	NoteToBody(note domain.Note) string
}

// BodyFunc adapts a function to BodyConverter.
type BodyFunc func(note domain.Note) string

// NoteToBody calls f.
func (f BodyFunc) NoteToBody(note domain.Note) string {
	return f(note)
}

// PlainBody is the default converter. It normalizes line endings and trims
// trailing whitespace from every line.
var PlainBody BodyConverter = BodyFunc(func(note domain.Note) string {
	text := strings.ReplaceAll(note.Text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
})
