// Package materialize converts parsed notes into uniquely named vault records.
package materialize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/sha1n/mcp-lineage-server/internal/domain"
	"github.com/sha1n/mcp-lineage-server/internal/vault"
)

// DefaultIDPrefix prefixes every internal note identifier.
const DefaultIDPrefix = "note_"

// Options configures a Materializer.
type Options struct {
	// IDPrefix is prepended to source IDs. Defaults to DefaultIDPrefix.
	IDPrefix string

	// Aliases renames canonical header keys.
	Aliases Aliases

	// Body converts note text. Defaults to PlainBody.
	Body BodyConverter

	// NewID generates identifiers for notes without a source ID.
	// Defaults to a random UUID.
	NewID func() string
}

// Materializer writes notes into a vault. It keeps no state between calls;
// callers must serialize Materialize calls that target the same folder.
type Materializer struct {
	vault vault.Vault
	opts  Options
}

// New creates a materializer over v.
func New(v vault.Vault, opts Options) *Materializer {
	if opts.IDPrefix == "" {
		opts.IDPrefix = DefaultIDPrefix
	}
	if opts.Body == nil {
		opts.Body = PlainBody
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Materializer{vault: v, opts: opts}
}

// InternalID returns the prefixed identifier of a note. It is deterministic
// for notes with a source ID and random otherwise.
func (m *Materializer) InternalID(note domain.Note) string {
	if id := strings.TrimSpace(note.SourceID); id != "" {
		return m.opts.IDPrefix + id
	}
	return m.opts.IDPrefix + m.opts.NewID()
}

// Prepare builds the record for a note without touching the vault.
// DisplayName is the candidate name before collision resolution.
func (m *Materializer) Prepare(note domain.Note) domain.MaterializedRecord {
	internalID := m.InternalID(note)

	var body string
	if strings.TrimSpace(note.Text) != "" {
		body = m.opts.Body.NoteToBody(note)
	}

	return domain.MaterializedRecord{
		InternalID:  internalID,
		DisplayName: DisplayName(note),
		Header:      BuildHeader(note, internalID, m.opts.Aliases),
		Body:        body,
	}
}

// Materialize writes note into folder. Unless overwrite is set, the name is
// made unique by probing the vault. Failures are reported in the result.
func (m *Materializer) Materialize(note domain.Note, folder string, overwrite bool) domain.MaterializeResult {
	name := DisplayName(note)
	if !overwrite {
		name = ResolveUniqueName(m.vault, folder, name)
	}
	return m.materializeAs(note, folder, name, overwrite)
}

func (m *Materializer) materializeAs(note domain.Note, folder, name string, overwrite bool) domain.MaterializeResult {
	record := m.Prepare(note)
	record.DisplayName = name
	notePath := NotePath(folder, name)

	result := domain.MaterializeResult{
		Path:        notePath,
		InternalID:  record.InternalID,
		DisplayName: name,
		Category:    noteCategory(note),
	}
	if note.Referencing != nil {
		result.Linked = note.Referencing.Name
	}

	if err := m.write(record, folder, notePath, overwrite); err != nil {
		slog.Warn("Failed to materialize note", "handle", note.SourceHandle, "path", notePath, "error", err)
		result.Error = err.Error()
		return result
	}

	result.OK = true
	result.Link = fmt.Sprintf("[[%s]]", name)
	return result
}

// Batch materializes the notes of one import into a folder. Two notes of
// the same batch never share a path: with overwrite set, a name already
// claimed by the batch takes the next free " (n)" suffix among the batch's
// own names, so re-importing the same archive rewrites the same files.
type Batch struct {
	m         *Materializer
	folder    string
	overwrite bool
	claimed   map[string]bool
}

// NewBatch starts a batch writing into folder.
func (m *Materializer) NewBatch(folder string, overwrite bool) *Batch {
	return &Batch{m: m, folder: folder, overwrite: overwrite, claimed: make(map[string]bool)}
}

// Materialize writes note and claims its path for the rest of the batch.
func (b *Batch) Materialize(note domain.Note) domain.MaterializeResult {
	taken := func(name string) bool {
		return b.claimed[NotePath(b.folder, name)]
	}
	if !b.overwrite {
		taken = func(name string) bool {
			notePath := NotePath(b.folder, name)
			return b.claimed[notePath] || b.m.vault.Exists(notePath)
		}
	}

	name := resolveName(DisplayName(note), taken)
	result := b.m.materializeAs(note, b.folder, name, b.overwrite)
	b.claimed[result.Path] = true
	return result
}

func (m *Materializer) write(record domain.MaterializedRecord, folder, notePath string, overwrite bool) error {
	content, err := Render(record)
	if err != nil {
		return err
	}

	if folder != "" && !m.vault.Exists(folder) {
		if err := m.vault.CreateFolder(folder); err != nil {
			return fmt.Errorf("create folder %s: %w", folder, err)
		}
	}

	if overwrite && m.vault.Exists(notePath) {
		if err := m.vault.Modify(notePath, content); err != nil {
			return fmt.Errorf("modify %s: %w", notePath, err)
		}
		return nil
	}
	if err := m.vault.Create(notePath, content); err != nil {
		return fmt.Errorf("create %s: %w", notePath, err)
	}
	return nil
}
