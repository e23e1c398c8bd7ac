package materialize

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/sha1n/mcp-lineage-server/internal/domain"
	"gopkg.in/yaml.v3"
)

// Canonical header keys, listed in emission order.
const (
	KeyRecordType   = "type"
	KeyRecordID     = "record_id"
	KeySourceID     = "source_id"
	KeySourceHandle = "source_handle"
	KeyCategory     = "category"
	KeyPrivate      = "private"
)

// RecordTypeMarker is the value emitted under KeyRecordType.
const RecordTypeMarker = "genealogy-note"

// CanonicalKeys returns the canonical header keys in emission order.
func CanonicalKeys() []string {
	return []string{KeyRecordType, KeyRecordID, KeySourceID, KeySourceHandle, KeyCategory, KeyPrivate}
}

// IsCanonicalKey reports whether key may be aliased.
func IsCanonicalKey(key string) bool {
	for _, k := range CanonicalKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// ErrDuplicateHeaderKey indicates two header fields would share one name.
var ErrDuplicateHeaderKey = errors.New("duplicate header key")

// Aliases maps canonical header keys to user-chosen names.
type Aliases map[string]string

// Validate checks that only canonical keys are aliased and that no two
// canonical keys, aliased or not, resolve to the same header name.
func (a Aliases) Validate() error {
	for key := range a {
		if !IsCanonicalKey(key) {
			return fmt.Errorf("unknown property alias key %q, expected one of %s", key, strings.Join(CanonicalKeys(), ", "))
		}
	}
	owners := make(map[string]string, len(a))
	for _, key := range CanonicalKeys() {
		name := a.Resolve(key)
		if other, ok := owners[name]; ok {
			return fmt.Errorf("property aliases %q and %q map to the same name %q", other, key, name)
		}
		owners[name] = key
	}
	return nil
}

// Resolve returns the configured name for a canonical key, or the key itself.
func (a Aliases) Resolve(key string) string {
	if alias := strings.TrimSpace(a[key]); alias != "" {
		return alias
	}
	return key
}

// BuildHeader assembles the ordered header of a note. Optional fields are
// omitted when empty; the private flag is only emitted when set.
func BuildHeader(note domain.Note, internalID string, aliases Aliases) []domain.HeaderField {
	header := []domain.HeaderField{
		{Key: aliases.Resolve(KeyRecordType), Value: RecordTypeMarker},
		{Key: aliases.Resolve(KeyRecordID), Value: internalID},
	}
	if id := strings.TrimSpace(note.SourceID); id != "" {
		header = append(header, domain.HeaderField{Key: aliases.Resolve(KeySourceID), Value: id})
	}
	header = append(header, domain.HeaderField{Key: aliases.Resolve(KeySourceHandle), Value: note.SourceHandle})
	if category := noteCategory(note); category != "" {
		header = append(header, domain.HeaderField{Key: aliases.Resolve(KeyCategory), Value: category})
	}
	if note.Private {
		header = append(header, domain.HeaderField{Key: aliases.Resolve(KeyPrivate), Value: true})
	}
	return header
}

// noteCategory returns the label of a known note type, or the raw type.
func noteCategory(note domain.Note) string {
	if label, ok := CategoryLabel(note.RecordType); ok {
		return label
	}
	return strings.TrimSpace(note.RecordType)
}

// Render serializes a record as YAML frontmatter followed by its body.
// Header order is preserved. Duplicate keys fail with ErrDuplicateHeaderKey.
func Render(record domain.MaterializedRecord) (string, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	seen := make(map[string]bool, len(record.Header))
	for _, field := range record.Header {
		if seen[field.Key] {
			return "", fmt.Errorf("%w: %s", ErrDuplicateHeaderKey, field.Key)
		}
		seen[field.Key] = true
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: field.Key}
		value := &yaml.Node{}
		if err := value.Encode(field.Value); err != nil {
			return "", fmt.Errorf("failed to encode header field %s: %w", field.Key, err)
		}
		mapping.Content = append(mapping.Content, key, value)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}
	buf.WriteString("---\n")

	if record.Body != "" {
		buf.WriteString("\n")
		buf.WriteString(record.Body)
		if !strings.HasSuffix(record.Body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

// ParseHeader reads the frontmatter of a rendered note back into a map.
// It returns an empty map when the note has no frontmatter.
func ParseHeader(content string) (map[string]any, string, error) {
	out := make(map[string]any)
	if !strings.HasPrefix(content, "---\n") {
		return out, content, nil
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return out, content, nil
	}
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &out); err != nil {
		return nil, "", fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	body := strings.TrimPrefix(rest[end+len("\n---\n"):], "\n")
	return out, body, nil
}
