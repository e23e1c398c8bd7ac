package materialize

import (
	"strings"

	"github.com/sha1n/mcp-lineage-server/internal/domain"
)

// Placeholder names for entities without a usable name.
const (
	UnknownPerson = "Unknown Person"
	UnknownEvent  = "Unknown Event"
	UnknownPlace  = "Unknown Place"
)

// ReferenceMap maps a note key to the first entity that referenced it.
type ReferenceMap map[string]domain.EntityRef

// BuildReferenceMap scans people, then events, then places. The first
// entity to reference a note key wins; later references are ignored.
func BuildReferenceMap(people []domain.Person, events []domain.Event, places []domain.Place) ReferenceMap {
	refs := make(ReferenceMap)

	for _, p := range people {
		refs.addAll(p.NoteRefs, nameOr(p.Name, UnknownPerson), domain.KindPerson)
	}
	for _, e := range events {
		refs.addAll(e.NoteRefs, nameOr(e.Label, UnknownEvent), domain.KindEvent)
	}
	for _, p := range places {
		refs.addAll(p.NoteRefs, nameOr(p.Name, UnknownPlace), domain.KindPlace)
	}
	return refs
}

// Lookup returns the entity referencing key, or nil.
func (r ReferenceMap) Lookup(key string) *domain.EntityRef {
	ref, ok := r[key]
	if !ok {
		return nil
	}
	return &ref
}

// Annotate sets Referencing on every note whose handle is mapped and that
// does not already carry a referencing entity.
func (r ReferenceMap) Annotate(notes []domain.Note) {
	for i := range notes {
		if notes[i].Referencing == nil {
			notes[i].Referencing = r.Lookup(notes[i].SourceHandle)
		}
	}
}

func (r ReferenceMap) addAll(keys []string, name string, kind domain.EntityKind) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, seen := r[key]; seen {
			continue
		}
		r[key] = domain.EntityRef{Name: name, Kind: kind}
	}
}

func nameOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}
