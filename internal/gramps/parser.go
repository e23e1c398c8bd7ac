// Package gramps parses Gramps XML exports into typed genealogy records.
package gramps

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/sha1n/mcp-lineage-server/internal/domain"
)

// ErrInvalidDocument indicates the primary document is not Gramps XML.
var ErrInvalidDocument = errors.New("invalid Gramps XML document")

// databaseXML is the subset of the Gramps XML schema read by the parser.
// Element names match regardless of the schema namespace version.
type databaseXML struct {
	XMLName xml.Name    `xml:"database"`
	Events  []eventXML  `xml:"events>event"`
	People  []personXML `xml:"people>person"`
	Places  []placeXML  `xml:"places>placeobj"`
	Notes   []noteXML   `xml:"notes>note"`
}

type refXML struct {
	HLink string `xml:"hlink,attr"`
}

type personXML struct {
	Handle   string    `xml:"handle,attr"`
	ID       string    `xml:"id,attr"`
	Names    []nameXML `xml:"name"`
	NoteRefs []refXML  `xml:"noteref"`
}

type nameXML struct {
	Alt      string       `xml:"alt,attr"`
	First    string       `xml:"first"`
	Call     string       `xml:"call"`
	Surnames []surnameXML `xml:"surname"`
}

type surnameXML struct {
	Value string `xml:",chardata"`
	Prim  string `xml:"prim,attr"`
}

type eventXML struct {
	Handle      string   `xml:"handle,attr"`
	ID          string   `xml:"id,attr"`
	Type        string   `xml:"type"`
	Description string   `xml:"description"`
	NoteRefs    []refXML `xml:"noteref"`
}

type placeXML struct {
	Handle   string         `xml:"handle,attr"`
	ID       string         `xml:"id,attr"`
	Title    string         `xml:"ptitle"`
	Names    []placeNameXML `xml:"pname"`
	NoteRefs []refXML       `xml:"noteref"`
}

type placeNameXML struct {
	Value string `xml:"value,attr"`
}

type noteXML struct {
	Handle string `xml:"handle,attr"`
	ID     string `xml:"id,attr"`
	Type   string `xml:"type,attr"`
	Priv   string `xml:"priv,attr"`
	Text   string `xml:"text"`
}

// Parse decodes a Gramps XML document. Notes without a handle are dropped.
func Parse(document string) (*domain.Database, error) {
	var raw databaseXML
	if err := xml.Unmarshal([]byte(document), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	db := &domain.Database{
		Notes:  make([]domain.Note, 0, len(raw.Notes)),
		People: make([]domain.Person, 0, len(raw.People)),
		Events: make([]domain.Event, 0, len(raw.Events)),
		Places: make([]domain.Place, 0, len(raw.Places)),
	}

	for _, n := range raw.Notes {
		if n.Handle == "" {
			continue
		}
		db.Notes = append(db.Notes, domain.Note{
			SourceID:     strings.TrimSpace(n.ID),
			SourceHandle: n.Handle,
			RecordType:   strings.TrimSpace(n.Type),
			Private:      n.Priv == "1",
			Text:         n.Text,
		})
	}

	for _, p := range raw.People {
		db.People = append(db.People, domain.Person{
			Handle:   p.Handle,
			ID:       p.ID,
			Name:     personName(p.Names),
			NoteRefs: hlinks(p.NoteRefs),
		})
	}

	for _, e := range raw.Events {
		label := strings.TrimSpace(e.Description)
		if label == "" {
			label = strings.TrimSpace(e.Type)
		}
		db.Events = append(db.Events, domain.Event{
			Handle:   e.Handle,
			ID:       e.ID,
			Label:    label,
			NoteRefs: hlinks(e.NoteRefs),
		})
	}

	for _, p := range raw.Places {
		db.Places = append(db.Places, domain.Place{
			Handle:   p.Handle,
			ID:       p.ID,
			Name:     placeName(p),
			NoteRefs: hlinks(p.NoteRefs),
		})
	}

	return db, nil
}

// personName formats the primary name as "First Surname". Alternate names
// are used only when no primary name exists.
func personName(names []nameXML) string {
	if len(names) == 0 {
		return ""
	}
	chosen := names[0]
	for _, n := range names {
		if n.Alt != "1" {
			chosen = n
			break
		}
	}

	first := strings.TrimSpace(chosen.First)
	if first == "" {
		first = strings.TrimSpace(chosen.Call)
	}
	return strings.TrimSpace(first + " " + primarySurname(chosen.Surnames))
}

func primarySurname(surnames []surnameXML) string {
	for _, s := range surnames {
		if s.Prim != "0" && strings.TrimSpace(s.Value) != "" {
			return strings.TrimSpace(s.Value)
		}
	}
	for _, s := range surnames {
		if v := strings.TrimSpace(s.Value); v != "" {
			return v
		}
	}
	return ""
}

func placeName(p placeXML) string {
	for _, n := range p.Names {
		if v := strings.TrimSpace(n.Value); v != "" {
			return v
		}
	}
	return strings.TrimSpace(p.Title)
}

func hlinks(refs []refXML) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.HLink != "" {
			out = append(out, r.HLink)
		}
	}
	return out
}
