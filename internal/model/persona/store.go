package persona

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a label or id has no registry entry.
var ErrNotFound = errors.New("persona not found")

// Store exposes persona retrieval for the desk service and HTTP handlers.
type Store interface {
	List() []Persona
	FindByLabel(label string) (Persona, bool)
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice. It is read-only once
// built, so it is safe for concurrent use.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns personas in their configured order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByLabel looks up a persona by the label shown in the selector.
func (s *MemoryStore) FindByLabel(label string) (Persona, bool) {
	for _, item := range s.items {
		if item.Label == label {
			return item, true
		}
	}
	return Persona{}, false
}

// FindByID looks up a persona by its slug.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

type fileFormat struct {
	Personas []Persona `yaml:"personas"`
}

// LoadFile reads a persona registry from a YAML file of the form
//
//	personas:
//	  - id: 1p-inbound
//	    label: 1P INBOUND App
//	    title: 1P INBOUND AUTO APP ASSISTANT
//	    assistant_id: asst_...
func LoadFile(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse persona file: %w", err)
	}
	if len(doc.Personas) == 0 {
		return nil, fmt.Errorf("persona file %s defines no personas", path)
	}

	seenLabels := make(map[string]struct{}, len(doc.Personas))
	seenIDs := make(map[string]struct{}, len(doc.Personas))
	for i, p := range doc.Personas {
		if strings.TrimSpace(p.Label) == "" || strings.TrimSpace(p.AssistantID) == "" {
			return nil, fmt.Errorf("persona #%d: label and assistant_id are required", i+1)
		}
		if p.Title == "" {
			doc.Personas[i].Title = p.Label
		}
		if p.ID == "" {
			doc.Personas[i].ID = slugify(p.Label)
		}
		if _, dup := seenLabels[p.Label]; dup {
			return nil, fmt.Errorf("persona #%d: duplicate label %q", i+1, p.Label)
		}
		if _, dup := seenIDs[doc.Personas[i].ID]; dup {
			return nil, fmt.Errorf("persona #%d: duplicate id %q", i+1, doc.Personas[i].ID)
		}
		seenLabels[p.Label] = struct{}{}
		seenIDs[doc.Personas[i].ID] = struct{}{}
	}

	return doc.Personas, nil
}

// slugify keeps ASCII letters and digits, lowercased, joined by dashes.
// Emoji shortcodes such as ":racing_car:" are dropped.
func slugify(label string) string {
	var b strings.Builder
	inShortcode := false
	pendingDash := false
	for _, r := range label {
		switch {
		case r == ':':
			inShortcode = !inShortcode
			pendingDash = b.Len() > 0
		case inShortcode:
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash {
				b.WriteByte('-')
				pendingDash = false
			}
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pendingDash {
				b.WriteByte('-')
				pendingDash = false
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			pendingDash = b.Len() > 0
		}
	}
	return b.String()
}
