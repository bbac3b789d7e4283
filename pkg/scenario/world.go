// Package scenario loads hand-authored world definitions and seeds them into
// an entity store.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// World is a seed world definition. Location keys are lowercase snake_case and
// are only used inside the file; the store assigns ids.
type World struct {
	Name       string                 `yaml:"name"`
	Start      string                 `yaml:"start"`                // key of the starting location
	Locations  map[string]LocationDef `yaml:"locations"`            // key -> location
	Items      []EntityDef            `yaml:"items,omitempty"`      // placed items
	Characters []EntityDef            `yaml:"characters,omitempty"` // placed characters
	Knowledge  []KnowledgeDef         `yaml:"knowledge,omitempty"`  // lore snippets for retrieval
}

// LocationDef is one location in a world file.
type LocationDef struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description,omitempty"`
	Items       []string                 `yaml:"items,omitempty"`
	State       map[string]any           `yaml:"state,omitempty"` // initial environmental state
	Connections map[string]ConnectionDef `yaml:"connections,omitempty"`
}

// ConnectionDef is either a confirmed link to another location key or a placeholder.
type ConnectionDef struct {
	To          string `yaml:"to,omitempty"`
	Placeholder bool   `yaml:"placeholder,omitempty"`
	Description string `yaml:"description,omitempty"`
	Reverse     string `yaml:"reverse,omitempty"` // name of the edge back, when the target does not declare one
}

// EntityDef is an item or character placed at a location.
type EntityDef struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Location    string   `yaml:"location"`
	Properties  []string `yaml:"properties,omitempty"`
	State       string   `yaml:"state,omitempty"`
}

// KnowledgeDef is a lore snippet. References name keys from the same file.
type KnowledgeDef struct {
	Type      string `yaml:"type"`
	Text      string `yaml:"text"`
	Location  string `yaml:"location,omitempty"`
	Item      string `yaml:"item,omitempty"`
	Character string `yaml:"character,omitempty"`
}

var validKeyRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

// LoadFile reads and validates a world file.
func LoadFile(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file %s: %w", path, err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("world file %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a world definition strictly and validates it.
func Parse(data []byte) (*World, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var w World
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to parse world: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// LocationKeys returns the location keys in sorted order.
func (w *World) LocationKeys() []string {
	keys := make([]string, 0, len(w.Locations))
	for k := range w.Locations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate reports every problem in the definition at once.
func (w *World) Validate() error {
	v := &validator{}

	if strings.TrimSpace(w.Name) == "" {
		v.add("world name is required")
	}
	if len(w.Locations) == 0 {
		v.add("world has no locations")
	}
	if _, ok := w.Locations[w.Start]; !ok {
		v.add("start %q is not a location", w.Start)
	}

	for _, key := range w.LocationKeys() {
		loc := w.Locations[key]
		v.key("location key", key)
		if strings.TrimSpace(loc.Name) == "" {
			v.add("location %s has no name", key)
		}
		for name, conn := range loc.Connections {
			where := fmt.Sprintf("connection %q of %s", name, key)
			switch {
			case strings.TrimSpace(name) == "":
				v.add("location %s has a connection without a name", key)
			case conn.Placeholder && conn.To != "":
				v.add("%s is both a placeholder and a link to %s", where, conn.To)
			case !conn.Placeholder && conn.To == "":
				v.add("%s needs either to or placeholder", where)
			case conn.To == key:
				v.add("%s loops back to itself", where)
			case conn.To != "":
				if _, ok := w.Locations[conn.To]; !ok {
					v.add("%s points to unknown location %s", where, conn.To)
				}
			}
		}
	}

	seen := map[string]bool{}
	for _, group := range []struct {
		kind string
		defs []EntityDef
	}{{"item", w.Items}, {"character", w.Characters}} {
		for _, def := range group.defs {
			v.key(group.kind+" key", def.Key)
			if seen[def.Key] {
				v.add("duplicate key %s", def.Key)
			}
			seen[def.Key] = true
			if strings.TrimSpace(def.Name) == "" {
				v.add("%s %s has no name", group.kind, def.Key)
			}
			if _, ok := w.Locations[def.Location]; !ok {
				v.add("%s %s is at unknown location %q", group.kind, def.Key, def.Location)
			}
		}
	}

	for i, k := range w.Knowledge {
		if strings.TrimSpace(k.Text) == "" {
			v.add("knowledge #%d has no text", i+1)
		}
		if k.Location != "" {
			if _, ok := w.Locations[k.Location]; !ok {
				v.add("knowledge #%d refers to unknown location %s", i+1, k.Location)
			}
		}
		if k.Item != "" && !w.hasEntity(w.Items, k.Item) {
			v.add("knowledge #%d refers to unknown item %s", i+1, k.Item)
		}
		if k.Character != "" && !w.hasEntity(w.Characters, k.Character) {
			v.add("knowledge #%d refers to unknown character %s", i+1, k.Character)
		}
	}

	return v.err()
}

func (w *World) hasEntity(defs []EntityDef, key string) bool {
	for _, def := range defs {
		if def.Key == key {
			return true
		}
	}
	return false
}

type validator struct {
	errs []error
}

func (v *validator) add(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) key(field, key string) {
	if !validKeyRegex.MatchString(key) {
		v.add("%s %q should be lowercase snake_case", field, key)
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid world: %w", errors.Join(v.errs...))
}
