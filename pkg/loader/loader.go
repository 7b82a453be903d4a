package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Loader turns YAML documents into validated definitions.
type Loader struct {
	registry *registry.Registry
}

// New creates a loader resolving strategy names against reg.
// A nil registry resolves nothing, so only definitions without guards or hooks load.
func New(reg *registry.Registry) *Loader {
	if reg == nil {
		reg = registry.NewRegistry()
	}
	return &Loader{registry: reg}
}

// Parse decodes every document in data.
func (l *Loader) Parse(data []byte) ([]*domain.WorkflowDefinition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var defs []*domain.WorkflowDefinition
	for i := 0; ; i++ {
		var raw map[string]any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse yaml document #%d: %w", i, err)
		}
		if raw == nil {
			continue
		}

		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("document #%d: %w", i, err)
		}
		def, err := l.Compile(doc)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile parses one YAML file.
func (l *Loader) LoadFile(path string) ([]*domain.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defs, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// LoadDir parses every .yaml and .yml file of dir, in lexical order.
// Subdirectories are not visited.
func (l *Loader) LoadDir(dir string) ([]*domain.WorkflowDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	var defs []*domain.WorkflowDefinition
	for _, f := range files {
		loaded, err := l.LoadFile(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, loaded...)
	}
	return defs, nil
}

// Load reads path as a file or, if it is a directory, with LoadDir.
func (l *Loader) Load(path string) ([]*domain.WorkflowDefinition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	return l.LoadFile(path)
}

// Compile resolves strategy names and validates the result.
func (l *Loader) Compile(doc *Document) (*domain.WorkflowDefinition, error) {
	def := &domain.WorkflowDefinition{
		Name:         doc.Name,
		EntityType:   doc.EntityType,
		InitialState: doc.InitialState,
		States:       doc.States,
		Metadata:     doc.Metadata,
		Transitions:  make([]domain.StateTransition, 0, len(doc.Transitions)),
	}

	for i, td := range doc.Transitions {
		t := domain.StateTransition{
			From:     td.From,
			To:       td.To,
			Event:    td.Event,
			Metadata: td.Metadata,
		}
		for _, name := range td.Guards {
			g, err := l.registry.Guard(name)
			if err != nil {
				return nil, fmt.Errorf("workflow %q transition #%d (%s): %w", doc.Name, i, td.Event, err)
			}
			t.Guards = append(t.Guards, g)
		}
		var err error
		if t.Hooks.Before, err = l.hooks(doc.Name, i, td.Event, td.Hooks.Before); err != nil {
			return nil, err
		}
		if t.Hooks.After, err = l.hooks(doc.Name, i, td.Event, td.Hooks.After); err != nil {
			return nil, err
		}
		def.Transitions = append(def.Transitions, t)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (l *Loader) hooks(workflow string, i int, event string, names []string) ([]domain.Hook, error) {
	var hooks []domain.Hook
	for _, name := range names {
		h, err := l.registry.Hook(name)
		if err != nil {
			return nil, fmt.Errorf("workflow %q transition #%d (%s): %w", workflow, i, event, err)
		}
		hooks = append(hooks, h)
	}
	return hooks, nil
}

func decodeDocument(raw map[string]any) (*Document, error) {
	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid workflow document: %w", err)
	}
	return &doc, nil
}

// Marshal renders a definition back to YAML. Unnamed guards and hooks cannot be
// represented and are reported as an error.
func Marshal(def *domain.WorkflowDefinition) ([]byte, error) {
	doc := Document{
		Name:         def.Name,
		EntityType:   def.EntityType,
		InitialState: def.InitialState,
		States:       def.States,
		Metadata:     def.Metadata,
	}
	for i, t := range def.Transitions {
		td := TransitionDocument{
			Event:    t.Event,
			From:     t.From,
			To:       t.To,
			Metadata: t.Metadata,
		}
		for _, g := range t.Guards {
			if g.Name == "" {
				return nil, fmt.Errorf("transition #%d (%s) has an unnamed guard", i, t.Event)
			}
			td.Guards = append(td.Guards, g.Name)
		}
		for _, h := range t.Hooks.Before {
			if h.Name == "" {
				return nil, fmt.Errorf("transition #%d (%s) has an unnamed hook", i, t.Event)
			}
			td.Hooks.Before = append(td.Hooks.Before, h.Name)
		}
		for _, h := range t.Hooks.After {
			if h.Name == "" {
				return nil, fmt.Errorf("transition #%d (%s) has an unnamed hook", i, t.Event)
			}
			td.Hooks.After = append(td.Hooks.After, h.Name)
		}
		doc.Transitions = append(doc.Transitions, td)
	}
	return yaml.Marshal(doc)
}
