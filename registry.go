package serialz

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Registry holds named schemas. It is built once at startup and never
// modified afterwards, so lookups need no locking.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry builds a registry from schemas that already carry a Name.
// Duplicate or empty names are configuration errors.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	v := validator.New()
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if s == nil {
			continue
		}
		if s.Name == "" {
			return nil, configError("schema has no name")
		}
		if _, exists := r.schemas[s.Name]; exists {
			return nil, configError("duplicate schema %q", s.Name)
		}
		if err := s.compile(v); err != nil {
			return nil, configError("schema %q: %w", s.Name, err)
		}
		r.schemas[s.Name] = s
	}
	return r, nil
}

// LoadRegistry reads every regular file in dir and registers it under its
// base name without extension. Hidden files and subdirectories are skipped.
// Files are YAML; JSON documents are accepted as YAML.
func LoadRegistry(dir string) (*Registry, error) {
	if dir == "" {
		return nil, configError("schema directory is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, configError("reading schema directory: %w", err)
	}

	var schemas []*Schema
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.Type().IsRegular() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		s, err := decodeSchema(path)
		if err != nil {
			return nil, configError("schema file %s: %w", entry.Name(), err)
		}
		s.Name = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		schemas = append(schemas, s)
	}
	return NewRegistry(schemas...)
}

func decodeSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Schema
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty schema")
		}
		return nil, err
	}
	return &s, nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.schemas)
}
