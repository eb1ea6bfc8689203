package serialz

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Variants accepted by Config.Variant.
const (
	VariantPlain  = "plain"
	VariantSchema = "schema"
)

// Config describes an Orchestrator. It is usually decoded from YAML:
//
//	name: api
//	variant: schema
//	schemas: ./schemas
//	requireSchema: false
//	exposeErrors: false
//	itemTimeout: 2s
type Config struct {
	Name          string        `yaml:"name"`
	Variant       string        `yaml:"variant" validate:"omitempty,oneof=plain schema"`
	Schemas       string        `yaml:"schemas" validate:"omitempty,dir"`
	ItemTimeout   time.Duration `yaml:"itemTimeout" validate:"gte=0"`
	RequireSchema bool          `yaml:"requireSchema"`
	ExposeErrors  bool          `yaml:"exposeErrors"`
}

// DefaultName is used when Config.Name is empty.
const DefaultName = "serialz"

// Validate checks the configuration. A schema variant without a schema
// directory is a configuration error.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return configError("%w", err)
	}
	if c.Variant == VariantSchema && c.Schemas == "" {
		return configError("schemas directory is required for the schema variant")
	}
	if c.RequireSchema && c.Variant != VariantSchema {
		return configError("requireSchema needs the schema variant")
	}
	return nil
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configError("reading config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration document.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, configError("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromConfig builds an Orchestrator, loading the schema registry when the
// schema variant is selected. All configuration errors surface here, before
// any request is served.
func FromConfig(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	formatter := NewFormatter()
	if cfg.Variant == VariantSchema {
		registry, err := LoadRegistry(cfg.Schemas)
		if err != nil {
			return nil, err
		}
		formatter.WithRegistry(registry).RequireSchema(cfg.RequireSchema)
	}

	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	return NewOrchestrator(name, formatter).
		WithTimeout(cfg.ItemTimeout).
		WithExposeErrors(cfg.ExposeErrors), nil
}
