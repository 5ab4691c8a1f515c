package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

// Format is a config file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for a config file with an unsupported extension.
var ErrUnknownFormat = errors.New("config: unknown config format")

//go:embed schema.json
var schemaJSON string

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("config.v1.schema.json", schemaJSON)
})

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// LoadAndValidate loads, validates and defaults the configuration at path.
func LoadAndValidate(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	return Parse(data, format)
}

// LoadOrDefault behaves like LoadAndValidate but returns Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return LoadAndValidate(path)
}

// Parse decodes data in the given format, validates it against the schema and applies defaults.
func Parse(data []byte, format Format) (*Config, error) {
	raw, err := decodeGeneric(data, format)
	if err != nil {
		return nil, err
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var cfg Config
	if err := decodeInto(data, format, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	cfg.DecoderOrder, err = decoderKeyOrder(data, format)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read decoder key order: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// decodeGeneric decodes the document into plain JSON values for schema validation.
func decodeGeneric(data []byte, format Format) (any, error) {
	var doc any

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("config: invalid YAML: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("config: invalid TOML: %w", err)
		}
	case FormatJSON:
		v, err := decodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("config: invalid JSON: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	// An empty YAML document decodes to nil.
	if doc == nil {
		doc = map[string]any{}
	}

	// Round-trip through JSON so numbers and maps have the shapes the validator expects.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("config: normalize document: %w", err)
	}

	return decodeJSON(normalized)
}

// decodeJSON keeps numbers as json.Number, the shape the validator expects.
func decodeJSON(data []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}

	return v, nil
}

func decodeInto(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, cfg)
	case FormatTOML:
		return toml.Unmarshal(data, cfg)
	case FormatJSON:
		return json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}
