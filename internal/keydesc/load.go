package keydesc

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed default_keys.toml
var defaultResource []byte

//go:embed key_descriptions.schema.json
var resourceSchema []byte

// resourceFile is the on-disk shape of a key description resource.
// Entries is a flat list alternating integer key code and description.
type resourceFile struct {
	Entries []any `toml:"entries" json:"entries"`
	Forced  []int `toml:"forced" json:"forced"`
}

// Load reads a key description resource by extension: .toml or .json.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key descriptions: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return parseTOML(data)
	case ".json":
		return parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported key description format: %s", filepath.Ext(path))
	}
}

// Default returns the bundled key description table.
func Default() *Table {
	t, err := parseTOML(defaultResource)
	if err != nil {
		// The bundled resource is compiled in; a parse failure is a
		// packaging bug, not a runtime condition.
		panic(fmt.Sprintf("keydesc: bundled resource invalid: %v", err))
	}
	return t
}

func parseTOML(data []byte) (*Table, error) {
	var res resourceFile
	if err := toml.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse key descriptions: %w", err)
	}
	return New(res.Entries, res.Forced), nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("key_descriptions.schema.json", bytes.NewReader(resourceSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("key_descriptions.schema.json")
	})
	return compiledSchema, schemaErr
}

func parseJSON(data []byte) (*Table, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("parse key descriptions: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("validate key descriptions: %w", err)
	}

	var res resourceFile
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse key descriptions: %w", err)
	}
	return New(res.Entries, res.Forced), nil
}
