package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultMenu []byte

type menuFile struct {
	Items []Item `yaml:"items"`
}

// Default returns the built-in coffee menu.
func Default() *Catalog {
	c, err := Parse(defaultMenu)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default menu is invalid: %v", err))
	}
	return c
}

// Load reads a YAML menu from path. An empty path yields the default menu.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML menu document. Unknown fields are rejected so that a
// misspelt price key does not silently become a zero price.
func Parse(raw []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var doc menuFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(doc.Items)
}
