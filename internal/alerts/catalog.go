// Package alerts resolves result codes to user-facing messages.
package alerts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

const unknownKey = "unknown"

// Message is a title/body pair shown to the user.
type Message struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// Catalog maps codes to messages.
type Catalog struct {
	entries map[string]Message
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultMessages)
	if err != nil {
		panic(fmt.Sprintf("alerts: embedded catalog: %v", err))
	}
	return c
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	entries := map[string]Message{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	return &Catalog{entries: entries}, nil
}

// Load returns the embedded catalog with entries from path layered on top.
// An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read messages %s: %w", path, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.Merge(override)
	return c, nil
}

// Merge replaces entries in c with those from other.
func (c *Catalog) Merge(other *Catalog) {
	for k, v := range other.entries {
		c.entries[k] = v
	}
}

// Lookup resolves code. Unmapped codes yield the generic message with the raw
// code substituted in.
func (c *Catalog) Lookup(code string) Message {
	if m, ok := c.entries[code]; ok {
		return m
	}

	fallback, ok := c.entries[unknownKey]
	if !ok {
		return Message{Title: "Error", Message: code}
	}
	if strings.Contains(fallback.Message, "%s") {
		fallback.Message = fmt.Sprintf(fallback.Message, code)
	}
	return fallback
}

// Has reports whether code has its own entry.
func (c *Catalog) Has(code string) bool {
	_, ok := c.entries[code]
	return ok
}
