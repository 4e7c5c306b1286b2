package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Tab is a named, ordered group of field keys.
type Tab struct {
	Name string
	Keys []string
}

// Tabs is the ordered tab layout of a component. Declaration order is
// authoritative for field ordering, so it decodes from a YAML mapping while
// keeping key order.
type Tabs []Tab

// UnmarshalYAML decodes a mapping of tab name -> list of field keys.
func (t *Tabs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("tabs: expected a mapping, got %s", kindName(node.Kind))
	}
	out := make(Tabs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var keys []string
		if err := node.Content[i+1].Decode(&keys); err != nil {
			return fmt.Errorf("tabs: %s: %w", node.Content[i].Value, err)
		}
		out = append(out, Tab{Name: node.Content[i].Value, Keys: keys})
	}
	*t = out
	return nil
}

// MarshalJSON writes the tabs as an object in declaration order.
func (t Tabs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tab := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(tab.Name)
		keys, err := json.Marshal(tab.Keys)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(keys)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Order returns the flattened field keys across all tabs, in declaration order.
func (t Tabs) Order() []string {
	var order []string
	for _, tab := range t {
		order = append(order, tab.Keys...)
	}
	return order
}

// NamedField is a field definition with its schema key.
type NamedField struct {
	Key   string
	Field Field
}

// Fields is an ordered set of field definitions as declared in a migration.
type Fields []NamedField

// UnmarshalYAML decodes a mapping of field key -> definition in order.
func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields: expected a mapping, got %s", kindName(node.Kind))
	}
	out := make(Fields, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var field Field
		if err := node.Content[i+1].Decode(&field); err != nil {
			return fmt.Errorf("fields: %s: %w", node.Content[i].Value, err)
		}
		out = append(out, NamedField{Key: node.Content[i].Value, Field: field})
	}
	*f = out
	return nil
}

// MarshalJSON writes the fields as an object in declaration order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nf := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(nf.Key)
		val, err := json.Marshal(nf.Field)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the field declared under key.
func (f Fields) Get(key string) (Field, bool) {
	for _, nf := range f {
		if nf.Key == key {
			return nf.Field, true
		}
	}
	return Field{}, false
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
