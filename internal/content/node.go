// Package content models a story's nested content tree as a closed set of
// node variants. Raw JSON is classified once by Parse; everything downstream
// (the tree walker, user transforms) works on typed nodes and Encode turns
// them back into the wire shape.
//
// INVARIANTS:
// - Every node carrying a "component" key is a *Component.
// - A plain object that is an array element is an *Object; elsewhere it
//   stays a Value and is not descended.
// - A rich-text document is {type:"doc", content:[...]}; only its direct
//   children of shape {type:"blok", attrs:{body:...}} hold walkable nodes.
// - Encode never mutates the raw maps Parse was given.
package content

import (
	"context"
	"fmt"
	"sort"
)

// Node is one of Value, *List, *Object, *Component, *RichText.
type Node interface {
	isNode()
}

// Value is a leaf: scalars, and plain objects held directly by a field.
type Value struct {
	V any
}

// List is an array of nodes.
type List struct {
	Items []Node
}

// Object is a plain array element without a component key. Its fields are
// walkable.
type Object struct {
	Fields map[string]Node
}

// Component is a content node with a component discriminator.
type Component struct {
	Name   string
	Fields map[string]Node
}

// RichText is a rich-text document with embedded component blocks.
type RichText struct {
	Doc    map[string]any
	Blocks []*Block
}

// Block is an embedded body at position Index of the document content.
type Block struct {
	Index int
	Body  Node
}

func (Value) isNode()      {}
func (*List) isNode()      {}
func (*Object) isNode()    {}
func (*Component) isNode() {}
func (*RichText) isNode()  {}

// TransformFunc mutates a matched component node in place.
type TransformFunc func(ctx context.Context, c *Component) error

// Parse classifies a story content root. The root must carry a component name.
func Parse(root map[string]any) (*Component, error) {
	if root == nil {
		return nil, fmt.Errorf("content root is empty")
	}
	c, ok := parseValue(root).(*Component)
	if !ok {
		return nil, fmt.Errorf("content root has no component key")
	}
	return c, nil
}

func parseValue(v any) Node {
	switch t := v.(type) {
	case []any:
		items := make([]Node, len(t))
		for i, item := range t {
			items[i] = parseItem(item)
		}
		return &List{Items: items}
	case map[string]any:
		if name, ok := t["component"].(string); ok {
			c := &Component{Name: name, Fields: make(map[string]Node, len(t))}
			for k, fv := range t {
				if k == "component" {
					continue
				}
				c.Fields[k] = parseValue(fv)
			}
			return c
		}
		if isRichText(t) {
			return parseRichText(t)
		}
		return Value{V: t}
	default:
		return Value{V: v}
	}
}

func parseItem(v any) Node {
	n := parseValue(v)
	val, ok := n.(Value)
	if !ok {
		return n
	}
	m, ok := val.V.(map[string]any)
	if !ok {
		return n
	}
	o := &Object{Fields: make(map[string]Node, len(m))}
	for k, fv := range m {
		o.Fields[k] = parseValue(fv)
	}
	return o
}

func isRichText(m map[string]any) bool {
	if typ, _ := m["type"].(string); typ != "doc" {
		return false
	}
	_, ok := m["content"].([]any)
	return ok
}

func parseRichText(doc map[string]any) *RichText {
	rt := &RichText{Doc: doc}
	children, _ := doc["content"].([]any)
	for i, child := range children {
		cm, ok := child.(map[string]any)
		if !ok {
			continue
		}
		if typ, _ := cm["type"].(string); typ != "blok" {
			continue
		}
		attrs, ok := cm["attrs"].(map[string]any)
		if !ok {
			continue
		}
		body, ok := attrs["body"]
		if !ok {
			continue
		}
		rt.Blocks = append(rt.Blocks, &Block{Index: i, Body: parseValue(body)})
	}
	return rt
}

// Encode returns the wire form of a node.
func Encode(n Node) any {
	switch t := n.(type) {
	case Value:
		return t.V
	case *List:
		out := make([]any, len(t.Items))
		for i, item := range t.Items {
			out[i] = Encode(item)
		}
		return out
	case *Object:
		out := make(map[string]any, len(t.Fields))
		for k, fn := range t.Fields {
			out[k] = Encode(fn)
		}
		return out
	case *Component:
		return t.Map()
	case *RichText:
		return t.encode()
	default:
		return nil
	}
}

// Map returns the wire form of the component.
func (c *Component) Map() map[string]any {
	out := make(map[string]any, len(c.Fields)+1)
	for k, n := range c.Fields {
		out[k] = Encode(n)
	}
	out["component"] = c.Name
	return out
}

func (rt *RichText) encode() map[string]any {
	out := make(map[string]any, len(rt.Doc))
	for k, v := range rt.Doc {
		out[k] = v
	}
	children, _ := rt.Doc["content"].([]any)
	content := make([]any, len(children))
	copy(content, children)
	for _, b := range rt.Blocks {
		child, _ := children[b.Index].(map[string]any)
		nc := make(map[string]any, len(child))
		for k, v := range child {
			nc[k] = v
		}
		attrs, _ := child["attrs"].(map[string]any)
		na := make(map[string]any, len(attrs))
		for k, v := range attrs {
			na[k] = v
		}
		na["body"] = Encode(b.Body)
		nc["attrs"] = na
		content[b.Index] = nc
	}
	out["content"] = content
	return out
}

// Get returns the wire form of a field, or nil when absent.
func (c *Component) Get(key string) any {
	if key == "component" {
		return c.Name
	}
	n, ok := c.Fields[key]
	if !ok {
		return nil
	}
	return Encode(n)
}

// String returns a string field, or "" when absent or not a string.
func (c *Component) String(key string) string {
	s, _ := c.Get(key).(string)
	return s
}

// Has reports whether the field is present.
func (c *Component) Has(key string) bool {
	if key == "component" {
		return true
	}
	_, ok := c.Fields[key]
	return ok
}

// Set replaces a field. Setting "component" renames the node.
func (c *Component) Set(key string, v any) {
	if key == "component" {
		if name, ok := v.(string); ok {
			c.Name = name
		}
		return
	}
	if c.Fields == nil {
		c.Fields = map[string]Node{}
	}
	c.Fields[key] = parseValue(v)
}

// Delete removes a field.
func (c *Component) Delete(key string) {
	delete(c.Fields, key)
}

// Rename moves a field to a new key. It reports false when from is absent.
func (c *Component) Rename(from, to string) bool {
	n, ok := c.Fields[from]
	if !ok || from == to {
		return ok
	}
	delete(c.Fields, from)
	c.Fields[to] = n
	return true
}

// Keys returns the field keys in sorted order.
func (c *Component) Keys() []string {
	return sortedKeys(c.Fields)
}

// Keys returns the field keys in sorted order.
func (o *Object) Keys() []string {
	return sortedKeys(o.Fields)
}

func sortedKeys(fields map[string]Node) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
