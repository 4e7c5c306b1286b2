package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/contentops/storymig/internal/content"
	"github.com/contentops/storymig/internal/model"
)

// TransformRegistry maps transform names to functions that migration files
// can refer to.
type TransformRegistry struct {
	transforms map[string]content.TransformFunc
	mu         sync.RWMutex
}

// NewTransformRegistry creates a registry preloaded with the built-in transforms.
func NewTransformRegistry() *TransformRegistry {
	r := &TransformRegistry{transforms: make(map[string]content.TransformFunc)}
	r.transforms["trim-strings"] = trimStrings
	return r
}

// Register adds a transform. Names are unique.
func (r *TransformRegistry) Register(name string, fn content.TransformFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("transform name and function are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transforms[name]; exists {
		return fmt.Errorf("transform %q already registered", name)
	}
	r.transforms[name] = fn
	return nil
}

// Lookup returns the transform registered under name.
func (r *TransformRegistry) Lookup(name string) (content.TransformFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.transforms[name]
	return fn, ok
}

// Names returns all registered names, sorted.
func (r *TransformRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompileOperations turns declarative field operations into one transform.
// Operations apply in order on every matched node.
func CompileOperations(ops []model.FieldOp) (content.TransformFunc, error) {
	if len(ops) == 0 {
		return nil, fmt.Errorf("no operations given")
	}
	for i, op := range ops {
		switch op.Op {
		case model.FieldOpSet, model.FieldOpRemove:
		case model.FieldOpRename:
			if op.To == "" {
				return nil, fmt.Errorf("operation %d: rename of %q needs a target", i, op.Field)
			}
		default:
			return nil, fmt.Errorf("operation %d: unknown op %q", i, op.Op)
		}
		if op.Field == "" {
			return nil, fmt.Errorf("operation %d: field is required", i)
		}
	}

	ops = append([]model.FieldOp(nil), ops...)
	return func(_ context.Context, c *content.Component) error {
		for _, op := range ops {
			switch op.Op {
			case model.FieldOpSet:
				c.Set(op.Field, op.Value)
			case model.FieldOpRename:
				c.Rename(op.Field, op.To)
			case model.FieldOpRemove:
				c.Delete(op.Field)
			}
		}
		return nil
	}, nil
}

func trimStrings(_ context.Context, c *content.Component) error {
	for _, k := range c.Keys() {
		if v, ok := c.Fields[k].(content.Value); ok {
			if s, ok := v.V.(string); ok && s != strings.TrimSpace(s) {
				c.Set(k, strings.TrimSpace(s))
			}
		}
	}
	return nil
}
