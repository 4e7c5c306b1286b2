// Package loader reads migration files into model.Migration values.
//
// A file holds one or more YAML (or JSON) documents, each a mapping with a
// "type" discriminant. Every decoded migration is validated, and
// transform-entries migrations get their transform function resolved before
// they leave the loader.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/contentops/storymig/internal/core"
	"github.com/contentops/storymig/internal/model"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// Loaded is one migration and where it came from.
type Loaded struct {
	Source    string
	Index     int
	Migration model.Migration
}

// Name identifies the migration in logs and the run journal.
func (l Loaded) Name() string {
	if l.Index == 0 {
		return l.Source
	}
	return fmt.Sprintf("%s#%d", l.Source, l.Index)
}

// Loader decodes and validates migrations.
type Loader struct {
	validate   *validator.Validate
	transforms *core.TransformRegistry
}

// New creates a loader resolving transform names against transforms.
func New(transforms *core.TransformRegistry) *Loader {
	if transforms == nil {
		transforms = core.NewTransformRegistry()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return &Loader{validate: v, transforms: transforms}
}

// LoadFile reads every migration in path.
func (l *Loader) LoadFile(path string) ([]Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration file: %w", err)
	}
	return l.Decode(data, path)
}

// Decode parses every document in data. source names the origin in errors.
func (l *Loader) Decode(data []byte, source string) ([]Loaded, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var out []Loaded
	for i := 0; ; i++ {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse document %d: %w", source, i, err)
		}
		m, err := l.decodeDocument(&doc)
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, i, err)
		}
		out = append(out, Loaded{Source: source, Index: i, Migration: m})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: no migration found", source)
	}
	return out, nil
}

func (l *Loader) decodeDocument(doc *yaml.Node) (model.Migration, error) {
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("migration must be a mapping")
	}

	var head struct {
		Type model.Type `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return nil, err
	}
	if head.Type == "" {
		return nil, fmt.Errorf("migration has no type")
	}

	m, err := decodeVariant(head.Type, node)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(m); err != nil {
		return nil, err
	}
	if t, ok := m.(model.TransformEntries); ok {
		resolved, err := l.resolveTransform(t)
		if err != nil {
			return nil, err
		}
		m = resolved
	}
	return m, nil
}

// decodeVariant decodes node into the variant named by t. Variants are
// returned by value, the form the runner dispatches on.
func decodeVariant(t model.Type, node *yaml.Node) (model.Migration, error) {
	switch t {
	case model.TypeCreateComponentGroup:
		return decodeAs[model.CreateComponentGroup](node)
	case model.TypeUpdateComponentGroup:
		return decodeAs[model.UpdateComponentGroup](node)
	case model.TypeDeleteComponentGroup:
		return decodeAs[model.DeleteComponentGroup](node)
	case model.TypeCreateComponent:
		return decodeAs[model.CreateComponent](node)
	case model.TypeUpdateComponent:
		return decodeAs[model.UpdateComponent](node)
	case model.TypeDeleteComponent:
		return decodeAs[model.DeleteComponent](node)
	case model.TypeCreateStory:
		return decodeAs[model.CreateStory](node)
	case model.TypeUpdateStory:
		return decodeAs[model.UpdateStory](node)
	case model.TypeDeleteStory:
		return decodeAs[model.DeleteStory](node)
	case model.TypeCreateDatasource:
		return decodeAs[model.CreateDatasource](node)
	case model.TypeUpdateDatasource:
		return decodeAs[model.UpdateDatasource](node)
	case model.TypeDeleteDatasource:
		return decodeAs[model.DeleteDatasource](node)
	case model.TypeCreateDatasourceEntry:
		return decodeAs[model.CreateDatasourceEntry](node)
	case model.TypeUpdateDatasourceEntry:
		return decodeAs[model.UpdateDatasourceEntry](node)
	case model.TypeDeleteDatasourceEntry:
		return decodeAs[model.DeleteDatasourceEntry](node)
	case model.TypeTransformEntries:
		return decodeAs[model.TransformEntries](node)
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedMigration, t)
	}
}

func decodeAs[T model.Migration](node *yaml.Node) (model.Migration, error) {
	var v T
	if err := node.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", v.Type(), err)
	}
	return v, nil
}

// Validate checks struct tags and the field definitions a migration declares.
func (l *Loader) Validate(m model.Migration) error {
	if err := l.validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid %s: %s", m.Type(), strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid %s: %w", m.Type(), err)
	}

	switch v := m.(type) {
	case model.CreateComponent:
		if err := validateFields(v.Component.Fields); err != nil {
			return err
		}
		return validateTabs(v.Component.Fields, v.Component.Tabs)
	case model.UpdateComponent:
		return validateFields(v.Fields)
	case model.TransformEntries:
		if v.TransformName != "" && len(v.Operations) > 0 {
			return fmt.Errorf("invalid %s: transform and operations are mutually exclusive", v.Type())
		}
		if v.TransformName == "" && len(v.Operations) == 0 && v.Transform == nil {
			return fmt.Errorf("invalid %s: one of transform or operations is required", v.Type())
		}
	}
	return nil
}

func validateFields(fields model.Fields) error {
	for _, nf := range fields {
		if err := nf.Field.Validate(nf.Key); err != nil {
			return err
		}
	}
	return nil
}

// validateTabs checks that a new component's tabs only name declared fields.
func validateTabs(fields model.Fields, tabs model.Tabs) error {
	for _, tab := range tabs {
		for _, k := range tab.Keys {
			if _, ok := fields.Get(k); !ok {
				return fmt.Errorf("tab %q references undeclared field %q", tab.Name, k)
			}
		}
	}
	return nil
}

func (l *Loader) resolveTransform(t model.TransformEntries) (model.TransformEntries, error) {
	if t.Transform != nil {
		return t, nil
	}
	if t.TransformName != "" {
		fn, ok := l.transforms.Lookup(t.TransformName)
		if !ok {
			return t, fmt.Errorf("unknown transform %q (registered: %s)", t.TransformName, strings.Join(l.transforms.Names(), ", "))
		}
		t.Transform = fn
		return t, nil
	}
	fn, err := core.CompileOperations(t.Operations)
	if err != nil {
		return t, err
	}
	t.Transform = fn
	return t, nil
}
