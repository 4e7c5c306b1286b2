package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/storymig/internal/content"
	"github.com/contentops/storymig/internal/core"
	"github.com/contentops/storymig/internal/model"
)

func decodeOne(t *testing.T, l *Loader, src string) model.Migration {
	t.Helper()
	loaded, err := l.Decode([]byte(src), "test.yaml")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	return loaded[0].Migration
}

func TestLoader_DecodeComponent(t *testing.T) {
	m := decodeOne(t, New(nil), `
type: create-component
component:
  name: hero
  display_name: Hero
  is_nestable: true
  component_group_name: Layout
  fields:
    title:
      type: text
      required: true
      max_length: 80
    image:
      type: asset
      filetypes: [images]
    cta:
      type: bloks
      restrict_components: true
      component_whitelist: [button]
      tooltip: true
  tabs:
    general: [title, cta]
    media: [image]
`)
	cc, ok := m.(model.CreateComponent)
	require.True(t, ok, "got %T", m)

	spec := cc.Component
	assert.Equal(t, "hero", spec.Name)
	assert.True(t, spec.IsNestable)
	assert.Equal(t, "Layout", spec.ComponentGroupName)

	require.Len(t, spec.Fields, 3)
	assert.Equal(t, []string{"title", "image", "cta"}, []string{spec.Fields[0].Key, spec.Fields[1].Key, spec.Fields[2].Key})
	assert.Equal(t, 80, *spec.Fields[0].Field.MaxLength)
	assert.Equal(t, map[string]any{"tooltip": true}, spec.Fields[2].Field.Extra)

	assert.Equal(t, []string{"title", "cta", "image"}, spec.Tabs.Order())
}

func TestLoader_DecodeEveryType(t *testing.T) {
	docs := map[model.Type]string{
		model.TypeCreateComponentGroup:  "groups: [{name: Content}]",
		model.TypeUpdateComponentGroup:  "group: Content\nname: Copy",
		model.TypeDeleteComponentGroup:  "group: Content",
		model.TypeCreateComponent:       "component: {name: hero}",
		model.TypeUpdateComponent:       "name: hero\nis_root: true",
		model.TypeDeleteComponent:       "id: 12",
		model.TypeCreateStory:           "story: {name: Home, content: {component: page}}",
		model.TypeUpdateStory:           "slug: home\ncontent: {title: New}",
		model.TypeDeleteStory:           "id: 3",
		model.TypeCreateDatasource:      "datasource: {name: Colors, slug: colors, entries: [{name: Red, value: red}]}",
		model.TypeUpdateDatasource:      "id: 5\nentries: [{name: Blue, value: blue}]",
		model.TypeDeleteDatasource:      "id: 5",
		model.TypeCreateDatasourceEntry: "datasource_id: 5\nentry: {name: Red, value: red}",
		model.TypeUpdateDatasourceEntry: "id: 9\nentry: {name: Crimson, value: red}",
		model.TypeDeleteDatasourceEntry: "id: 9",
		model.TypeTransformEntries:      "component: cta\ntransform: trim-strings",
	}
	require.Len(t, docs, len(model.Types))

	l := New(nil)
	for typ, body := range docs {
		t.Run(string(typ), func(t *testing.T) {
			m := decodeOne(t, l, "type: "+string(typ)+"\n"+body)
			assert.Equal(t, typ, m.Type())
		})
	}
}

func TestLoader_UpdateComponentFlags(t *testing.T) {
	m := decodeOne(t, New(nil), "type: update-component\nname: hero\nis_root: false\n")
	uc := m.(model.UpdateComponent)
	require.NotNil(t, uc.IsRoot)
	assert.False(t, *uc.IsRoot)
	assert.Nil(t, uc.IsNestable)
	assert.Nil(t, uc.DisplayName)
}

func TestLoader_MultiDocument(t *testing.T) {
	loaded, err := New(nil).Decode([]byte(`
type: create-component-group
groups: [{name: Content}]
---
type: delete-story
slug: old
`), "batch.yaml")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "batch.yaml", loaded[0].Name())
	assert.Equal(t, "batch.yaml#1", loaded[1].Name())
	assert.Equal(t, model.TypeDeleteStory, loaded[1].Migration.Type())
}

func TestLoader_JSONDocument(t *testing.T) {
	m := decodeOne(t, New(nil), `{"type": "delete-component", "name": "hero"}`)
	assert.Equal(t, model.DeleteComponent{Name: "hero"}, m)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", "no migration found"},
		{"not a mapping", "- a\n- b", "must be a mapping"},
		{"no type", "name: x", "has no type"},
		{"unknown type", "type: explode", "unsupported migration type"},
		{"missing required", "type: update-component-group\ngroup: Content", `"required"`},
		{"delete without ref", "type: delete-component", "required_without"},
		{"bad slug", "type: create-datasource\ndatasource: {name: Colors, slug: Bad Slug}", `"slug"`},
		{"unknown field type", "type: create-component\ncomponent: {name: x, fields: {a: {type: wat}}}", `unknown type "wat"`},
		{"tab references undeclared", "type: create-component\ncomponent: {name: x, fields: {a: {type: text}}, tabs: {main: [b]}}", `undeclared field "b"`},
		{"tabs as list", "type: create-component\ncomponent: {name: x, tabs: [a]}", "expected a mapping"},
		{"transform and operations", "type: transform-entries\ncomponent: cta\ntransform: trim-strings\noperations: [{op: remove, field: a}]", "mutually exclusive"},
		{"no transform", "type: transform-entries\ncomponent: cta", "one of transform or operations"},
		{"unknown transform", "type: transform-entries\ncomponent: cta\ntransform: nope", `unknown transform "nope"`},
		{"bad op", "type: transform-entries\ncomponent: cta\noperations: [{op: explode, field: a}]", `"oneof"`},
		{"rename without target", "type: transform-entries\ncomponent: cta\noperations: [{op: rename, field: a}]", "needs a target"},
	}
	l := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Decode([]byte(tt.src), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}

func TestLoader_ResolvesTransforms(t *testing.T) {
	reg := core.NewTransformRegistry()
	called := false
	require.NoError(t, reg.Register("mark", func(_ context.Context, c *content.Component) error {
		called = true
		return nil
	}))
	l := New(reg)

	m := decodeOne(t, l, "type: transform-entries\ncomponent: cta\ntransform: mark")
	te := m.(model.TransformEntries)
	require.NotNil(t, te.Transform)
	require.NoError(t, te.Transform(context.Background(), &content.Component{Name: "cta"}))
	assert.True(t, called)

	m = decodeOne(t, l, `
type: transform-entries
component: cta
starts_with: blog/
operations:
  - {op: set, field: style, value: primary}
  - {op: rename, field: label, to: text}
`)
	te = m.(model.TransformEntries)
	assert.Equal(t, "blog/", te.StartsWith)
	require.NotNil(t, te.Transform)

	c := &content.Component{Name: "cta"}
	c.Set("label", "Go")
	require.NoError(t, te.Transform(context.Background(), c))
	assert.Equal(t, "primary", c.String("style"))
	assert.Equal(t, "Go", c.String("text"))
}

func TestLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "001_groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte("type: create-component-group\ngroups: [{name: Content}]\n"), 0644))

	loaded, err := New(nil).LoadFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, path, loaded[0].Source)

	_, err = New(nil).LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read migration file")
}
