package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTabs_KeepDeclarationOrder(t *testing.T) {
	var spec ComponentSpec
	err := yaml.Unmarshal([]byte(`
name: article
tabs:
  settings: [seo, slug]
  general: [title, body]
  media: [image]
`), &spec)
	require.NoError(t, err)

	require.Len(t, spec.Tabs, 3)
	assert.Equal(t, "settings", spec.Tabs[0].Name)
	assert.Equal(t, "general", spec.Tabs[1].Name)
	assert.Equal(t, []string{"seo", "slug", "title", "body", "image"}, spec.Tabs.Order())

	data, err := json.Marshal(spec.Tabs)
	require.NoError(t, err)
	assert.Equal(t, `{"settings":["seo","slug"],"general":["title","body"],"media":["image"]}`, string(data))
}

func TestTabs_RejectsSequence(t *testing.T) {
	var spec ComponentSpec
	err := yaml.Unmarshal([]byte("name: x\ntabs: [a, b]\n"), &spec)
	assert.ErrorContains(t, err, "expected a mapping")
}

func TestFields_KeepDeclarationOrderAndExtras(t *testing.T) {
	var spec ComponentSpec
	err := yaml.Unmarshal([]byte(`
name: article
fields:
  title:
    type: text
    required: true
    max_length: 80
  body:
    type: richtext
    plugin_setting: keep-me
`), &spec)
	require.NoError(t, err)

	require.Len(t, spec.Fields, 2)
	assert.Equal(t, "title", spec.Fields[0].Key)
	assert.Equal(t, "body", spec.Fields[1].Key)

	title, ok := spec.Fields.Get("title")
	require.True(t, ok)
	assert.Equal(t, FieldText, title.Type)
	assert.True(t, title.Required)
	require.NotNil(t, title.MaxLength)
	assert.Equal(t, 80, *title.MaxLength)

	body, _ := spec.Fields.Get("body")
	assert.Equal(t, "keep-me", body.Extra["plugin_setting"])

	_, ok = spec.Fields.Get("missing")
	assert.False(t, ok)
}

func TestField_JSONPreservesUnknownAttributes(t *testing.T) {
	raw := `{"type":"custom","pos":3,"field_type":"color-picker","options_json":{"palette":["#fff"]},"required":true}`

	var f Field
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	assert.Equal(t, FieldCustom, f.Type)
	assert.Equal(t, 3, f.Pos)
	assert.Equal(t, "color-picker", f.FieldType)
	require.Contains(t, f.Extra, "options_json")
	assert.NotContains(t, f.Extra, "type")

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestField_Validate(t *testing.T) {
	max := 10
	lo, hi := 5.0, 1.0

	tests := []struct {
		name    string
		field   Field
		wantErr string
	}{
		{"text ok", Field{Type: FieldText, Regex: "^a+$", MaxLength: &max}, ""},
		{"unknown type", Field{Type: "hologram"}, "unknown type"},
		{"regex on number", Field{Type: FieldNumber, Regex: "x"}, "regex is only valid"},
		{"bad regex", Field{Type: FieldText, Regex: "("}, "invalid regex"},
		{"bounds on text", Field{Type: FieldText, MinValue: &lo}, "numeric bounds"},
		{"inverted bounds", Field{Type: FieldNumber, MinValue: &lo, MaxValue: &hi}, "min_value exceeds"},
		{"toolbar on text", Field{Type: FieldText, Toolbar: []string{"bold"}}, "toolbar"},
		{"keys on text", Field{Type: FieldText, Keys: []string{"a"}}, "keys are only valid"},
		{"section keys ok", Field{Type: FieldSection, Keys: []string{"a"}}, ""},
		{"custom without plugin", Field{Type: FieldCustom}, "field_type"},
		{"datasource option without slug", Field{Type: FieldOption, Source: "internal"}, "datasource_slug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate("f")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":        "hello-world",
		"  Crème Brûlée  ":   "creme-brulee",
		"About us / Team!":   "about-us-team",
		"already-a-slug":     "already-a-slug",
		"---":                "",
		"Über 100% Qualität": "uber-100-qualitat",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestParsePublishMode(t *testing.T) {
	for _, s := range []string{"", "all", "published", "published-with-changes"} {
		m, err := ParsePublishMode(s)
		require.NoError(t, err, s)
		assert.Equal(t, PublishMode(s), m)
	}

	_, err := ParsePublishMode("sometimes")
	assert.ErrorContains(t, err, "invalid publish mode")
}

func TestStory_CloneIsDeep(t *testing.T) {
	s := &Story{ID: 1, Name: "Home", Content: map[string]any{
		"component": "page",
		"body":      []any{map[string]any{"component": "teaser"}},
	}}

	c, err := s.Clone()
	require.NoError(t, err)
	c.Content["title"] = "changed"
	c.Content["body"].([]any)[0].(map[string]any)["component"] = "hero"

	assert.NotContains(t, s.Content, "title")
	assert.Equal(t, "teaser", s.Content["body"].([]any)[0].(map[string]any)["component"])
	assert.Equal(t, "page", c.ContentComponent())
}

func TestComponent_CloneHasSchema(t *testing.T) {
	c, err := (&Component{Name: "x"}).Clone()
	require.NoError(t, err)
	assert.NotNil(t, c.Schema)

	var nilComp *Component
	c, err = nilComp.Clone()
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestStory_CloneUnencodableContent(t *testing.T) {
	s := &Story{FullSlug: "home", Content: map[string]any{"component": "page", "bad": make(chan int)}}
	c, err := s.Clone()
	assert.ErrorContains(t, err, `failed to clone story "home"`)
	assert.Nil(t, c)
}

func TestComponent_CloneUnencodableSchema(t *testing.T) {
	c := &Component{Name: "hero", Schema: map[string]Field{
		"title": {Type: FieldText, Extra: map[string]any{"bad": func() {}}},
	}}
	out, err := c.Clone()
	assert.ErrorContains(t, err, `failed to clone component "hero"`)
	assert.Nil(t, out)
}

func TestMigration_TypesAreDistinct(t *testing.T) {
	seen := map[Type]bool{}
	variants := []Migration{
		CreateComponentGroup{}, UpdateComponentGroup{}, DeleteComponentGroup{},
		CreateComponent{}, UpdateComponent{}, DeleteComponent{},
		CreateStory{}, UpdateStory{}, DeleteStory{},
		CreateDatasource{}, UpdateDatasource{}, DeleteDatasource{},
		CreateDatasourceEntry{}, UpdateDatasourceEntry{}, DeleteDatasourceEntry{},
		TransformEntries{},
	}
	for _, v := range variants {
		assert.False(t, seen[v.Type()], v.Type())
		seen[v.Type()] = true
	}
	assert.Len(t, seen, len(Types))
}
