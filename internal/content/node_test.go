package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestParse_ClassifiesVariants(t *testing.T) {
	root := decode(t, `{
		"component": "page",
		"title": "Home",
		"meta": {"author": "x"},
		"hero": {"component": "hero", "headline": "Hi"},
		"body": [{"component": "teaser"}, "plain"],
		"text": {"type": "doc", "content": [
			{"type": "paragraph", "content": []},
			{"type": "blok", "attrs": {"body": [{"component": "cta"}]}}
		]}
	}`)

	c, err := Parse(root)
	require.NoError(t, err)
	assert.Equal(t, "page", c.Name)

	assert.IsType(t, Value{}, c.Fields["title"])
	assert.IsType(t, Value{}, c.Fields["meta"])

	hero, ok := c.Fields["hero"].(*Component)
	require.True(t, ok)
	assert.Equal(t, "hero", hero.Name)

	body, ok := c.Fields["body"].(*List)
	require.True(t, ok)
	require.Len(t, body.Items, 2)
	assert.IsType(t, &Component{}, body.Items[0])
	assert.IsType(t, Value{}, body.Items[1])

	rt, ok := c.Fields["text"].(*RichText)
	require.True(t, ok)
	require.Len(t, rt.Blocks, 1)
	assert.Equal(t, 1, rt.Blocks[0].Index)
	assert.IsType(t, &List{}, rt.Blocks[0].Body)
}

func TestParse_ArrayElementObjects(t *testing.T) {
	raw := `{"component":"page","meta":{"nested":{"component":"cta"}},"links":[{"url":"x","nested":{"component":"cta","label":"old"}},3]}`
	c, err := Parse(decode(t, raw))
	require.NoError(t, err)

	assert.IsType(t, Value{}, c.Fields["meta"])

	links := c.Fields["links"].(*List)
	obj, ok := links.Items[0].(*Object)
	require.True(t, ok, "got %T", links.Items[0])
	assert.Equal(t, []string{"nested", "url"}, obj.Keys())
	assert.IsType(t, Value{}, links.Items[1])

	nested, ok := obj.Fields["nested"].(*Component)
	require.True(t, ok)
	nested.Set("label", "new")

	out := c.Map()
	link := out["links"].([]any)[0].(map[string]any)
	assert.Equal(t, "x", link["url"])
	assert.Equal(t, "new", link["nested"].(map[string]any)["label"])
	assert.Equal(t, 3.0, out["links"].([]any)[1])
}

func TestParse_RejectsRootWithoutComponent(t *testing.T) {
	_, err := Parse(map[string]any{"title": "x"})
	assert.Error(t, err)

	_, err = Parse(nil)
	assert.Error(t, err)
}

func TestEncode_RoundTripsUnchangedTree(t *testing.T) {
	raw := `{"component":"page","body":[{"component":"teaser","n":1}],"text":{"type":"doc","content":[{"type":"blok","attrs":{"id":"a","body":[{"component":"cta"}]}}]}}`
	root := decode(t, raw)

	c, err := Parse(root)
	require.NoError(t, err)

	got, err := json.Marshal(c.Map())
	require.NoError(t, err)
	want, err := json.Marshal(decode(t, raw))
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestEncode_DoesNotMutateParsedInput(t *testing.T) {
	root := decode(t, `{"component":"page","text":{"type":"doc","content":[{"type":"blok","attrs":{"body":{"component":"cta","label":"old"}}}]}}`)

	c, err := Parse(root)
	require.NoError(t, err)
	rt := c.Fields["text"].(*RichText)
	rt.Blocks[0].Body.(*Component).Set("label", "new")

	out := c.Map()
	body := out["text"].(map[string]any)["content"].([]any)[0].(map[string]any)["attrs"].(map[string]any)["body"].(map[string]any)
	assert.Equal(t, "new", body["label"])

	orig := root["text"].(map[string]any)["content"].([]any)[0].(map[string]any)["attrs"].(map[string]any)["body"].(map[string]any)
	assert.Equal(t, "old", orig["label"])
}

func TestComponent_FieldHelpers(t *testing.T) {
	c := &Component{Name: "teaser"}

	c.Set("title", "Hello")
	assert.True(t, c.Has("title"))
	assert.Equal(t, "Hello", c.String("title"))
	assert.Equal(t, "teaser", c.Get("component"))

	assert.True(t, c.Rename("title", "headline"))
	assert.False(t, c.Has("title"))
	assert.Equal(t, "Hello", c.String("headline"))
	assert.False(t, c.Rename("missing", "x"))

	c.Set("component", "card")
	assert.Equal(t, "card", c.Name)

	c.Set("z", 1.0)
	assert.Equal(t, []string{"headline", "z"}, c.Keys())

	c.Delete("z")
	assert.Nil(t, c.Get("z"))
	assert.Equal(t, "", c.String("z"))
}
