package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/storymig/internal/content"
	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

type storyPut struct {
	Story       model.Story `json:"story"`
	Publish     int         `json:"publish"`
	ReleaseID   int64       `json:"release_id"`
	Lang        string      `json:"lang"`
	ForceUpdate string      `json:"force_update"`
}

func decodePut(t *testing.T, h *harness, path string) storyPut {
	t.Helper()
	puts := h.space.CallsTo(http.MethodPut, path)
	require.Len(t, puts, 1)
	var body storyPut
	require.NoError(t, puts[0].Decode(&body))
	return body
}

// --- Stories ---

func TestRunner_UpdateStoryMergesContent(t *testing.T) {
	h := newHarness(t)
	st := h.space.AddStory(model.Story{Name: "Home", Slug: "home", Content: map[string]any{
		"component": "page",
		"title":     "Old",
		"body":      []any{map[string]any{"component": "teaser"}},
	}})

	err := h.run(t, model.UpdateStory{Slug: "home", Content: map[string]any{"component": "other", "title": "New"}}, model.RunOptions{})
	require.NoError(t, err)

	got := h.space.Story(st.ID)
	require.NotNil(t, got)
	assert.Equal(t, map[string]any{
		"component": "page",
		"title":     "New",
		"body":      []any{map[string]any{"component": "teaser"}},
	}, got.Content)

	files := h.rollbackFiles(t)
	snaps := files["20240301T120000_rollback_home_story.json"]
	require.Len(t, snaps, 1)
	var snap model.Story
	require.NoError(t, json.Unmarshal(snaps[0], &snap))
	assert.Equal(t, "Old", snap.Content["title"])
}

func TestRunner_UpdateStorySnapshotPrecedesWrite(t *testing.T) {
	h := newHarness(t)
	st := h.space.AddStory(model.Story{Name: "Home", Slug: "home", Content: map[string]any{"component": "page"}})
	h.space.FailWith(http.MethodPut, fmt.Sprintf("stories/%d", st.ID), &provider.RemoteError{Status: 500})

	err := h.run(t, model.UpdateStory{ID: st.ID, Content: map[string]any{"title": "x"}}, model.RunOptions{})
	require.Error(t, err)
	assert.Len(t, h.rollbackFiles(t), 1)
}

func TestRunner_UpdateStoryPublishParameters(t *testing.T) {
	h := newHarness(t)
	st := h.space.AddStory(model.Story{Name: "Home", Slug: "home", Content: map[string]any{"component": "page"}})

	err := h.run(t, model.UpdateStory{ID: st.ID, Content: map[string]any{"title": "x"}, ReleaseID: 7},
		model.RunOptions{Publish: model.PublishAll, PublishLanguages: model.AllLanguages})
	require.NoError(t, err)

	body := decodePut(t, h, "stories/")
	assert.Equal(t, 1, body.Publish)
	assert.Equal(t, int64(7), body.ReleaseID)
	assert.Equal(t, model.AllLanguages, body.Lang)
	assert.Empty(t, body.ForceUpdate)
	assert.True(t, h.space.Story(st.ID).Published)
}

func TestRunner_UpdateStoryLangOverridesRunLanguages(t *testing.T) {
	h := newHarness(t)
	st := h.space.AddStory(model.Story{Name: "Home", Slug: "home", Content: map[string]any{"component": "page"}})

	err := h.run(t, model.UpdateStory{ID: st.ID, Lang: "de"}, model.RunOptions{PublishLanguages: "en"})
	require.NoError(t, err)

	body := decodePut(t, h, "stories/")
	assert.Equal(t, "de", body.Lang)
	assert.Equal(t, 0, body.Publish)
}

func TestShouldPublish(t *testing.T) {
	draft := &model.Story{}
	published := &model.Story{Published: true}
	changed := &model.Story{Published: true, UnpublishedChanges: true}

	tests := []struct {
		mode  model.PublishMode
		story *model.Story
		want  bool
	}{
		{model.PublishNone, published, false},
		{model.PublishAll, draft, true},
		{model.PublishAll, nil, true},
		{model.PublishPublished, draft, false},
		{model.PublishPublished, published, true},
		{model.PublishPublished, changed, false},
		{model.PublishPublishedWithChanges, published, false},
		{model.PublishPublishedWithChanges, changed, true},
		{model.PublishPublishedWithChanges, nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldPublish(tt.mode, tt.story), "mode %q story %+v", tt.mode, tt.story)
	}
}

func TestMergeContent(t *testing.T) {
	base := map[string]any{"component": "page", "a": 1}

	out := MergeContent(base, map[string]any{"a": 2, "b": 3})
	assert.Equal(t, map[string]any{"component": "page", "a": 2, "b": 3}, out)
	assert.Equal(t, 1, base["a"], "base is not mutated")

	out = MergeContent(map[string]any{}, map[string]any{"component": "page"})
	assert.Equal(t, "page", out["component"])
}

func TestRunner_CreateStory(t *testing.T) {
	h := newHarness(t)
	folder := h.space.AddStory(model.Story{Name: "Blog", Slug: "blog", IsFolder: true})

	err := h.run(t, model.CreateStory{Story: model.StorySpec{
		Name:     "Crème Brûlée",
		ParentID: &folder.ID,
		Content:  map[string]any{"component": "post"},
		Publish:  true,
	}}, model.RunOptions{})
	require.NoError(t, err)

	var created *model.Story
	for _, st := range h.space.Stories() {
		if st.Slug == "creme-brulee" {
			created = &st
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "blog/creme-brulee", created.FullSlug)
	assert.True(t, created.Published)

	lists := h.space.CallsTo(http.MethodGet, "stories")
	require.NotEmpty(t, lists)
	assert.Equal(t, "blog/creme-brulee", lists[len(lists)-1].Query.Get("starts_with"))
}

func TestRunner_CreateStoryMissingParent(t *testing.T) {
	h := newHarness(t)
	parent := int64(999)

	err := h.run(t, model.CreateStory{Story: model.StorySpec{Name: "Orphan", ParentID: &parent}}, model.RunOptions{})
	assert.True(t, provider.IsNotFound(err))
	assert.Empty(t, h.space.Writes())
}

func TestRunner_DeleteStory(t *testing.T) {
	h := newHarness(t)
	h.space.AddStory(model.Story{Name: "Home", Slug: "home"})

	require.NoError(t, h.run(t, model.DeleteStory{Slug: "home"}, model.RunOptions{}))
	assert.Empty(t, h.space.Stories())

	err := h.run(t, model.DeleteStory{Slug: "home"}, model.RunOptions{})
	assert.True(t, provider.IsNotFound(err))

	err = h.run(t, model.DeleteStory{ID: 4242}, model.RunOptions{})
	assert.True(t, provider.IsNotFound(err))
}

// --- Datasources ---

func TestRunner_UpdateDatasourceSetDiff(t *testing.T) {
	h := newHarness(t)
	ds := h.space.AddDatasource(model.Datasource{Name: "Tags", Slug: "tags"},
		model.DatasourceEntry{Name: "A", Value: "a"},
		model.DatasourceEntry{Name: "B", Value: "b"},
	)
	entryB := h.space.Entries(ds.ID)[1]

	err := h.run(t, model.UpdateDatasource{ID: ds.ID, Entries: []model.DatasourceEntry{
		{Name: "A", Value: "a"},
		{Name: "C", Value: "c"},
	}}, model.RunOptions{})
	require.NoError(t, err)

	deletes := h.space.CallsTo(http.MethodDelete, "datasource_entries/")
	require.Len(t, deletes, 1)
	assert.Equal(t, fmt.Sprintf("datasource_entries/%d", entryB.ID), deletes[0].Path)
	assert.Len(t, h.space.CallsTo(http.MethodPost, "datasource_entries"), 1)
	assert.Empty(t, h.space.CallsTo(http.MethodPut, ""))

	var names []string
	for _, e := range h.space.Entries(ds.ID) {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"A", "C"}, names)

	files := h.rollbackFiles(t)
	snaps := files["20240301T120000_rollback_tags_datasource.json"]
	require.Len(t, snaps, 1)
	var snap datasourceSnapshot
	require.NoError(t, json.Unmarshal(snaps[0], &snap))
	assert.Len(t, snap.Entries, 2)
}

func TestRunner_UpdateDatasourceRename(t *testing.T) {
	h := newHarness(t)
	ds := h.space.AddDatasource(model.Datasource{Name: "Tags", Slug: "tags"}, model.DatasourceEntry{Name: "A", Value: "a"})

	require.NoError(t, h.run(t, model.UpdateDatasource{ID: ds.ID, Name: "Labels"}, model.RunOptions{}))
	assert.Equal(t, "Labels", h.space.Datasources()[0].Name)
	assert.Len(t, h.space.CallsTo(http.MethodPut, "datasources/"), 1)
	assert.Empty(t, h.space.CallsTo("", "datasource_entries"), "nil entries leave entries alone")
}

func TestRunner_DatasourceFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	h.space.FailWith("", "datasources", &provider.RemoteError{Status: 500})

	err := h.run(t, model.CreateDatasource{Datasource: model.DatasourceSpec{Name: "Sizes", Slug: "sizes"}}, model.RunOptions{})
	assert.NoError(t, err)

	err = h.run(t, model.UpdateDatasource{ID: 999, Name: "x"}, model.RunOptions{})
	assert.NoError(t, err)
	assert.Empty(t, h.rollbackFiles(t))

	err = h.run(t, model.DeleteDatasourceEntry{ID: 999}, model.RunOptions{})
	assert.NoError(t, err)
}

func TestRunner_CreateDatasourceWithEntries(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, model.CreateDatasource{Datasource: model.DatasourceSpec{
		Name: "Sizes",
		Slug: "sizes",
		Entries: []model.DatasourceEntry{
			{Name: "Small", Value: "s"},
			{Name: "Large", Value: "l"},
			{Name: "Small", Value: "s"},
		},
	}}, model.RunOptions{})
	require.NoError(t, err)

	all := h.space.Datasources()
	require.Len(t, all, 1)
	assert.Len(t, h.space.Entries(all[0].ID), 2)
}

func TestRunner_DatasourceEntryLifecycle(t *testing.T) {
	h := newHarness(t)
	ds := h.space.AddDatasource(model.Datasource{Name: "Colors", Slug: "colors"})

	require.NoError(t, h.run(t, model.CreateDatasourceEntry{DatasourceID: ds.ID, Entry: model.DatasourceEntry{Name: "Red", Value: "red"}}, model.RunOptions{}))
	entries := h.space.Entries(ds.ID)
	require.Len(t, entries, 1)

	require.NoError(t, h.run(t, model.UpdateDatasourceEntry{ID: entries[0].ID, Entry: model.DatasourceEntry{Name: "Crimson", Value: "crimson"}}, model.RunOptions{}))
	entries = h.space.Entries(ds.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Crimson", entries[0].Name)
	assert.Equal(t, "crimson", entries[0].Value)

	require.NoError(t, h.run(t, model.DeleteDatasourceEntry{ID: entries[0].ID}, model.RunOptions{}))
	assert.Empty(t, h.space.Entries(ds.ID))
}

func TestRunner_DeleteDatasource(t *testing.T) {
	h := newHarness(t)
	ds := h.space.AddDatasource(model.Datasource{Name: "Colors", Slug: "colors"}, model.DatasourceEntry{Name: "Red", Value: "red"})

	require.NoError(t, h.run(t, model.DeleteDatasource{ID: ds.ID}, model.RunOptions{}))
	assert.Empty(t, h.space.Datasources())
	assert.Empty(t, h.space.Entries(ds.ID))
}

// --- Transform entries ---

func seedCTAStories(h *harness, labels ...string) []model.Story {
	var out []model.Story
	for i, label := range labels {
		out = append(out, h.space.AddStory(model.Story{
			Name: label,
			Slug: fmt.Sprintf("s-%d", i),
			Content: map[string]any{
				"component": "page",
				"a_cta":     map[string]any{"component": "cta", "label": label},
				"z":         "tail",
			},
		}))
	}
	return out
}

func labelOf(st *model.Story) any {
	return st.Content["a_cta"].(map[string]any)["label"]
}

func TestRunner_TransformEntries(t *testing.T) {
	h := newHarness(t)
	h.space.AddComponent(model.Component{Name: "cta"})
	stories := seedCTAStories(h, "one", "two")
	h.space.AddStory(model.Story{Name: "other", Slug: "other", Content: map[string]any{"component": "page"}})

	stats, err := h.runner.transformEntries(context.Background(), model.TransformEntries{
		Component: "cta",
		Operations: []model.FieldOp{
			{Op: model.FieldOpRename, Field: "label", To: "text"},
			{Op: model.FieldOpSet, Field: "style", Value: "primary"},
		},
	}, model.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Changed)
	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, int64(2), stats.NodesVisited)
	assert.NotEmpty(t, stats.RollbackFile)

	for _, st := range stories {
		got := h.space.Story(st.ID)
		cta := got.Content["a_cta"].(map[string]any)
		assert.Equal(t, st.Name, cta["text"])
		assert.Equal(t, "primary", cta["style"])
		assert.NotContains(t, cta, "label")
	}

	for _, put := range h.space.CallsTo(http.MethodPut, "stories/") {
		var body storyPut
		require.NoError(t, put.Decode(&body))
		assert.Equal(t, "1", body.ForceUpdate)
	}

	files := h.rollbackFiles(t)
	snaps := files["20240301T120000_rollback_cta_stories.json"]
	require.Len(t, snaps, 2)
	var first model.Story
	require.NoError(t, json.Unmarshal(snaps[0], &first))
	assert.Equal(t, "one", labelOf(&first))
}

func TestRunner_TransformEntriesCreatesMissingComponent(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner.transformEntries(context.Background(), model.TransformEntries{
		Component:  "cta",
		Operations: []model.FieldOp{{Op: model.FieldOpRemove, Field: "x"}},
	}, model.RunOptions{})
	require.NoError(t, err)

	posts := h.space.CallsTo(http.MethodPost, "components")
	require.Len(t, posts, 1)
	require.Len(t, h.space.Components(), 1)
	assert.Equal(t, "cta", h.space.Components()[0].Name)
}

func TestRunner_TransformEntriesUnchangedSkipsWrite(t *testing.T) {
	h := newHarness(t)
	h.space.AddComponent(model.Component{Name: "cta"})
	seedCTAStories(h, "one")

	stats, err := h.runner.transformEntries(context.Background(), model.TransformEntries{
		Component: "cta",
		Transform: func(_ context.Context, c *content.Component) error {
			c.Set("label", c.String("label"))
			return nil
		},
	}, model.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 0, stats.Changed)
	assert.Empty(t, h.space.CallsTo(http.MethodPut, ""))
	assert.Empty(t, h.rollbackFiles(t))
}

func TestRunner_TransformEntriesCountsFailedWrites(t *testing.T) {
	h := newHarness(t)
	h.space.AddComponent(model.Component{Name: "cta"})
	stories := seedCTAStories(h, "one", "two")
	h.space.FailWith(http.MethodPut, fmt.Sprintf("stories/%d", stories[1].ID), &provider.RemoteError{Status: 422})

	stats, err := h.runner.transformEntries(context.Background(), model.TransformEntries{
		Component:  "cta",
		Operations: []model.FieldOp{{Op: model.FieldOpSet, Field: "label", Value: "x"}},
	}, model.RunOptions{Publish: model.PublishAll})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Changed)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, "x", labelOf(h.space.Story(stories[0].ID)))
	assert.Equal(t, "two", labelOf(h.space.Story(stories[1].ID)))

	files := h.rollbackFiles(t)
	require.Len(t, files, 1)
	for _, snaps := range files {
		assert.Len(t, snaps, 2)
	}
}

func TestRunner_TransformEntriesFlushesRollbackOnCancel(t *testing.T) {
	h := newHarness(t, WithWalker(NewWalker(zerolog.Nop(), 1)))
	h.space.AddComponent(model.Component{Name: "cta"})
	stories := seedCTAStories(h, "one", "two", "three")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := h.runner.transformEntries(ctx, model.TransformEntries{
		Component: "cta",
		Transform: func(_ context.Context, c *content.Component) error {
			if c.String("label") == "two" {
				cancel()
			}
			c.Set("label", "done")
			return nil
		},
	}, model.RunOptions{})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, "done", labelOf(h.space.Story(stories[0].ID)))
	assert.Equal(t, "two", labelOf(h.space.Story(stories[1].ID)))
	assert.Equal(t, "three", labelOf(h.space.Story(stories[2].ID)))

	files := h.rollbackFiles(t)
	snaps := files["20240301T120000_rollback_cta_stories.json"]
	require.Len(t, snaps, 1)
	assert.NotEmpty(t, stats.RollbackFile)
}

func TestRunner_TransformEntriesNeedsTransform(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, model.TransformEntries{Component: "cta"}, model.RunOptions{})
	assert.ErrorContains(t, err, "no transform resolved")
	assert.Empty(t, h.space.Calls())
}

func TestCompileOperations(t *testing.T) {
	fn, err := CompileOperations([]model.FieldOp{
		{Op: model.FieldOpSet, Field: "title", Value: "Hello"},
		{Op: model.FieldOpRename, Field: "old", To: "new"},
		{Op: model.FieldOpRemove, Field: "gone"},
	})
	require.NoError(t, err)

	c := &content.Component{Name: "x", Fields: map[string]content.Node{}}
	c.Set("old", "value")
	c.Set("gone", true)
	require.NoError(t, fn(context.Background(), c))

	assert.Equal(t, "Hello", c.String("title"))
	assert.Equal(t, "value", c.String("new"))
	assert.False(t, c.Has("old"))
	assert.False(t, c.Has("gone"))

	_, err = CompileOperations(nil)
	assert.Error(t, err)
	_, err = CompileOperations([]model.FieldOp{{Op: model.FieldOpRename, Field: "a"}})
	assert.ErrorContains(t, err, "needs a target")
	_, err = CompileOperations([]model.FieldOp{{Op: "explode", Field: "a"}})
	assert.ErrorContains(t, err, "unknown op")
}
