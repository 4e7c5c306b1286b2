package core

import (
	"context"
	"fmt"

	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

func (r *Runner) createStory(ctx context.Context, m model.CreateStory, opts model.RunOptions) error {
	spec := m.Story
	slug := spec.Slug
	if slug == "" {
		slug = model.Slugify(spec.Name)
	}
	story := &model.Story{
		Name:     spec.Name,
		Slug:     slug,
		ParentID: spec.ParentID,
		IsFolder: spec.IsFolder,
		Content:  spec.Content,
		TagList:  spec.TagList,
	}
	write := provider.StoryWrite{Publish: spec.Publish, ReleaseID: spec.ReleaseID}

	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("create story %q", slug), story)
		return nil
	}

	prefix := slug
	if spec.ParentID != nil {
		parent, err := r.client.Stories.Get(ctx, *spec.ParentID)
		if err != nil {
			return r.fail(m.Type(), slug, err)
		}
		if parent == nil {
			return r.fail(m.Type(), slug, provider.NotFound("parent story", *spec.ParentID))
		}
		prefix = parent.FullSlug + "/" + slug
	}

	candidates, err := r.client.Stories.List(ctx, provider.StoryFilter{StartsWith: prefix})
	if err != nil {
		return r.fail(m.Type(), slug, err)
	}
	for _, st := range candidates {
		if sameParent(st.ParentID, spec.ParentID) && (st.Slug == slug || st.Name == spec.Name) {
			r.logger.Info().Str("story", slug).Int64("id", st.ID).Msg("story already exists, skipping")
			return nil
		}
	}

	created, err := r.client.Stories.Create(ctx, story, write)
	if err != nil {
		return r.fail(m.Type(), slug, err)
	}
	ev := r.logger.Info().Str("story", slug)
	if created != nil {
		ev = ev.Int64("id", created.ID)
	}
	ev.Bool("published", spec.Publish).Msg("story created")
	return nil
}

func (r *Runner) updateStory(ctx context.Context, m model.UpdateStory, opts model.RunOptions) error {
	ref := storyRef(m.ID, m.Slug)
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("update story %s", ref), m)
		return nil
	}

	existing, err := r.findStory(ctx, m.ID, m.Slug)
	if err != nil {
		return r.fail(m.Type(), ref, err)
	}
	if existing == nil {
		return r.fail(m.Type(), ref, provider.NotFound("story", ref))
	}

	snapshot, err := existing.Clone()
	if err != nil {
		return r.fail(m.Type(), ref, err)
	}
	if _, err := r.writeRollback(storyResource(existing), "story", []any{snapshot}); err != nil {
		return r.fail(m.Type(), ref, err)
	}

	updated, err := existing.Clone()
	if err != nil {
		return r.fail(m.Type(), ref, err)
	}
	updated.Content = MergeContent(existing.Content, m.Content)
	if m.Name != "" {
		updated.Name = m.Name
	}

	write := storyWrite(opts, existing, m.ReleaseID, m.Lang, false)
	if _, err := r.client.Stories.Update(ctx, updated, write); err != nil {
		return r.fail(m.Type(), ref, err)
	}
	r.logger.Info().Str("story", ref).Bool("published", write.Publish).Msg("story updated")
	return nil
}

func (r *Runner) deleteStory(ctx context.Context, m model.DeleteStory, opts model.RunOptions) error {
	ref := storyRef(m.ID, m.Slug)
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("delete story %s", ref), m)
		return nil
	}

	existing, err := r.findStory(ctx, m.ID, m.Slug)
	if err != nil {
		return r.fail(m.Type(), ref, err)
	}
	if existing == nil {
		return r.fail(m.Type(), ref, provider.NotFound("story", ref))
	}
	if existing.ID == 0 {
		return r.fail(m.Type(), ref, fmt.Errorf("story %s has no ID", ref))
	}

	if err := r.client.Stories.Delete(ctx, existing.ID); err != nil {
		return r.fail(m.Type(), ref, err)
	}
	r.logger.Info().Str("story", ref).Msg("story deleted")
	return nil
}

// MergeContent shallow-merges partial over base. The root component name of
// base is kept; partial's is used only when base has none.
func MergeContent(base, partial map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		if k == "component" {
			if _, ok := out["component"]; ok {
				continue
			}
		}
		out[k] = v
	}
	return out
}

func (r *Runner) findStory(ctx context.Context, id int64, slug string) (*model.Story, error) {
	if id != 0 {
		return r.client.Stories.Get(ctx, id)
	}
	return r.client.Stories.GetBySlug(ctx, slug)
}

func storyRef(id int64, slug string) string {
	if id != 0 {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("%q", slug)
}

func storyResource(s *model.Story) string {
	if s.FullSlug != "" {
		return s.FullSlug
	}
	if s.Slug != "" {
		return s.Slug
	}
	return fmt.Sprint(s.ID)
}

func sameParent(a, b *int64) bool {
	var x, y int64
	if a != nil {
		x = *a
	}
	if b != nil {
		y = *b
	}
	return x == y
}
