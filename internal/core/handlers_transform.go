package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/contentops/storymig/internal/content"
	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

// TransformStats summarizes a transform-entries run.
type TransformStats struct {
	Scanned      int
	Changed      int
	Updated      int
	Failed       int
	NodesVisited int64
	NodesFailed  int64
	RollbackFile string
}

// transformEntries runs m.Transform over every story containing m.Component.
// Per-story failures are counted, not returned. The rollback snapshot of
// every story already written is flushed however the loop ends.
func (r *Runner) transformEntries(ctx context.Context, m model.TransformEntries, opts model.RunOptions) (stats *TransformStats, err error) {
	stats = &TransformStats{}

	transform := m.Transform
	if transform == nil && len(m.Operations) > 0 {
		transform, err = CompileOperations(m.Operations)
		if err != nil {
			return stats, r.fail(m.Type(), m.Component, err)
		}
	}
	if transform == nil {
		return stats, r.fail(m.Type(), m.Component, fmt.Errorf("no transform resolved for component %q", m.Component))
	}

	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("transform every %q node in stories containing it", m.Component), m)
		return stats, nil
	}

	if err := r.ensureComponent(ctx, m.Component); err != nil {
		return stats, r.fail(m.Type(), m.Component, err)
	}

	listed, err := r.client.Stories.List(ctx, provider.StoryFilter{
		StartsWith:       m.StartsWith,
		ContainComponent: m.Component,
	})
	if err != nil {
		return stats, r.fail(m.Type(), m.Component, err)
	}

	var snapshots []any
	defer func() {
		if len(snapshots) == 0 {
			return
		}
		path, werr := r.writeRollback(m.Component, "stories", snapshots)
		if werr != nil {
			r.logger.Error().Err(werr).Str("component", m.Component).Msg("failed to write rollback")
			if err == nil {
				err = werr
			}
			return
		}
		stats.RollbackFile = path
	}()

	for _, item := range listed {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++

		log := r.logger.With().Int64("story_id", item.ID).Str("slug", item.FullSlug).Logger()

		story, err := r.client.Stories.Get(ctx, item.ID)
		if err != nil || story == nil {
			if err == nil {
				err = provider.NotFound("story", item.ID)
			}
			stats.Failed++
			log.Error().Err(err).Msg("failed to load story")
			continue
		}

		// The walk works on a copy so story stays the pre-transform snapshot.
		updated, err := story.Clone()
		if err != nil {
			stats.Failed++
			log.Error().Err(err).Msg("failed to copy story")
			continue
		}

		root, err := content.Parse(updated.Content)
		if err != nil {
			stats.Failed++
			log.Error().Err(err).Msg("story content is not a component tree")
			continue
		}

		before, err := json.Marshal(story.Content)
		if err != nil {
			stats.Failed++
			log.Error().Err(err).Msg("failed to encode story content")
			continue
		}

		res, err := r.walker.Walk(ctx, root, m.Component, transform)
		stats.NodesVisited += res.Visited
		stats.NodesFailed += res.Failed
		if err != nil {
			return stats, err
		}

		next := root.Map()
		after, err := json.Marshal(next)
		if err != nil {
			stats.Failed++
			log.Error().Err(err).Msg("failed to encode transformed content")
			continue
		}
		if bytes.Equal(before, after) {
			continue
		}
		stats.Changed++

		// Snapshot before the write it guards.
		snapshots = append(snapshots, story)

		updated.Content = next
		write := storyWrite(opts, story, 0, "", true)
		if _, err := r.client.Stories.Update(ctx, updated, write); err != nil {
			stats.Failed++
			log.Error().Err(err).Msg("failed to update story")
			continue
		}
		stats.Updated++
		log.Info().Bool("published", write.Publish).Msg("story migrated")
	}

	r.logger.Info().
		Str("component", m.Component).
		Int("scanned", stats.Scanned).
		Int("changed", stats.Changed).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Int64("nodes_visited", stats.NodesVisited).
		Int64("nodes_failed", stats.NodesFailed).
		Msg("transform finished")
	return stats, nil
}

// ensureComponent loads the component record, creating an empty one if the
// space does not have it yet.
func (r *Runner) ensureComponent(ctx context.Context, name string) error {
	_, err := r.client.Components.Get(ctx, name)
	if err == nil {
		return nil
	}
	if !provider.IsNotFound(err) {
		return err
	}
	if _, err := r.client.Components.Create(ctx, &model.Component{Name: name, Schema: map[string]model.Field{}}); err != nil {
		return fmt.Errorf("failed to create missing component %q: %w", name, err)
	}
	r.logger.Info().Str("component", name).Msg("component created for transform")
	return nil
}
