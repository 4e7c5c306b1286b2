package core

import (
	"context"
	"fmt"

	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

func (r *Runner) createComponentGroup(ctx context.Context, m model.CreateComponentGroup, opts model.RunOptions) error {
	if opts.DryRun {
		for _, g := range m.Groups {
			r.dryRun(m.Type(), fmt.Sprintf("create component group %q", g.Name), g)
		}
		return nil
	}

	groups, err := r.client.ComponentGroups.List(ctx)
	if err != nil {
		return r.fail(m.Type(), "component_groups", err)
	}

	for _, spec := range m.Groups {
		if groupByName(groups, spec.Name) != nil {
			r.logger.Info().Str("group", spec.Name).Msg("component group already exists, skipping")
			continue
		}
		created, err := r.client.ComponentGroups.Create(ctx, &model.ComponentGroup{Name: spec.Name})
		if err != nil {
			return r.fail(m.Type(), spec.Name, err)
		}
		if created != nil {
			groups = append(groups, *created)
		}
		r.logger.Info().Str("group", spec.Name).Msg("component group created")
	}
	return nil
}

func (r *Runner) updateComponentGroup(ctx context.Context, m model.UpdateComponentGroup, opts model.RunOptions) error {
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("update component group %q", m.Group), m)
		return nil
	}

	groups, err := r.client.ComponentGroups.List(ctx)
	if err != nil {
		return r.fail(m.Type(), m.Group, err)
	}
	g := provider.FindGroup(groups, m.Group)
	if g == nil {
		return r.fail(m.Type(), m.Group, provider.NotFound("component group", m.Group))
	}
	if g.ID == 0 || g.UUID == "" {
		return r.fail(m.Type(), m.Group, missingProperties("component group", m.Group, "id", "uuid"))
	}

	updated := *g
	updated.Name = m.Name
	if _, err := r.client.ComponentGroups.Update(ctx, &updated); err != nil {
		return r.fail(m.Type(), m.Group, err)
	}
	r.logger.Info().Str("group", g.Name).Str("name", m.Name).Msg("component group updated")
	return nil
}

func (r *Runner) deleteComponentGroup(ctx context.Context, m model.DeleteComponentGroup, opts model.RunOptions) error {
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("delete component group %q", m.Group), m)
		return nil
	}

	groups, err := r.client.ComponentGroups.List(ctx)
	if err != nil {
		return r.fail(m.Type(), m.Group, err)
	}
	g := provider.FindGroup(groups, m.Group)
	if g == nil {
		return r.fail(m.Type(), m.Group, provider.NotFound("component group", m.Group))
	}
	if g.ID == 0 {
		return r.fail(m.Type(), m.Group, fmt.Errorf("component group %q has no ID", m.Group))
	}

	if err := r.client.ComponentGroups.Delete(ctx, g.ID); err != nil {
		return r.fail(m.Type(), m.Group, err)
	}
	r.logger.Info().Str("group", g.Name).Msg("component group deleted")
	return nil
}

func groupByName(groups []model.ComponentGroup, name string) *model.ComponentGroup {
	for i := range groups {
		if groups[i].Name == name {
			return &groups[i]
		}
	}
	return nil
}
