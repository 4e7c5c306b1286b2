package core

import (
	"context"
	"fmt"

	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

func (r *Runner) createComponent(ctx context.Context, m model.CreateComponent, opts model.RunOptions) error {
	spec := m.Component
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("create component %q", spec.Name), spec)
		return nil
	}

	all, err := r.client.Components.List(ctx)
	if err != nil {
		return r.fail(m.Type(), spec.Name, err)
	}
	if provider.FindComponent(all, spec.Name, 0) != nil {
		r.logger.Info().Str("component", spec.Name).Msg("component already exists, skipping")
		return nil
	}

	comp := &model.Component{
		Name:        spec.Name,
		DisplayName: spec.DisplayName,
		IsRoot:      spec.IsRoot,
		IsNestable:  spec.IsNestable,
	}
	if spec.ComponentGroupName != "" {
		uuid, err := r.resolveGroup(ctx, spec.ComponentGroupName)
		if err != nil {
			return r.fail(m.Type(), spec.Name, err)
		}
		comp.ComponentGroupUUID = uuid
	}

	rec, err := ReconcileSchema(nil, FieldChanges{Fields: spec.Fields, Tabs: spec.Tabs, Deprecated: spec.Deprecated})
	if err != nil {
		return r.fail(m.Type(), spec.Name, err)
	}
	comp.Schema = rec.Schema

	if _, err := r.client.Components.Create(ctx, comp); err != nil {
		return r.fail(m.Type(), spec.Name, err)
	}
	r.logger.Info().Str("component", spec.Name).Int("fields", len(rec.Order)).Msg("component created")
	return nil
}

func (r *Runner) updateComponent(ctx context.Context, m model.UpdateComponent, opts model.RunOptions) error {
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("update component %q", m.Name), m)
		return nil
	}

	all, err := r.client.Components.List(ctx)
	if err != nil {
		return r.fail(m.Type(), m.Name, err)
	}
	existing := provider.FindComponent(all, m.Name, 0)
	if existing == nil {
		return r.fail(m.Type(), m.Name, provider.NotFound("component", m.Name))
	}

	snapshot, err := existing.Clone()
	if err != nil {
		return r.fail(m.Type(), m.Name, err)
	}
	if _, err := r.writeRollback(m.Name, "component", []any{snapshot}); err != nil {
		return r.fail(m.Type(), m.Name, err)
	}

	updated, err := existing.Clone()
	if err != nil {
		return r.fail(m.Type(), m.Name, err)
	}
	if m.DisplayName != nil {
		updated.DisplayName = *m.DisplayName
	}
	if m.IsRoot != nil {
		updated.IsRoot = *m.IsRoot
	}
	if m.IsNestable != nil {
		updated.IsNestable = *m.IsNestable
	}
	if m.ComponentGroupName != nil {
		updated.ComponentGroupUUID = ""
		if *m.ComponentGroupName != "" {
			uuid, err := r.resolveGroup(ctx, *m.ComponentGroupName)
			if err != nil {
				return r.fail(m.Type(), m.Name, err)
			}
			updated.ComponentGroupUUID = uuid
		}
	}

	rec, err := ReconcileSchema(existing.Schema, FieldChanges{Fields: m.Fields, Tabs: m.Tabs, Deprecated: m.Deprecated})
	if err != nil {
		return r.fail(m.Type(), m.Name, err)
	}
	updated.Schema = rec.Schema

	if _, err := r.client.Components.Update(ctx, updated); err != nil {
		return r.fail(m.Type(), m.Name, err)
	}
	r.logger.Info().
		Str("component", m.Name).
		Strs("deprecated", rec.Deprecated).
		Msg("component updated")
	return nil
}

func (r *Runner) deleteComponent(ctx context.Context, m model.DeleteComponent, opts model.RunOptions) error {
	ref := m.Name
	if ref == "" {
		ref = fmt.Sprint(m.ID)
	}
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("delete component %q", ref), m)
		return nil
	}

	all, err := r.client.Components.List(ctx)
	if err != nil {
		return r.fail(m.Type(), ref, err)
	}
	existing := provider.FindComponent(all, m.Name, m.ID)
	if existing == nil {
		return r.fail(m.Type(), ref, provider.NotFound("component", ref))
	}

	if err := r.client.Components.Delete(ctx, existing.ID); err != nil {
		return r.fail(m.Type(), ref, err)
	}
	r.logger.Info().Str("component", existing.Name).Msg("component deleted")
	return nil
}

// resolveGroup maps a group name to its uuid. An unknown group is a warning,
// not an error: the component is saved ungrouped.
func (r *Runner) resolveGroup(ctx context.Context, name string) (string, error) {
	groups, err := r.client.ComponentGroups.List(ctx)
	if err != nil {
		return "", err
	}
	if g := groupByName(groups, name); g != nil {
		return g.UUID, nil
	}
	r.logger.Warn().Str("group", name).Msg("component group not found, leaving component ungrouped")
	return "", nil
}
