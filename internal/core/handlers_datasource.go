package core

import (
	"context"
	"fmt"

	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

// Datasource handlers log remote failures instead of returning them, so one
// bad datasource does not abort a larger batch.

// EntrySync counts the outcome of an entry set-diff.
type EntrySync struct {
	Created int
	Deleted int
	Kept    int
}

func (r *Runner) createDatasource(ctx context.Context, m model.CreateDatasource, opts model.RunOptions) error {
	spec := m.Datasource
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("create datasource %q", spec.Slug), spec)
		return nil
	}

	all, err := r.client.Datasources.List(ctx)
	if err != nil {
		r.fail(m.Type(), spec.Slug, err)
		return nil
	}
	if provider.FindDatasource(all, spec.Name, spec.Slug) != nil {
		r.logger.Info().Str("datasource", spec.Slug).Msg("datasource already exists, skipping")
		return nil
	}

	created, err := r.client.Datasources.Create(ctx, &model.Datasource{
		Name:       spec.Name,
		Slug:       spec.Slug,
		Dimensions: spec.Dimensions,
	})
	if err != nil {
		r.fail(m.Type(), spec.Slug, err)
		return nil
	}
	if created == nil {
		r.fail(m.Type(), spec.Slug, fmt.Errorf("datasource %q: empty create response", spec.Slug))
		return nil
	}

	sync, err := r.SyncEntries(ctx, created.ID, spec.Entries)
	if err != nil {
		r.fail(m.Type(), spec.Slug, err)
		return nil
	}
	r.logger.Info().
		Str("datasource", spec.Slug).
		Int("entries_created", sync.Created).
		Msg("datasource created")
	return nil
}

type datasourceSnapshot struct {
	Datasource model.Datasource        `json:"datasource"`
	Entries    []model.DatasourceEntry `json:"entries,omitempty"`
}

func (r *Runner) updateDatasource(ctx context.Context, m model.UpdateDatasource, opts model.RunOptions) error {
	ref := fmt.Sprint(m.ID)
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("update datasource %s", ref), m)
		return nil
	}

	existing, err := r.client.Datasources.Get(ctx, m.ID)
	if err != nil {
		r.fail(m.Type(), ref, err)
		return nil
	}

	snap := datasourceSnapshot{Datasource: *existing}
	if m.Entries != nil {
		entries, err := r.client.DatasourceEntries.List(ctx, m.ID)
		if err != nil {
			r.fail(m.Type(), ref, err)
			return nil
		}
		snap.Entries = entries
	}
	if _, err := r.writeRollback(existing.Slug, "datasource", []any{snap}); err != nil {
		r.fail(m.Type(), ref, err)
		return nil
	}

	updated := *existing
	if m.Name != "" {
		updated.Name = m.Name
	}
	if m.Slug != "" {
		updated.Slug = m.Slug
	}
	if updated.Name != existing.Name || updated.Slug != existing.Slug {
		if _, err := r.client.Datasources.Update(ctx, &updated); err != nil {
			r.fail(m.Type(), ref, err)
			return nil
		}
	}

	if m.Entries != nil {
		sync, err := r.diffEntries(ctx, m.ID, snap.Entries, m.Entries)
		if err != nil {
			r.fail(m.Type(), ref, err)
			return nil
		}
		r.logger.Info().
			Str("datasource", updated.Slug).
			Int("created", sync.Created).
			Int("deleted", sync.Deleted).
			Int("kept", sync.Kept).
			Msg("datasource entries reconciled")
	}
	r.logger.Info().Str("datasource", updated.Slug).Msg("datasource updated")
	return nil
}

func (r *Runner) deleteDatasource(ctx context.Context, m model.DeleteDatasource, opts model.RunOptions) error {
	ref := fmt.Sprint(m.ID)
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("delete datasource %s", ref), m)
		return nil
	}

	existing, err := r.client.Datasources.Get(ctx, m.ID)
	if err != nil {
		r.fail(m.Type(), ref, err)
		return nil
	}
	if err := r.client.Datasources.Delete(ctx, existing.ID); err != nil {
		r.fail(m.Type(), ref, err)
		return nil
	}
	r.logger.Info().Str("datasource", existing.Slug).Msg("datasource deleted")
	return nil
}

func (r *Runner) createDatasourceEntry(ctx context.Context, m model.CreateDatasourceEntry, opts model.RunOptions) error {
	entry := m.Entry
	entry.DatasourceID = m.DatasourceID
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("create entry %q in datasource %d", entry.Name, m.DatasourceID), entry)
		return nil
	}

	if _, err := r.client.DatasourceEntries.Create(ctx, &entry); err != nil {
		r.fail(m.Type(), entry.Name, err)
		return nil
	}
	r.logger.Info().Str("entry", entry.Name).Int64("datasource_id", m.DatasourceID).Msg("datasource entry created")
	return nil
}

func (r *Runner) updateDatasourceEntry(ctx context.Context, m model.UpdateDatasourceEntry, opts model.RunOptions) error {
	ref := fmt.Sprint(m.ID)
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("update datasource entry %s", ref), m.Entry)
		return nil
	}

	existing, err := r.client.DatasourceEntries.Get(ctx, m.ID)
	if err != nil {
		r.fail(m.Type(), ref, err)
		return nil
	}
	updated := *existing
	updated.Name = m.Entry.Name
	updated.Value = m.Entry.Value
	updated.DimensionValue = m.Entry.DimensionValue
	if _, err := r.client.DatasourceEntries.Update(ctx, &updated); err != nil {
		r.fail(m.Type(), ref, err)
		return nil
	}
	r.logger.Info().Str("entry", updated.Name).Msg("datasource entry updated")
	return nil
}

func (r *Runner) deleteDatasourceEntry(ctx context.Context, m model.DeleteDatasourceEntry, opts model.RunOptions) error {
	ref := fmt.Sprint(m.ID)
	if opts.DryRun {
		r.dryRun(m.Type(), fmt.Sprintf("delete datasource entry %s", ref), nil)
		return nil
	}

	if err := r.client.DatasourceEntries.Delete(ctx, m.ID); err != nil {
		r.fail(m.Type(), ref, err)
		return nil
	}
	r.logger.Info().Str("entry", ref).Msg("datasource entry deleted")
	return nil
}

// SyncEntries reconciles the entries of a datasource against desired by
// (name, value) identity: missing ones are created, extra ones deleted and
// matching ones left untouched.
func (r *Runner) SyncEntries(ctx context.Context, datasourceID int64, desired []model.DatasourceEntry) (*EntrySync, error) {
	existing, err := r.client.DatasourceEntries.List(ctx, datasourceID)
	if err != nil {
		return nil, err
	}
	return r.diffEntries(ctx, datasourceID, existing, desired)
}

func (r *Runner) diffEntries(ctx context.Context, datasourceID int64, existing, desired []model.DatasourceEntry) (*EntrySync, error) {
	want := make(map[model.EntryKey]bool, len(desired))
	for _, e := range desired {
		want[e.Key()] = true
	}
	have := make(map[model.EntryKey]bool, len(existing))
	for _, e := range existing {
		have[e.Key()] = true
	}

	var sync EntrySync
	for _, e := range existing {
		if want[e.Key()] {
			sync.Kept++
			continue
		}
		if err := r.client.DatasourceEntries.Delete(ctx, e.ID); err != nil {
			return &sync, fmt.Errorf("failed to delete entry %q: %w", e.Name, err)
		}
		sync.Deleted++
	}

	for _, e := range desired {
		if have[e.Key()] {
			continue
		}
		have[e.Key()] = true
		entry := e
		entry.ID = 0
		entry.DatasourceID = datasourceID
		if _, err := r.client.DatasourceEntries.Create(ctx, &entry); err != nil {
			return &sync, fmt.Errorf("failed to create entry %q: %w", e.Name, err)
		}
		sync.Created++
	}
	return &sync, nil
}
