// Package core provides the migration runner.
//
// INVARIANTS:
// - Migrations run one at a time, end to end
// - Dry-run performs ZERO calls against the API client
// - Rollback snapshots are written BEFORE the update they guard
// - NotFound and remote failures abort component, group and story handlers;
//   datasource handlers log them and carry on
package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
)

// Runner dispatches migrations to their handlers.
type Runner struct {
	client    *provider.Client
	rollbacks *RollbackWriter
	journal   *RunJournal
	walker    *Walker
	logger    zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithJournal records every Run in j.
func WithJournal(j *RunJournal) RunnerOption {
	return func(r *Runner) { r.journal = j }
}

// WithWalker overrides the content tree walker.
func WithWalker(w *Walker) RunnerOption {
	return func(r *Runner) { r.walker = w }
}

// WithLogger sets the runner logger.
func WithLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner over client, writing rollback files with rollbacks.
func NewRunner(client *provider.Client, rollbacks *RollbackWriter, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:    client,
		rollbacks: rollbacks,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.rollbacks == nil {
		r.rollbacks = NewRollbackWriter(DefaultRollbackDir)
	}
	if r.walker == nil {
		r.walker = NewWalker(r.logger, DefaultWalkConcurrency)
	}
	return r
}

// Run executes one migration loaded from source, journaling it when a
// journal is configured.
func (r *Runner) Run(ctx context.Context, source string, m model.Migration, opts model.RunOptions) error {
	if r.journal == nil {
		return r.Dispatch(ctx, m, opts)
	}

	runID, err := r.journal.Begin(ctx, m.Type(), source, opts.DryRun)
	if err != nil {
		return fmt.Errorf("failed to journal run: %w", err)
	}

	runErr := r.Dispatch(ctx, m, opts)

	// The journal update must land even if ctx was cancelled mid-run.
	jctx := context.WithoutCancel(ctx)
	if runErr != nil {
		if err := r.journal.Rollback(jctx, runID, runErr.Error()); err != nil {
			r.logger.Error().Err(err).Str("run_id", runID).Msg("failed to journal run failure")
		}
		return runErr
	}
	if err := r.journal.Commit(jctx, runID); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", runID, err)
	}
	return nil
}

// Dispatch routes m to its handler.
func (r *Runner) Dispatch(ctx context.Context, m model.Migration, opts model.RunOptions) error {
	switch mig := m.(type) {
	case model.CreateComponentGroup:
		return r.createComponentGroup(ctx, mig, opts)
	case model.UpdateComponentGroup:
		return r.updateComponentGroup(ctx, mig, opts)
	case model.DeleteComponentGroup:
		return r.deleteComponentGroup(ctx, mig, opts)
	case model.CreateComponent:
		return r.createComponent(ctx, mig, opts)
	case model.UpdateComponent:
		return r.updateComponent(ctx, mig, opts)
	case model.DeleteComponent:
		return r.deleteComponent(ctx, mig, opts)
	case model.CreateStory:
		return r.createStory(ctx, mig, opts)
	case model.UpdateStory:
		return r.updateStory(ctx, mig, opts)
	case model.DeleteStory:
		return r.deleteStory(ctx, mig, opts)
	case model.CreateDatasource:
		return r.createDatasource(ctx, mig, opts)
	case model.UpdateDatasource:
		return r.updateDatasource(ctx, mig, opts)
	case model.DeleteDatasource:
		return r.deleteDatasource(ctx, mig, opts)
	case model.CreateDatasourceEntry:
		return r.createDatasourceEntry(ctx, mig, opts)
	case model.UpdateDatasourceEntry:
		return r.updateDatasourceEntry(ctx, mig, opts)
	case model.DeleteDatasourceEntry:
		return r.deleteDatasourceEntry(ctx, mig, opts)
	case model.TransformEntries:
		_, err := r.transformEntries(ctx, mig, opts)
		return err
	case nil:
		return fmt.Errorf("%w: <nil>", ErrUnsupportedMigration)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMigration, m.Type())
	}
}

// dryRun logs what a handler would apply.
func (r *Runner) dryRun(t model.Type, what string, payload any) {
	ev := r.logger.Info().Bool("dry_run", true).Str("type", string(t))
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev = ev.RawJSON("payload", data)
		}
	}
	ev.Msgf("[DRY-RUN] Would %s", what)
}

// fail logs a handler failure naming the resource and operation.
func (r *Runner) fail(t model.Type, resource string, err error) error {
	r.logger.Error().Err(err).Str("type", string(t)).Str("resource", resource).Msg("migration step failed")
	return err
}

// writeRollback stores pre-mutation snapshots.
func (r *Runner) writeRollback(resource, kind string, snapshots []any) (string, error) {
	path, err := r.rollbacks.Write(resource, kind, snapshots)
	if err != nil {
		return "", err
	}
	r.logger.Info().Str("file", path).Int("snapshots", len(snapshots)).Msg("rollback written")
	return path, nil
}
