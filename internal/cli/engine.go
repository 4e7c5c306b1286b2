// Package cli provides the engine integration for the storymig CLI.
// This file contains the wiring and command implementations.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/contentops/storymig/internal/config"
	"github.com/contentops/storymig/internal/core"
	"github.com/contentops/storymig/internal/loader"
	"github.com/contentops/storymig/internal/logging"
	"github.com/contentops/storymig/internal/model"
	"github.com/contentops/storymig/internal/provider"
	"github.com/contentops/storymig/internal/provider/mapi"
)

// Engine holds the storymig components for one invocation.
type Engine struct {
	Config     *config.Config
	Logger     *logging.Logger
	Transforms *core.TransformRegistry
	Loader     *loader.Loader
	Queue      *provider.RequestQueue
	Rollbacks  *core.RollbackWriter

	journalDB *core.JournalDB
	journal   *core.RunJournal
}

// Global engine instance
var engine *Engine

// InitEngine loads config and builds the logger, loader and rollback writer.
// The journal and API client are opened on first use.
func InitEngine() (*Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log
	switch {
	case verbose:
		logCfg.Level = zerolog.DebugLevel.String()
	case quiet:
		logCfg.Level = zerolog.WarnLevel.String()
	}
	logger, err := logging.New(logCfg, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	transforms := core.NewTransformRegistry()
	return &Engine{
		Config:     cfg,
		Logger:     logger,
		Transforms: transforms,
		Loader:     loader.New(transforms),
		Queue:      provider.NewRequestQueue(cfg.RateLimit),
		Rollbacks:  core.NewRollbackWriter(cfg.RollbackDir),
	}, nil
}

// GetEngine returns the engine, initializing if needed.
func GetEngine() (*Engine, error) {
	if engine != nil {
		return engine, nil
	}

	var err error
	engine, err = InitEngine()
	return engine, err
}

// closeEngine releases the global engine.
func closeEngine() {
	if engine == nil {
		return
	}
	if err := engine.Close(); err != nil {
		engine.Logger.Warn().Err(err).Msg("failed to close engine")
	}
	engine = nil
}

// Close stops the request queue and closes the journal and log file.
func (e *Engine) Close() error {
	e.Queue.Close()
	var errs []error
	if e.journalDB != nil {
		errs = append(errs, e.journalDB.Close())
	}
	errs = append(errs, e.Logger.Close())
	return errors.Join(errs...)
}

// Journal opens the run journal, creating its schema on first use.
func (e *Engine) Journal(ctx context.Context) (*core.RunJournal, error) {
	if e.journal != nil {
		return e.journal, nil
	}
	db, err := core.OpenJournalDB(e.Config.JournalPath, e.Config.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	j := core.NewRunJournal(db.DB())
	if err := j.Initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	e.journalDB = db
	e.journal = j
	return j, nil
}

// Client builds the API client. space and token override the config.
func (e *Engine) Client(space, token string) *provider.Client {
	transport := mapi.New(mapi.WithLogger(e.Logger.Logger))
	return provider.NewClient(transport, e.Queue, e.Config.Credentials(space, token))
}

// Runner builds a journaled runner over client.
func (e *Engine) Runner(client *provider.Client, journal *core.RunJournal) *core.Runner {
	return core.NewRunner(client, e.Rollbacks,
		core.WithJournal(journal),
		core.WithLogger(e.Logger.Logger),
		core.WithWalker(core.NewWalker(e.Logger.Logger, core.DefaultWalkConcurrency)),
	)
}

// loadAll loads every file before anything runs, so a typo in the last file
// does not leave the space half-migrated.
func (e *Engine) loadAll(files []string) ([]loader.Loaded, error) {
	var all []loader.Loaded
	for _, f := range files {
		loaded, err := e.Loader.LoadFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, loaded...)
	}
	return all, nil
}

// --- Command Implementations ---

// RunMigrate loads and runs every migration in files.
func RunMigrate(ctx context.Context, files []string, flags migrateFlags) error {
	mode, err := model.ParsePublishMode(flags.publish)
	if err != nil {
		return err
	}

	e, err := GetEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	migrations, err := e.loadAll(files)
	if err != nil {
		return err
	}

	if flags.throttle > 0 {
		e.Queue.SetRate(flags.throttle)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	journal, err := e.Journal(ctx)
	if err != nil {
		return err
	}
	runner := e.Runner(e.Client(flags.space, flags.token), journal)

	opts := model.RunOptions{
		DryRun:           dryRun,
		Publish:          mode,
		PublishLanguages: flags.publishLanguages,
		Space:            flags.space,
		Token:            flags.token,
	}

	if dryRun {
		printTitle(fmt.Sprintf("[DRY-RUN] Would run %d migration(s)", len(migrations)))
	} else {
		printTitle(fmt.Sprintf("Running %d migration(s)", len(migrations)))
	}

	start := time.Now()
	done := 0
	for _, l := range migrations {
		if err := runner.Run(ctx, l.Name(), l.Migration, opts); err != nil {
			printFail("%s (%s): %v", l.Name(), l.Migration.Type(), err)
			printBox(
				fmt.Sprintf("Completed: %d/%d", done, len(migrations)),
				styles.Error.Render("Halted at "+l.Name()),
			)
			return fmt.Errorf("migration %s failed: %w", l.Name(), err)
		}
		done++
		printOK("%s (%s)", l.Name(), l.Migration.Type())
	}

	printBox(
		fmt.Sprintf("Completed: %d/%d", done, len(migrations)),
		styles.Muted.Render(fmt.Sprintf("Elapsed: %s", time.Since(start).Round(time.Millisecond))),
		styles.Muted.Render("Rollbacks: "+e.Rollbacks.Dir()),
	)
	return nil
}

// RunValidate loads every migration in files and reports problems.
func RunValidate(files []string) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	failed := 0
	for _, f := range files {
		loaded, err := e.Loader.LoadFile(f)
		if err != nil {
			failed++
			printFail("%v", err)
			continue
		}
		for _, l := range loaded {
			printOK("%s (%s)", l.Name(), l.Migration.Type())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(files))
	}
	return nil
}

// RunHistory lists journaled runs, newest first.
func RunHistory(ctx context.Context, limit int, pendingOnly bool) error {
	e, err := GetEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	journal, err := e.Journal(ctx)
	if err != nil {
		return err
	}

	var runs []*model.RunRecord
	if pendingOnly {
		runs, err = journal.Pending(ctx)
	} else {
		runs, err = journal.List(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No journaled runs.")
		return nil
	}

	fmt.Fprintf(out, "Runs (%d):\n", len(runs))
	fmt.Fprintln(out, "Run ID                               Type                     State        Created")
	fmt.Fprintln(out, separator)
	for _, r := range runs {
		state := string(r.State)
		if r.DryRun {
			state += "*"
		}
		fmt.Fprintf(out, "%-36s %-24s %-12s %s\n",
			r.RunID,
			r.MigrationType,
			stateStyle(r.State).Render(fmt.Sprintf("%-12s", state)),
			r.CreatedAt.Local().Format("2006-01-02 15:04"))
		if verbose {
			fmt.Fprintf(out, "  %s\n", styles.Muted.Render(r.Source))
			if r.Error != "" {
				fmt.Fprintf(out, "  %s\n", styles.Error.Render(r.Error))
			}
		}
	}
	fmt.Fprintln(out, styles.Muted.Render("* dry run"))
	return nil
}

func stateStyle(s model.RunState) lipgloss.Style {
	switch s {
	case model.RunStateCommitted:
		return styles.Success
	case model.RunStateRolledBack:
		return styles.Error
	default:
		return styles.Warning
	}
}

// RunRollbacks lists rollback files, newest first.
func RunRollbacks() error {
	e, err := GetEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	files, err := e.Rollbacks.List()
	if err != nil {
		return fmt.Errorf("failed to list rollback files: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No rollback files in %s.\n", e.Rollbacks.Dir())
		return nil
	}

	fmt.Fprintf(out, "Rollback files in %s (%d):\n", e.Rollbacks.Dir(), len(files))
	fmt.Fprintln(out, "Name                                                         Size       Modified")
	fmt.Fprintln(out, separator)
	for _, f := range files {
		fmt.Fprintf(out, "%-60s %-10s %s\n",
			f.Name,
			formatBytes(f.Size),
			f.ModTime.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// RunTransforms lists the transforms migration files may name.
func RunTransforms() error {
	e, err := GetEngine()
	if err != nil {
		return err
	}
	defer closeEngine()

	for _, name := range e.Transforms.Names() {
		fmt.Fprintln(out, name)
	}
	if len(e.Transforms.Names()) == 0 {
		printWarn("no transforms registered")
	}
	return nil
}

// formatBytes formats bytes as human-readable.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
