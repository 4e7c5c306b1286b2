// Package core provides the run journal.
//
// INVARIANTS:
// - A run is journaled as pending BEFORE its first remote call
// - Every run ends committed or rolled_back; failures keep their error text
// - The journal DB is encrypted at rest via SQLCipher when a passphrase is set
// - A wrong passphrase fails at open, never later
package core

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/contentops/storymig/internal/model"
)

// JournalDB wraps the (optionally SQLCipher-encrypted) journal database.
type JournalDB struct {
	db        *sql.DB
	dbPath    string
	encrypted bool
}

// journalBusyTimeout is how long a connection waits on a locked journal.
const journalBusyTimeout = 5 * time.Second

// OpenJournalDB opens the run journal at dbPath, creating its parent
// directory with mode 0700. The connection runs in WAL mode with
// synchronous=NORMAL and a busy timeout. A non-empty passphrase becomes the
// SQLCipher key; it is URL-escaped into the DSN, so any characters are
// allowed. A wrong passphrase for an existing journal fails here rather than
// on the first query.
func OpenJournalDB(dbPath string, passphrase string) (*JournalDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	encrypted := passphrase != ""
	dsn := journalDSN(dbPath, passphrase)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Reading the schema fails if the key is wrong.
	if encrypted {
		var n int
		if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid passphrase or corrupted database: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &JournalDB{db: db, dbPath: dbPath, encrypted: encrypted}, nil
}

func journalDSN(dbPath, passphrase string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", strconv.FormatInt(journalBusyTimeout.Milliseconds(), 10))
	if passphrase != "" {
		q.Set("_pragma_key", passphrase)
	}
	return "file:" + dbPath + "?" + q.Encode()
}

// DB returns the underlying database connection.
func (j *JournalDB) DB() *sql.DB {
	return j.db
}

// Close closes the database connection.
func (j *JournalDB) Close() error {
	return j.db.Close()
}

// IsEncrypted returns whether the database is encrypted.
func (j *JournalDB) IsEncrypted() bool {
	return j.encrypted
}

// Path returns the database file path.
func (j *JournalDB) Path() string {
	return j.dbPath
}

// RunJournal records migration runs.
type RunJournal struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewRunJournal creates a run journal over db. Call Initialize before use.
func NewRunJournal(db *sql.DB) *RunJournal {
	return &RunJournal{db: db, now: time.Now}
}

// Initialize creates the schema if it doesn't exist.
func (rj *RunJournal) Initialize(ctx context.Context) error {
	rj.mu.Lock()
	defer rj.mu.Unlock()

	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id          TEXT NOT NULL UNIQUE,
    migration_type  TEXT NOT NULL,
    source          TEXT NOT NULL DEFAULT '',
    dry_run         INTEGER NOT NULL DEFAULT 0,
    state           TEXT NOT NULL DEFAULT 'pending'
                    CHECK(state IN ('pending', 'committed', 'rolled_back')),
    error           TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL,
    completed_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
`
	if _, err := rj.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}
	return nil
}

// Begin journals a new pending run and returns its id.
func (rj *RunJournal) Begin(ctx context.Context, migrationType model.Type, source string, dryRun bool) (string, error) {
	rj.mu.Lock()
	defer rj.mu.Unlock()

	runID := uuid.New().String()
	query := `
		INSERT INTO runs (run_id, migration_type, source, dry_run, state, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?)
	`
	_, err := rj.db.ExecContext(ctx, query, runID, string(migrationType), source, dryRun, rj.stamp())
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	return runID, nil
}

// Commit marks a run as committed.
func (rj *RunJournal) Commit(ctx context.Context, runID string) error {
	return rj.finish(ctx, runID, model.RunStateCommitted, "")
}

// Rollback marks a run as rolled back with the error that ended it.
func (rj *RunJournal) Rollback(ctx context.Context, runID string, errMsg string) error {
	return rj.finish(ctx, runID, model.RunStateRolledBack, errMsg)
}

func (rj *RunJournal) finish(ctx context.Context, runID string, state model.RunState, errMsg string) error {
	rj.mu.Lock()
	defer rj.mu.Unlock()

	query := `UPDATE runs SET state = ?, error = ?, completed_at = ? WHERE run_id = ? AND state = 'pending'`
	res, err := rj.db.ExecContext(ctx, query, string(state), errMsg, rj.stamp(), runID)
	if err != nil {
		return fmt.Errorf("failed to mark run %s %s: %w", runID, state, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s is not pending", runID)
	}
	return nil
}

// Get returns one run, or nil if unknown.
func (rj *RunJournal) Get(ctx context.Context, runID string) (*model.RunRecord, error) {
	rj.mu.Lock()
	defer rj.mu.Unlock()

	row := rj.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// List returns the most recent runs first. limit <= 0 means all.
func (rj *RunJournal) List(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	rj.mu.Lock()
	defer rj.mu.Unlock()

	query := selectRuns + ` ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return rj.query(ctx, query, args...)
}

// Pending returns runs that never finished, oldest first. A pending run
// means the process died mid-migration.
func (rj *RunJournal) Pending(ctx context.Context) ([]*model.RunRecord, error) {
	rj.mu.Lock()
	defer rj.mu.Unlock()

	return rj.query(ctx, selectRuns+` WHERE state = 'pending' ORDER BY id ASC`)
}

const selectRuns = `
		SELECT id, run_id, migration_type, source, dry_run, state, error, created_at, completed_at
		FROM runs`

func (rj *RunJournal) query(ctx context.Context, query string, args ...any) ([]*model.RunRecord, error) {
	rows, err := rj.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []*model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*model.RunRecord, error) {
	var rec model.RunRecord
	var migrationType, state, createdAt string
	var completedAt sql.NullString
	if err := s.Scan(&rec.ID, &rec.RunID, &migrationType, &rec.Source, &rec.DryRun,
		&state, &rec.Error, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	rec.MigrationType = model.Type(migrationType)
	rec.State = model.RunState(state)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, completedAt.String)
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func (rj *RunJournal) stamp() string {
	return rj.now().UTC().Format(time.RFC3339Nano)
}
