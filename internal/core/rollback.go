// Package core provides the rollback file writer.
//
// INVARIANTS:
// - Snapshots are pre-mutation states, written BEFORE the write they guard
// - One file per (resource, kind) per run; existing files are never overwritten
// - Files are never read back by the engine; restoring is an operator action
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/contentops/storymig/internal/model"
)

// DefaultRollbackDir is where rollback files go unless configured otherwise.
const DefaultRollbackDir = "migrations/rollback"

// rollbackDateLayout is the basic ISO-8601 form, safe in file names.
const rollbackDateLayout = "20060102T150405"

// RollbackWriter persists pre-mutation snapshots as JSON files.
type RollbackWriter struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// RollbackFile describes one written rollback file.
type RollbackFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// NewRollbackWriter creates a writer rooted at dir.
func NewRollbackWriter(dir string) *RollbackWriter {
	if dir == "" {
		dir = DefaultRollbackDir
	}
	return &RollbackWriter{dir: dir, now: time.Now}
}

// WithClock overrides the clock used for file names.
func (w *RollbackWriter) WithClock(now func() time.Time) *RollbackWriter {
	w.now = now
	return w
}

// Dir returns the rollback directory.
func (w *RollbackWriter) Dir() string {
	return w.dir
}

// Write stores snapshots as a pretty-printed JSON array in
// <dir>/<date>_rollback_<resource>_<kind>.json and returns the path.
func (w *RollbackWriter) Write(resource, kind string, snapshots []any) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if snapshots == nil {
		snapshots = []any{}
	}
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode rollback snapshot: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create rollback directory: %w", err)
	}

	base := fmt.Sprintf("%s_rollback_%s_%s", w.now().Format(rollbackDateLayout), fileSlug(resource), fileSlug(kind))
	for n := 1; ; n++ {
		name := base + ".json"
		if n > 1 {
			name = fmt.Sprintf("%s-%d.json", base, n)
		}
		path := filepath.Join(w.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create rollback file: %w", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write rollback file: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to sync rollback file: %w", err)
		}
		return path, f.Close()
	}
}

// List returns the rollback files in the directory, newest first.
// A missing directory yields an empty list.
func (w *RollbackWriter) List() ([]RollbackFile, error) {
	entries, err := os.ReadDir(w.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rollback directory: %w", err)
	}

	var files []RollbackFile
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), "_rollback_") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, RollbackFile{
			Name:    e.Name(),
			Path:    filepath.Join(w.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	// The date prefix sorts lexically.
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	return files, nil
}

func fileSlug(s string) string {
	if slug := model.Slugify(s); slug != "" {
		return slug
	}
	return "unnamed"
}
