// Package backup snapshots the live SQLite database into timestamped files
// and exposes a retention-capped view of them.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tipbook/backoffice/internal/platform/artifact"
)

const (
	// Extension is the suffix every backup file carries.
	Extension  = ".db"
	namePrefix = "backup_"
	nameLayout = "20060102_150405"

	// DefaultRetention caps the listing when no retention source is configured.
	DefaultRetention = 7
)

// Storage is the artifact store backups live in. Local paths are needed
// because the SQLite backup API writes to a file.
type Storage interface {
	artifact.Store
	Path(name string) (string, error)
	EnsureRoot() error
	TempPath() string
	Link(ctx context.Context, tmp, name string) (artifact.Artifact, error)
}

// RetentionSource supplies the configured retention count.
type RetentionSource interface {
	BackupRetention(ctx context.Context) (int, error)
}

// Recorder observes backup outcomes.
type Recorder interface {
	ObserveBackup(result string, duration time.Duration, bytes int64)
}

// Artifact is one backup file as exposed by ListBackups.
type Artifact struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// snapshotFunc copies the source database into the file at dst.
type snapshotFunc func(ctx context.Context, dst string) error

// Engine creates, lists and deletes database backups.
type Engine struct {
	store     Storage
	retention RetentionSource
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
	snapshot  snapshotFunc
	group     singleflight.Group
}

// Option customises an Engine.
type Option func(*Engine)

// WithRetention reads the retention count from src.
func WithRetention(src RetentionSource) Option {
	return func(e *Engine) { e.retention = src }
}

// WithRecorder reports every CreateBackup outcome to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNow overrides the clock used for backup names.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs an engine snapshotting source into store.
func NewEngine(source *sql.DB, store Storage, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	e.snapshot = func(ctx context.Context, dst string) error {
		return onlineCopy(ctx, source, dst)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Filename returns the backup name for t.
func Filename(t time.Time) string {
	return namePrefix + t.Format(nameLayout) + Extension
}

// ValidFilename reports whether name is an acceptable backup file name.
func ValidFilename(name string) bool {
	if !strings.HasSuffix(name, Extension) {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	return artifact.ValidName(name)
}

// CreateBackup snapshots the database and returns the new file name. Either
// a complete non-empty backup exists under the returned name, or the call
// fails with a *FailedError and no new file remains. Calls landing in the
// same second share one snapshot. Cancelling ctx aborts the copy; the call
// still waits for cleanup before returning.
func (e *Engine) CreateBackup(ctx context.Context) (string, error) {
	name := Filename(e.now())
	v, err, _ := e.group.Do(name, func() (interface{}, error) {
		return e.create(ctx, name)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (e *Engine) create(ctx context.Context, name string) (string, error) {
	start := time.Now()
	size, err := e.createFile(ctx, name)
	if e.recorder != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		e.recorder.ObserveBackup(result, time.Since(start), size)
	}
	if err != nil {
		e.logger.Error("backup failed", slog.String("filename", name), slog.Any("error", err))
		return "", err
	}
	e.logger.Info("backup created", slog.String("filename", name), slog.Int64("bytes", size))
	return name, nil
}

// createFile copies into a hidden temp file and links it under name once
// verified, so listings never show an in-progress backup.
func (e *Engine) createFile(ctx context.Context, name string) (int64, error) {
	fail := func(err error) (int64, error) {
		return 0, &FailedError{Filename: name, Err: err}
	}
	if err := e.store.EnsureRoot(); err != nil {
		return fail(err)
	}
	if _, err := e.store.Stat(ctx, name); err == nil {
		return fail(fmt.Errorf("%w: %s", artifact.ErrExists, name))
	} else if !errors.Is(err, artifact.ErrNotFound) {
		return fail(err)
	}

	tmp := e.store.TempPath()
	if err := e.snapshot(ctx, tmp); err != nil {
		removePartial(tmp)
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		removePartial(tmp)
		return fail(err)
	}

	info, err := os.Stat(tmp)
	switch {
	case errors.Is(err, fs.ErrNotExist), err == nil && info.Size() == 0:
		removePartial(tmp)
		return fail(errors.New("verify: backup file is empty"))
	case err != nil:
		removePartial(tmp)
		return fail(fmt.Errorf("verify: %w", err))
	}

	a, err := e.store.Link(ctx, tmp, name)
	if err != nil {
		removePartial(tmp)
		return fail(err)
	}
	return a.Size, nil
}

func removePartial(path string) {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Default().Warn("remove partial backup", slog.String("path", p), slog.Any("error", err))
		}
	}
}

// ListBackups returns the newest backups, most recent first, capped at the
// retention count. It never deletes anything.
func (e *Engine) ListBackups(ctx context.Context) ([]Artifact, error) {
	all, err := e.backups(ctx)
	if err != nil {
		return nil, err
	}
	keep := e.retentionCount(ctx)
	if len(all) > keep {
		all = all[:keep]
	}
	return all, nil
}

func (e *Engine) backups(ctx context.Context) ([]Artifact, error) {
	items, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	out := make([]Artifact, 0, len(items))
	for _, item := range items {
		if !strings.HasSuffix(item.Name, Extension) {
			continue
		}
		out = append(out, Artifact{Filename: item.Name, Size: item.Size, CreatedAt: item.ModTime})
	}
	return out, nil
}

func (e *Engine) retentionCount(ctx context.Context) int {
	if e.retention == nil {
		return DefaultRetention
	}
	n, err := e.retention.BackupRetention(ctx)
	if err != nil {
		e.logger.Warn("backup retention lookup failed", slog.Any("error", err))
	}
	if n <= 0 {
		return DefaultRetention
	}
	return n
}

// DeleteBackup removes a backup. It returns false without touching the
// filesystem for invalid names, and false when the file does not exist or
// cannot be removed.
func (e *Engine) DeleteBackup(ctx context.Context, filename string) bool {
	return e.RemoveBackup(ctx, filename) == nil
}

// RemoveBackup is DeleteBackup with the reason for a failure: ErrInvalidFilename,
// ErrNotFound, or the underlying filesystem error.
func (e *Engine) RemoveBackup(ctx context.Context, filename string) error {
	if !ValidFilename(filename) {
		e.logger.Warn("rejected backup delete", slog.String("filename", filename))
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if err := e.store.Delete(ctx, filename); err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		e.logger.Error("delete backup", slog.String("filename", filename), slog.Any("error", err))
		return fmt.Errorf("backup: delete %s: %w", filename, err)
	}
	e.logger.Info("backup deleted", slog.String("filename", filename))
	return nil
}

// BackupPath resolves a validated backup name to its file path.
func (e *Engine) BackupPath(ctx context.Context, filename string) (string, error) {
	if !ValidFilename(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	if _, err := e.store.Stat(ctx, filename); err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return "", fmt.Errorf("backup: stat %s: %w", filename, err)
	}
	return e.store.Path(filename)
}

// Prune deletes backups beyond the retention count and returns how many
// were removed.
func (e *Engine) Prune(ctx context.Context) (int, error) {
	all, err := e.backups(ctx)
	if err != nil {
		return 0, err
	}
	keep := e.retentionCount(ctx)
	removed := 0
	for i := keep; i < len(all); i++ {
		if e.DeleteBackup(ctx, all[i].Filename) {
			removed++
		}
	}
	return removed, nil
}
