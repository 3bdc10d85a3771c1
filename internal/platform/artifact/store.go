// Package artifact stores generated files (database snapshots, CSV exports)
// by logical name so engines never build filesystem paths themselves.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const tempPrefix = ".tmp-"

var (
	// ErrNotFound indicates the named artifact does not exist.
	ErrNotFound = errors.New("artifact: not found")
	// ErrInvalidName indicates a name that could escape the store root.
	ErrInvalidName = errors.New("artifact: invalid name")
	// ErrExists indicates the name is already taken.
	ErrExists = errors.New("artifact: already exists")
)

// Artifact describes a stored file.
type Artifact struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store is the contract engines depend on.
type Store interface {
	List(ctx context.Context) ([]Artifact, error)
	Stat(ctx context.Context, name string) (Artifact, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Write(ctx context.Context, name string, r io.Reader) (Artifact, error)
	Delete(ctx context.Context, name string) error
}

// Dir is a Store rooted at a local directory.
type Dir struct {
	root string
}

// NewDir constructs a directory store. The directory is created lazily.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the directory backing the store.
func (d *Dir) Root() string {
	return d.root
}

// ValidName reports whether name is a plain file name inside the store.
func ValidName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return !strings.HasPrefix(name, tempPrefix)
}

// Path resolves name to a file path inside the root.
func (d *Dir) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name), nil
}

// EnsureRoot creates the root directory.
func (d *Dir) EnsureRoot() error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("artifact: create root: %w", err)
	}
	return nil
}

// TempPath returns a fresh path inside the root that List never reports.
func (d *Dir) TempPath() string {
	return filepath.Join(d.root, tempPrefix+uuid.NewString())
}

// Link publishes the file at tmp under name and removes tmp. An existing
// artifact is never replaced: ErrExists is returned and tmp is left for the
// caller to clean up.
func (d *Dir) Link(ctx context.Context, tmp, name string) (Artifact, error) {
	path, err := d.Path(name)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return Artifact{}, fmt.Errorf("artifact: link %s: %w", name, err)
	}
	_ = os.Remove(tmp)
	a, err := d.Stat(ctx, name)
	if err != nil {
		_ = os.Remove(path)
		return Artifact{}, err
	}
	return a, nil
}

// List returns regular files newest first. A missing root yields an empty list.
func (d *Dir) List(ctx context.Context) ([]Artifact, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: list: %w", err)
	}
	out := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("artifact: stat %s: %w", entry.Name(), err)
		}
		out = append(out, fromInfo(info))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name > out[j].Name
		}
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Stat describes a single artifact.
func (d *Dir) Stat(_ context.Context, name string) (Artifact, error) {
	path, err := d.Path(name)
	if err != nil {
		return Artifact{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Artifact{}, fmt.Errorf("artifact: stat %s: %w", name, err)
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fromInfo(info), nil
}

// Open returns a reader for the artifact.
func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("artifact: open %s: %w", name, err)
	}
	return f, nil
}

// Write stores r under name. Content lands in a temp file first and is
// renamed into place, so readers never observe a partial artifact.
func (d *Dir) Write(ctx context.Context, name string, r io.Reader) (Artifact, error) {
	path, err := d.Path(name)
	if err != nil {
		return Artifact{}, err
	}
	if err := d.EnsureRoot(); err != nil {
		return Artifact{}, err
	}
	tmp := filepath.Join(d.root, tempPrefix+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact: create temp: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}
	if _, err := io.Copy(f, readerWithContext(ctx, r)); err != nil {
		cleanup()
		return Artifact{}, fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return Artifact{}, fmt.Errorf("artifact: sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return Artifact{}, fmt.Errorf("artifact: close %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Artifact{}, fmt.Errorf("artifact: rename %s: %w", name, err)
	}
	return d.Stat(ctx, name)
}

// Delete removes the artifact.
func (d *Dir) Delete(_ context.Context, name string) error {
	path, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("artifact: delete %s: %w", name, err)
	}
	return nil
}

func fromInfo(info fs.FileInfo) Artifact {
	return Artifact{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	if ctx == nil {
		return r
	}
	return ctxReader{ctx: ctx, r: r}
}
