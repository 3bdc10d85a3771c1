// Package logsink owns the rotating error log file and the helpers used to
// browse it.
package logsink

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/lumberjack.v2"

	"github.com/tipbook/backoffice/internal/shared"
)

const (
	// DefaultFilename is the active log file name.
	DefaultFilename = "error_log.txt"
	// DefaultMaxSizeMB is the rotation threshold.
	DefaultMaxSizeMB = 10
	// DefaultMaxBackups is how many rotated files are kept.
	DefaultMaxBackups = 5
	// DefaultTailLines caps Tail when limit is not positive.
	DefaultTailLines = 1000

	maxLineBytes = 1 << 20
)

var (
	// ErrNotFound indicates the named log file does not exist.
	ErrNotFound = fmt.Errorf("logsink: log file %w", shared.ErrNotFound)
	// ErrInvalidName indicates a name that is not one of the sink's files.
	ErrInvalidName = fmt.Errorf("logsink: file name %w", shared.ErrInvalidInput)
)

// Config sizes the sink.
type Config struct {
	Dir        string
	Filename   string
	MaxSizeMB  int
	MaxBackups int
}

// Sink is an io.Writer that rotates by size.
type Sink struct {
	dir        string
	name       string
	maxSizeMB  int
	maxBackups int

	mu     sync.Mutex
	writer *lumberjack.Logger
}

// File describes the active log or one rotated copy.
type File struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Active  bool      `json:"active"`
}

// Stats summarises the log directory.
type Stats struct {
	TotalFiles  int     `json:"total_files"`
	TotalSize   int64   `json:"total_size"`
	TotalSizeMB float64 `json:"total_size_mb"`
	MaxSizeMB   int     `json:"max_size_mb"`
	MaxBackups  int     `json:"max_backups"`
	Files       []File  `json:"files"`
}

// New creates the log directory and the rotating writer. Zero values fall
// back to the defaults.
func New(cfg Config) (*Sink, error) {
	if cfg.Dir == "" {
		return nil, errors.New("logsink: directory required")
	}
	if cfg.Filename == "" {
		cfg.Filename = DefaultFilename
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: create %s: %w", cfg.Dir, err)
	}
	return &Sink{
		dir:        cfg.Dir,
		name:       cfg.Filename,
		maxSizeMB:  cfg.MaxSizeMB,
		maxBackups: cfg.MaxBackups,
		writer: &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, cfg.Filename),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		},
	}, nil
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Write(p)
}

// Rotate closes the active file and starts a new one.
func (s *Sink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Rotate()
}

// Close flushes and closes the active file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}

// Path returns the active log file path.
func (s *Sink) Path() string {
	return filepath.Join(s.dir, s.name)
}

// Files lists the active log first, then rotated copies newest first.
func (s *Sink) Files() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []File{}, nil
		}
		return nil, fmt.Errorf("logsink: list: %w", err)
	}
	var active *File
	rotated := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.owns(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		f := File{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime(), Active: entry.Name() == s.name}
		if f.Active {
			active = &f
			continue
		}
		rotated = append(rotated, f)
	}
	// Rotated names embed their timestamp, so name order is age order.
	sort.Slice(rotated, func(i, j int) bool { return rotated[i].Name > rotated[j].Name })

	out := make([]File, 0, len(rotated)+1)
	if active != nil {
		out = append(out, *active)
	}
	return append(out, rotated...), nil
}

// owns reports whether name is the active file or one of its rotations.
func (s *Sink) owns(name string) bool {
	if name == s.name {
		return true
	}
	ext := filepath.Ext(s.name)
	prefix := strings.TrimSuffix(s.name, ext) + "-"
	return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext)
}

// Tail returns up to limit lines from the end of the named file, newest first.
func (s *Sink) Tail(name string, limit int) ([]string, error) {
	if name == "" || name != filepath.Base(name) || !s.owns(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if limit <= 0 {
		limit = DefaultTailLines
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("logsink: open %s: %w", name, err)
	}
	defer f.Close()

	ring := make([]string, 0, limit)
	start := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if len(ring) < limit {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[start] = scanner.Text()
		start = (start + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("logsink: read %s: %w", name, err)
	}

	out := make([]string, len(ring))
	for i := range ring {
		out[len(ring)-1-i] = ring[(start+i)%len(ring)]
	}
	return out, nil
}

// Stats totals the sink's files.
func (s *Sink) Stats() (Stats, error) {
	files, err := s.Files()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		TotalFiles: len(files),
		MaxSizeMB:  s.maxSizeMB,
		MaxBackups: s.maxBackups,
		Files:      files,
	}
	for _, f := range files {
		stats.TotalSize += f.Size
	}
	stats.TotalSizeMB = math.Round(float64(stats.TotalSize)/(1024*1024)*100) / 100
	return stats, nil
}
