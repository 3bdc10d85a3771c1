package backup

import (
	"errors"
	"fmt"

	"github.com/tipbook/backoffice/internal/shared"
)

var (
	// ErrBackupFailed matches every *FailedError.
	ErrBackupFailed = errors.New("backup: failed")
	// ErrInvalidFilename indicates a name without the backup extension or one
	// that could escape the backup directory.
	ErrInvalidFilename = fmt.Errorf("backup: filename %w", shared.ErrInvalidInput)
	// ErrNotFound indicates the named backup does not exist.
	ErrNotFound = fmt.Errorf("backup: %w", shared.ErrNotFound)
)

// FailedError reports a snapshot that did not complete. No artifact is left
// behind when it is returned.
type FailedError struct {
	Filename string
	Err      error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("backup: create %s: %v", e.Filename, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBackupFailed) match.
func (e *FailedError) Is(target error) bool { return target == ErrBackupFailed }
