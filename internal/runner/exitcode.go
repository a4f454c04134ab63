package runner

import (
	"errors"
	"fmt"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/tim"
	"github.com/JYU-DI/timsync/internal/treesync"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitStructural = 2
	ExitRemote     = 3
)

// ExitError is returned when the command should exit with a non-zero code.
// Using a typed error instead of os.Exit ensures deferred cleanup runs.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

var structural = []error{
	treesync.ErrSyncTargetDoesNotExist,
	treesync.ErrSyncTargetNotAFolder,
	treesync.ErrItemNameConflict,
	treesync.ErrItemTypeConflict,
	config.ErrInvalid,
	config.ErrUnknownTarget,
	config.ErrVersionTooOld,
	project.ErrNotFound,
	project.ErrNotADirectory,
	project.ErrAlreadyInitialized,
}

var remote = []error{
	tim.ErrNotFound,
	tim.ErrInvalidLogin,
	tim.ErrNoXSRFToken,
}

// ExitCodeFromError maps an error to the process exit code: 2 for project
// structure and configuration problems, 3 for failures reported by the
// remote store and 1 for everything else.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	for _, target := range structural {
		if errors.Is(err, target) {
			return ExitStructural
		}
	}
	var typeErr *tim.ItemTypeError
	if errors.As(err, &typeErr) {
		return ExitStructural
	}
	for _, target := range remote {
		if errors.Is(err, target) {
			return ExitRemote
		}
	}
	var statusErr *tim.StatusError
	if errors.As(err, &statusErr) {
		return ExitRemote
	}
	return ExitGeneral
}
