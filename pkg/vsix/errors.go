package vsix

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation on an archive after Close.
var ErrClosed = errors.New("vsix: package is closed")

// ErrLocked is wrapped by the *OpenError returned when another handle holds
// the package.
var ErrLocked = errors.New("vsix: package is in use")

// OpenError reports a package that could not be opened: missing, locked,
// unreadable or not a zip.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open package %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// PartNotFoundError reports a lookup of a part that does not exist.
type PartNotFoundError struct {
	Part string
}

func (e *PartNotFoundError) Error() string {
	return fmt.Sprintf("part %s not found in package", e.Part)
}
