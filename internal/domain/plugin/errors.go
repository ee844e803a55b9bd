package plugin

import (
	"errors"
	"fmt"
)

// ErrConfiguration is returned when the inputs are insufficient to resolve
// a plugin directory or describe an invalid plugin.
var ErrConfiguration = errors.New("configuration error")

// Filesystem operation names used in FilesystemError.
const (
	OpRemove   = "remove"
	OpCreate   = "create"
	OpCopy     = "copy"
	OpRename   = "rename"
	OpStat     = "stat"
	OpChecksum = "checksum"
)

// FilesystemError reports a failed deletion, creation, copy or rename step.
type FilesystemError struct {
	// Op is the failed operation, one of the Op* constants.
	Op string
	// Path is the filesystem path the operation was applied to.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// NewFilesystemError wraps err into a FilesystemError. It returns nil for a nil err.
func NewFilesystemError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	return &FilesystemError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
