package cloudvfs

import (
	"context"
	"errors"
	"fmt"
)

// Common file system errors
var (
	ErrInvalidPath         = errors.New("invalid path")
	ErrInvalidConnection   = errors.New("invalid connection")
	ErrNotExist            = errors.New("file does not exist")
	ErrExist               = errors.New("file already exists")
	ErrNotSupported        = errors.New("operation not supported")
	ErrPermission          = errors.New("permission denied")
	ErrAuthRequired        = errors.New("authentication required")
	ErrAuthFailed          = errors.New("authentication failed")
	ErrKeyAuthNotPermitted = errors.New("key based authentication not permitted")
	ErrUserAbort           = errors.New("aborted by user")
	ErrCopyIntegrity       = errors.New("copy reported success but destination is missing")
)

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// StoreError carries a diagnostic code reported by the object store for
// failures that have no sentinel of their own.
type StoreError struct {
	Code       string
	StatusCode int
	Err        error
}

func (e *StoreError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("store error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("store error %s (status %d): %v", e.Code, e.StatusCode, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// CopyIntegrityError is returned when the store reports a completed copy
// but the destination blob cannot be found afterwards.
type CopyIntegrityError struct {
	Source      string
	Destination string
}

func (e *CopyIntegrityError) Error() string {
	return fmt.Sprintf("copy %s -> %s: %v", e.Source, e.Destination, ErrCopyIntegrity)
}

func (e *CopyIntegrityError) Unwrap() error {
	return ErrCopyIntegrity
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file or directory
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// ResultCode is the coarse outcome reported to a host for each operation.
type ResultCode int

const (
	CodeOK ResultCode = iota
	CodeFileExists
	CodeFileNotFound
	CodeUnsupported
	CodeUserAbort
	CodeAuthRequired
	CodeAuthError
)

var resultCodeNames = map[ResultCode]string{
	CodeOK:           "OK",
	CodeFileExists:   "FileExists",
	CodeFileNotFound: "FileNotFound",
	CodeUnsupported:  "Unsupported",
	CodeUserAbort:    "UserAbort",
	CodeAuthRequired: "AuthRequired",
	CodeAuthError:    "AuthError",
}

func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

// ResultCodeOf maps an operation error onto a ResultCode. Errors with no
// more specific code are reported as CodeUnsupported, ErrCopyIntegrity
// included. Callers that must tell an integrity failure apart check it with
// errors.Is.
func ResultCodeOf(err error) ResultCode {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrUserAbort), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeUserAbort
	case errors.Is(err, ErrExist):
		return CodeFileExists
	case errors.Is(err, ErrNotExist):
		return CodeFileNotFound
	case errors.Is(err, ErrAuthRequired):
		return CodeAuthRequired
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrKeyAuthNotPermitted):
		return CodeAuthError
	default:
		return CodeUnsupported
	}
}

// abortError converts context cancellation into ErrUserAbort and leaves
// other errors untouched.
func abortError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUserAbort, err)
	}
	return err
}
