package cloudvfs

import (
	"context"
	"errors"
)

// ErrReadOnly is returned when a write operation is attempted on a read-only file system.
var ErrReadOnly = errors.New("file system is read-only")

// ============================================================================
// ReadOnlyFileSystem Decorator
// ============================================================================

// ReadOnlyFileSystem wraps a FileSystem so that nothing in the store is
// changed. Listing, metadata, checksums and downloads pass through.
// Downloads that would delete the source blob are refused.
//
// Example:
//
//	ro := cloudvfs.NewReadOnlyFileSystem(session)
//
//	// Reads work normally
//	entries, _ := ro.List(ctx, "/acct/container")
//
//	// Writes return an error wrapping ErrReadOnly
//	err := ro.Upload(ctx, "local.txt", "/acct/container/remote.txt")
type ReadOnlyFileSystem struct {
	fs   FileSystem
	opts ReadOnlyOptions
}

// ReadOnlyOptions configures the ReadOnlyFileSystem behavior.
type ReadOnlyOptions struct {
	// AllowCreateDir permits provisional directories, which only live in
	// the session's directory cache.
	AllowCreateDir bool

	// AllowDelete permits blob deletion.
	AllowDelete bool

	// OnWriteAttempt is called when a write operation is attempted. A nil
	// return allows the write.
	OnWriteAttempt func(op, path string) error
}

// ReadOnlyOption is a functional option for configuring ReadOnlyFileSystem.
type ReadOnlyOption func(*ReadOnlyOptions)

// WithAllowCreateDir allows provisional directory creation in read-only mode.
func WithAllowCreateDir(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowCreateDir = allow
	}
}

// WithAllowDelete allows blob deletion in read-only mode.
func WithAllowDelete(allow bool) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.AllowDelete = allow
	}
}

// WithWriteAttemptHandler sets a custom handler for write attempts.
func WithWriteAttemptHandler(handler func(op, path string) error) ReadOnlyOption {
	return func(o *ReadOnlyOptions) {
		o.OnWriteAttempt = handler
	}
}

// NewReadOnlyFileSystem creates a read-only wrapper around fs.
func NewReadOnlyFileSystem(fs FileSystem, opts ...ReadOnlyOption) *ReadOnlyFileSystem {
	options := ReadOnlyOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &ReadOnlyFileSystem{fs: fs, opts: options}
}

var _ FileSystem = (*ReadOnlyFileSystem)(nil)

// Unwrap returns the underlying FileSystem.
func (r *ReadOnlyFileSystem) Unwrap() FileSystem {
	return r.fs
}

func (r *ReadOnlyFileSystem) readOnlyError(op, path string) error {
	if r.opts.OnWriteAttempt != nil {
		if err := r.opts.OnWriteAttempt(op, path); err != nil {
			return &PathError{Op: op, Path: path, Err: err}
		}
		return nil
	}
	return &PathError{Op: op, Path: path, Err: ErrReadOnly}
}

// ============================================================================
// Read Operations (Delegated)
// ============================================================================

func (r *ReadOnlyFileSystem) List(ctx context.Context, path string) ([]FileInfo, error) {
	return r.fs.List(ctx, path)
}

func (r *ReadOnlyFileSystem) ListMatching(ctx context.Context, path, pattern string) ([]FileInfo, error) {
	return r.fs.ListMatching(ctx, path, pattern)
}

func (r *ReadOnlyFileSystem) Properties(ctx context.Context, path string) (*BlobProperties, error) {
	return r.fs.Properties(ctx, path)
}

func (r *ReadOnlyFileSystem) Checksum(ctx context.Context, path string, algorithm ChecksumAlgorithm) (string, error) {
	return r.fs.Checksum(ctx, path, algorithm)
}

// Download delegates unless the options ask to delete the source blob.
func (r *ReadOnlyFileSystem) Download(ctx context.Context, remotePath, localPath string, options ...Option) error {
	if processOptions(options...).DeleteSource {
		if err := r.readOnlyError("download", remotePath); err != nil {
			return err
		}
	}
	return r.fs.Download(ctx, remotePath, localPath, options...)
}

// ============================================================================
// Write Operations (Blocked)
// ============================================================================

func (r *ReadOnlyFileSystem) Upload(ctx context.Context, localPath, remotePath string, options ...Option) error {
	if err := r.readOnlyError("upload", remotePath); err != nil {
		return err
	}
	return r.fs.Upload(ctx, localPath, remotePath, options...)
}

func (r *ReadOnlyFileSystem) Copy(ctx context.Context, srcPath, dstPath string, options ...Option) error {
	if err := r.readOnlyError("copy", dstPath); err != nil {
		return err
	}
	return r.fs.Copy(ctx, srcPath, dstPath, options...)
}

func (r *ReadOnlyFileSystem) Move(ctx context.Context, srcPath, dstPath string, options ...Option) error {
	if err := r.readOnlyError("move", srcPath); err != nil {
		return err
	}
	return r.fs.Move(ctx, srcPath, dstPath, options...)
}

// Delete returns ErrReadOnly unless AllowDelete is enabled.
func (r *ReadOnlyFileSystem) Delete(ctx context.Context, path string) (DeleteOutcome, error) {
	if !r.opts.AllowDelete {
		if err := r.readOnlyError("delete", path); err != nil {
			return DeleteNothing, err
		}
	}
	return r.fs.Delete(ctx, path)
}

// MakeDirectory returns ErrReadOnly unless AllowCreateDir is enabled.
func (r *ReadOnlyFileSystem) MakeDirectory(ctx context.Context, path string) error {
	if !r.opts.AllowCreateDir {
		if err := r.readOnlyError("mkdir", path); err != nil {
			return err
		}
	}
	return r.fs.MakeDirectory(ctx, path)
}

// RemoveDirectory returns ErrReadOnly unless AllowCreateDir is enabled.
func (r *ReadOnlyFileSystem) RemoveDirectory(ctx context.Context, path string) (bool, error) {
	if !r.opts.AllowCreateDir {
		if err := r.readOnlyError("rmdir", path); err != nil {
			return false, err
		}
	}
	return r.fs.RemoveDirectory(ctx, path)
}
