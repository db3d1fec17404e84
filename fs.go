package cloudvfs

import (
	"context"
	"time"
)

// FileInfo describes one entry of a virtual directory listing
type FileInfo struct {
	Name        string
	Path        string
	Size        int64
	ModTime     time.Time
	CreatedAt   time.Time
	IsDir       bool
	ContentType string

	// Archived is set for blobs in the archive access tier.
	Archived bool

	// Provisional marks directories known only from the directory cache.
	Provisional bool

	// Placeholder marks the ".." entry shown for an empty provisional
	// directory.
	Placeholder bool

	// Pseudo marks the connect-option entries of the reserved account.
	Pseudo bool
}

// PlaceholderName is the name of the entry listed for an empty provisional
// directory.
const PlaceholderName = ".."

// ============================================================================
// Core Interfaces (Interface Segregation)
// ============================================================================

// Navigator provides read-only access to the virtual tree.
type Navigator interface {
	// List returns the entries directly below path.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// ListMatching returns the entries directly below path whose names
	// match a glob pattern.
	ListMatching(ctx context.Context, path, pattern string) ([]FileInfo, error)

	// Properties fetches live metadata for a blob.
	Properties(ctx context.Context, path string) (*BlobProperties, error)

	// Checksum hashes a blob's content.
	Checksum(ctx context.Context, path string, algorithm ChecksumAlgorithm) (string, error)
}

// Transferer moves content between the local disk and the store, and
// within the store.
type Transferer interface {
	Download(ctx context.Context, remotePath, localPath string, options ...Option) error
	Upload(ctx context.Context, localPath, remotePath string, options ...Option) error
	Copy(ctx context.Context, srcPath, dstPath string, options ...Option) error
	Move(ctx context.Context, srcPath, dstPath string, options ...Option) error
}

// Organizer manages entries of the virtual tree.
type Organizer interface {
	Delete(ctx context.Context, path string) (DeleteOutcome, error)
	MakeDirectory(ctx context.Context, path string) error
	RemoveDirectory(ctx context.Context, path string) (bool, error)
}

// FileSystem is the full virtual file system.
type FileSystem interface {
	Navigator
	Transferer
	Organizer
}

var _ FileSystem = (*Session)(nil)

// DeleteOutcome reports what Delete did.
type DeleteOutcome int

const (
	DeleteNothing DeleteOutcome = iota
	DeleteDeleted
	DeleteConnectionRemoved
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeleteDeleted:
		return "deleted"
	case DeleteConnectionRemoved:
		return "connection removed"
	default:
		return "nothing to delete"
	}
}
