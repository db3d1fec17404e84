package cloudvfs

import (
	"time"

	"github.com/gobeaver/cloudvfs/internal/clock"
	"github.com/gobeaver/cloudvfs/internal/logging"
)

// Option represents a per-operation option
type Option func(*Options)

// Options contains all possible options for transfer operations
type Options struct {
	// Overwrite allows replacing an existing destination
	Overwrite bool

	// Progress receives integer percentages from 0 to 100
	Progress ProgressFunc

	// DeleteSource removes the source after a successful transfer
	DeleteSource bool

	// Resume asks to continue a partial transfer. It is never supported.
	Resume bool

	// ContentType overrides the type derived from the file name on upload
	ContentType string

	// Metadata is attached to uploaded blobs
	Metadata map[string]string
}

// WithOverwrite enables or disables overwriting existing files
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.Overwrite = overwrite
	}
}

// WithProgress sets the progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(o *Options) {
		o.Progress = fn
	}
}

// WithDeleteSource turns a transfer into a move
func WithDeleteSource(deleteSource bool) Option {
	return func(o *Options) {
		o.DeleteSource = deleteSource
	}
}

// WithResume requests resuming a partial transfer
func WithResume(resume bool) Option {
	return func(o *Options) {
		o.Resume = resume
	}
}

// WithContentType sets the content type of the uploaded blob
func WithContentType(contentType string) Option {
	return func(o *Options) {
		o.ContentType = contentType
	}
}

// WithMetadata sets additional metadata for the uploaded blob
func WithMetadata(metadata map[string]string) Option {
	return func(o *Options) {
		o.Metadata = metadata
	}
}

func processOptions(options ...Option) *Options {
	opts := &Options{}
	for _, option := range options {
		option(opts)
	}
	return opts
}

// ============================================================================
// Session options
// ============================================================================

// Default transfer settings
const (
	DefaultChunkSize        = 32 * 1024
	DefaultCopyPollInterval = 100 * time.Millisecond
)

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the session logger
func WithLogger(logger logging.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock sets the clock driving copy polling
func WithClock(c clock.Clock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// WithChunkSize sets the transfer chunk size
func WithChunkSize(size int) SessionOption {
	return func(s *Session) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithCopyPollInterval sets the wait between copy status polls
func WithCopyPollInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithConnectionStore sets where connections are persisted
func WithConnectionStore(store ConnectionStore) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

// WithCredentialProvider sets the delegated sign-in collaborator
func WithCredentialProvider(provider CredentialProvider) SessionOption {
	return func(s *Session) {
		s.credentials = provider
	}
}

// WithPrompter sets the collaborator asking the user for connection input
func WithPrompter(prompter ConnectionPrompter) SessionOption {
	return func(s *Session) {
		s.prompter = prompter
	}
}

// WithAccountEnumerator sets the subscription account source
func WithAccountEnumerator(enum AccountEnumerator) SessionOption {
	return func(s *Session) {
		s.enumerator = enum
	}
}

// WithTenant sets the default tenant for delegated sign-in
func WithTenant(tenantID string) SessionOption {
	return func(s *Session) {
		s.tenantID = tenantID
	}
}
