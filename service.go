package cloudvfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gobeaver/beaver-kit/config"

	"github.com/gobeaver/cloudvfs/internal/clock"
	"github.com/gobeaver/cloudvfs/internal/connstore"
	"github.com/gobeaver/cloudvfs/internal/logging"
)

// ConnectionPrompter asks the user for connection input. It returns the
// entered text and false when the user cancelled.
type ConnectionPrompter interface {
	PromptConnection(ctx context.Context, title, template string) (string, bool, error)
}

// Session is one virtual file system session. It owns the connection
// registry and both caches; all operations are safe for concurrent use.
type Session struct {
	registry *Registry
	dirs     *DirectoryCache
	props    *PropertiesCache
	factory  ClientFactory

	store       ConnectionStore
	credentials CredentialProvider
	prompter    ConnectionPrompter
	enumerator  AccountEnumerator
	tenantID    string

	logger       logging.Logger
	clock        clock.Clock
	chunkSize    int
	pollInterval time.Duration
}

// New creates a session backed by factory.
func New(factory ClientFactory, opts ...SessionOption) *Session {
	s := &Session{
		factory:      factory,
		dirs:         NewDirectoryCache(),
		props:        NewPropertiesCache(),
		logger:       logging.Nop(),
		clock:        clock.Real(),
		chunkSize:    DefaultChunkSize,
		pollInterval: DefaultCopyPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry = NewRegistry(factory, s.store, s.credentials, s.logger.With(logging.String("component", "registry")))
	s.registry.SetDefaultTenant(s.tenantID)
	return s
}

// Builder creates sessions from environment config with a custom prefix
type Builder struct {
	prefix string
}

// WithPrefix creates a new Builder with the specified prefix
func WithPrefix(prefix string) *Builder {
	return &Builder{prefix: prefix}
}

// New creates a session using the builder's prefix
func (b *Builder) New(ctx context.Context, opts ...SessionOption) (*Session, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: b.prefix}); err != nil {
		return nil, err
	}
	return NewFromConfig(ctx, cfg, opts...)
}

// NewFromConfig creates a session from config and loads the persisted
// connections. Options given here override the ones derived from cfg.
func NewFromConfig(ctx context.Context, cfg *Config, opts ...SessionOption) (*Session, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	factory, err := CreateDriver(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	base := []SessionOption{
		WithLogger(logger),
		WithChunkSize(cfg.ChunkSize),
		WithCopyPollInterval(cfg.CopyPollInterval()),
		WithTenant(cfg.TenantID),
	}
	if cfg.ConnectionsFile != "" {
		store, err := connstore.Open[ConnectionRecord](cfg.ConnectionsFile, cfg.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open connection store: %w", err)
		}
		base = append(base, WithConnectionStore(store))
	}

	s := New(factory, append(base, opts...)...)
	if err := s.registry.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// validateConfig checks configuration validity
func validateConfig(cfg *Config) error {
	if cfg.Driver == "" {
		return errors.New("driver is required")
	}
	if cfg.ChunkSize < 0 {
		return fmt.Errorf("chunk size must not be negative (got %d)", cfg.ChunkSize)
	}
	if cfg.CopyPollIntervalMS < 0 {
		return fmt.Errorf("copy poll interval must not be negative (got %d)", cfg.CopyPollIntervalMS)
	}
	if cfg.IdentityFile != "" && cfg.ConnectionsFile == "" {
		return errors.New("identity file requires a connections file")
	}
	return nil
}

// Registry returns the session's connection registry.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Directories returns the session's directory cache.
func (s *Session) Directories() *DirectoryCache {
	return s.dirs
}

// PropertiesCache returns the session's blob properties cache.
func (s *Session) PropertiesCache() *PropertiesCache {
	return s.props
}

// BlobItemProperties returns the metadata cached for path by the last
// listing of its directory.
func (s *Session) BlobItemProperties(path string) (*BlobProperties, bool) {
	return s.props.Get(path)
}

// FieldValue returns the value of a content field for a cached blob. It
// reports false when the blob or the field value is unknown.
func (s *Session) FieldValue(path, field string) (any, FieldType, bool) {
	f, ok := LookupField(field)
	if !ok {
		return nil, FieldString, false
	}
	props, ok := s.props.Get(path)
	if !ok {
		return nil, f.Type, false
	}
	v, ok := f.Value(props)
	return v, f.Type, ok
}

// Properties fetches live metadata for a blob.
func (s *Session) Properties(ctx context.Context, path string) (*BlobProperties, error) {
	vp, err := Parse(path)
	if err != nil {
		return nil, err
	}
	blob, err := s.blobClient(ctx, "properties", vp)
	if err != nil {
		return nil, err
	}
	props, err := blob.Properties(ctx)
	if err != nil {
		return nil, &PathError{Op: "properties", Path: vp.String(), Err: err}
	}
	s.props.Set(vp.Key(), props)
	return props, nil
}

// containerClient resolves the container addressed by vp.
func (s *Session) containerClient(ctx context.Context, op string, vp VirtualPath) (ContainerClient, error) {
	if vp.Level() < 2 || vp.AccountName() == ConnectAccountName {
		return nil, &PathError{Op: op, Path: vp.String(), Err: ErrNotSupported}
	}
	c, err := s.registry.ContainerClient(ctx, vp.AccountName(), vp.ContainerName())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// blobClient resolves the blob addressed by vp.
func (s *Session) blobClient(ctx context.Context, op string, vp VirtualPath) (BlobClient, error) {
	if !vp.IsBlobPath() {
		return nil, &PathError{Op: op, Path: vp.String(), Err: ErrNotSupported}
	}
	c, err := s.containerClient(ctx, op, vp)
	if err != nil {
		return nil, err
	}
	return c.Blob(vp.BlobName()), nil
}
