package cloudvfs

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"golang.org/x/sync/singleflight"

	"github.com/gobeaver/cloudvfs/internal/logging"
)

// ConnectionStore persists connection records between sessions.
type ConnectionStore interface {
	Load(ctx context.Context) (map[string]ConnectionRecord, error)
	Save(ctx context.Context, records map[string]ConnectionRecord) error
}

// CredentialProvider obtains a delegated identity credential, typically by
// running an interactive sign-in. A nil credential with a nil error means
// the user declined.
type CredentialProvider interface {
	ObtainCredential(ctx context.Context, tenantID string) (azcore.TokenCredential, error)
}

// DiscoveredAccount is a storage account reported by an AccountEnumerator.
type DiscoveredAccount struct {
	Name       string
	Key        string
	TenantID   string
	Credential azcore.TokenCredential
}

// AccountEnumerator lists the storage accounts of a subscription.
type AccountEnumerator interface {
	EnumerateAccounts(ctx context.Context) ([]DiscoveredAccount, error)
}

// Registry is the ordered set of known connections, keyed by account name.
// Keys iterate in insertion order and an upsert keeps the original position.
type Registry struct {
	mu    sync.RWMutex
	order []string
	conns map[string]*StorageConnection

	persistMu sync.Mutex
	store     ConnectionStore

	factory       ClientFactory
	credentials   CredentialProvider
	defaultTenant string
	authGroup     singleflight.Group
	logger        logging.Logger
}

// NewRegistry creates an empty registry. store and credentials may be nil.
func NewRegistry(factory ClientFactory, store ConnectionStore, credentials CredentialProvider, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		conns:       make(map[string]*StorageConnection),
		store:       store,
		factory:     factory,
		credentials: credentials,
		logger:      logger,
	}
}

// SetDefaultTenant sets the tenant used for delegated sign-in when a
// connection carries none.
func (r *Registry) SetDefaultTenant(tenantID string) {
	r.mu.Lock()
	r.defaultTenant = tenantID
	r.mu.Unlock()
}

// Load replaces the in-memory set with the persisted records. Records are
// registered in key order.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	r.mu.Lock()
	r.order = r.order[:0]
	r.conns = make(map[string]*StorageConnection, len(records))
	for _, name := range names {
		r.order = append(r.order, name)
		r.conns[name] = FromRecord(records[name])
	}
	r.mu.Unlock()

	r.logger.Debug("connections loaded", logging.Int("count", len(names)))
	return nil
}

// Add upserts conn under its account name and persists the set.
func (r *Registry) Add(ctx context.Context, conn *StorageConnection) (string, error) {
	name := conn.AccountName()
	if name == "" {
		return "", ErrInvalidConnection
	}

	r.mu.Lock()
	r.putLocked(name, conn.Clone())
	r.mu.Unlock()

	r.logger.Info("connection added", logging.String("account", name))
	return name, r.persist(ctx)
}

// AddConnection parses raw user input and registers the result. URLs
// without a signature are switched to delegated auth.
func (r *Registry) AddConnection(ctx context.Context, raw string) (string, error) {
	conn, err := ParseConnection(raw)
	if err != nil {
		return "", err
	}
	if conn.RequiresDelegatedAuth() {
		conn.UseActiveDirectory = true
	}
	return r.Add(ctx, conn)
}

// AddFromSubscription registers every account reported by enum and
// persists once.
func (r *Registry) AddFromSubscription(ctx context.Context, enum AccountEnumerator) ([]string, error) {
	accounts, err := enum.EnumerateAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate accounts: %w", err)
	}

	names := make([]string, 0, len(accounts))
	r.mu.Lock()
	for _, acct := range accounts {
		conn := FromAccountKey(acct.Name, acct.Key)
		conn.TenantID = acct.TenantID
		conn.Credential = acct.Credential
		name := conn.AccountName()
		r.putLocked(name, conn)
		names = append(names, name)
	}
	r.mu.Unlock()

	r.logger.Info("subscription accounts added", logging.Int("count", len(names)))
	return names, r.persist(ctx)
}

// Remove deletes the named connection. It reports false when the name is
// unknown.
func (r *Registry) Remove(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	if _, ok := r.conns[name]; !ok {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.conns, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.logger.Info("connection removed", logging.String("account", name))
	return true, r.persist(ctx)
}

// Get returns a copy of the named connection, or nil.
func (r *Registry) Get(name string) *StorageConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conn, ok := r.conns[name]; ok {
		return conn.Clone()
	}
	return nil
}

// Names returns the registered account names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// EnableDelegatedAuth switches the named connection to delegated identity
// and persists the change.
func (r *Registry) EnableDelegatedAuth(ctx context.Context, name string) error {
	r.mu.Lock()
	conn, ok := r.conns[name]
	if !ok {
		r.mu.Unlock()
		return &PathError{Op: "auth", Path: name, Err: ErrNotExist}
	}
	changed := !conn.UseActiveDirectory
	conn.UseActiveDirectory = true
	r.mu.Unlock()

	if !changed {
		return nil
	}
	r.logger.Info("delegated auth enabled", logging.String("account", name))
	return r.persist(ctx)
}

// ResolveClient returns an account client for the named connection. It
// returns a nil client and nil error for container SAS connections, whose
// clients are built from the container URL alone.
func (r *Registry) ResolveClient(ctx context.Context, name string) (AccountClient, error) {
	conn := r.Get(name)
	if conn == nil {
		return nil, &PathError{Op: "resolve", Path: name, Err: ErrNotExist}
	}

	switch {
	case conn.RequiresDelegatedAuth() || conn.UseActiveDirectory:
		cred, err := r.credential(ctx, name, conn)
		if err != nil {
			return nil, err
		}
		base, err := conn.BaseURL()
		if err != nil {
			return nil, err
		}
		return r.factory.NewAccountClient(ClientSpec{
			Mode:       AuthDelegated,
			Account:    physicalAccount(base),
			ServiceURL: base,
			Credential: cred,
		})
	case conn.IsStorageSAS():
		return r.factory.NewAccountClient(ClientSpec{
			Mode:       AuthSAS,
			Account:    physicalAccount(conn.ServiceURL),
			ServiceURL: conn.ServiceURL,
		})
	case conn.IsContainerSAS():
		return nil, nil
	case conn.IsConnectionString():
		base, _ := conn.BaseURL()
		return r.factory.NewAccountClient(ClientSpec{
			Mode:             AuthSharedKey,
			Account:          physicalAccount(base),
			ServiceURL:       base,
			ConnectionString: conn.ConnectionString,
		})
	default:
		return nil, &PathError{Op: "resolve", Path: name, Err: ErrInvalidConnection}
	}
}

// ContainerClient returns a client for one container of the named
// connection. Container-scoped connections only expose their own container.
func (r *Registry) ContainerClient(ctx context.Context, name, containerName string) (ContainerClient, error) {
	conn := r.Get(name)
	if conn == nil {
		return nil, &PathError{Op: "resolve", Path: name, Err: ErrNotExist}
	}

	if conn.IsContainerScoped() {
		if containerName != conn.ContainerName() {
			return nil, &PathError{Op: "resolve", Path: name + Separator + containerName, Err: ErrNotExist}
		}
		if conn.IsContainerSAS() {
			return r.factory.NewContainerClient(ClientSpec{
				Mode:       AuthSAS,
				Account:    physicalAccount(conn.ServiceURL),
				ServiceURL: conn.ServiceURL,
			})
		}
		cred, err := r.credential(ctx, name, conn)
		if err != nil {
			return nil, err
		}
		return r.factory.NewContainerClient(ClientSpec{
			Mode:       AuthDelegated,
			Account:    physicalAccount(conn.ServiceURL),
			ServiceURL: stripQuery(conn.ServiceURL),
			Credential: cred,
		})
	}

	acct, err := r.ResolveClient(ctx, name)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, &PathError{Op: "resolve", Path: name, Err: ErrNotSupported}
	}
	return acct.Container(containerName), nil
}

// credential returns the connection's delegated credential, acquiring one
// when absent. Concurrent acquisitions for the same account share a
// single sign-in.
func (r *Registry) credential(ctx context.Context, name string, conn *StorageConnection) (azcore.TokenCredential, error) {
	if conn.Credential != nil {
		return conn.Credential, nil
	}
	if r.credentials == nil {
		return nil, &PathError{Op: "auth", Path: name, Err: ErrAuthRequired}
	}

	v, err, _ := r.authGroup.Do(name, func() (interface{}, error) {
		if current := r.Get(name); current != nil && current.Credential != nil {
			return current.Credential, nil
		}

		tenant := conn.TenantID
		if tenant == "" {
			r.mu.RLock()
			tenant = r.defaultTenant
			r.mu.RUnlock()
		}

		r.logger.Info("requesting delegated credential", logging.String("account", name), logging.String("tenant", tenant))
		cred, err := r.credentials.ObtainCredential(ctx, tenant)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		if cred == nil {
			return nil, ErrAuthRequired
		}

		r.mu.Lock()
		if stored, ok := r.conns[name]; ok {
			stored.Credential = cred
		}
		r.mu.Unlock()
		return cred, nil
	})
	if err != nil {
		return nil, &PathError{Op: "auth", Path: name, Err: err}
	}
	return v.(azcore.TokenCredential), nil
}

func (r *Registry) putLocked(name string, conn *StorageConnection) {
	if _, exists := r.conns[name]; !exists {
		r.order = append(r.order, name)
	}
	r.conns[name] = conn
}

func (r *Registry) snapshot() map[string]ConnectionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make(map[string]ConnectionRecord, len(r.conns))
	for name, conn := range r.conns {
		records[name] = conn.Record()
	}
	return records
}

func (r *Registry) persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	if err := r.store.Save(ctx, r.snapshot()); err != nil {
		r.logger.Error("failed to save connections", logging.ErrorField(err))
		return fmt.Errorf("save connections: %w", err)
	}
	return nil
}

// physicalAccount extracts the storage account name from a service URL.
func physicalAccount(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
