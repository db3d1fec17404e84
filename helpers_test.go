package cloudvfs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/gobeaver/cloudvfs"
	"github.com/gobeaver/cloudvfs/driver/memory"
)

func connString(account string) string {
	return "DefaultEndpointsProtocol=https;AccountName=" + account + ";AccountKey=a2V5;EndpointSuffix=core.windows.net"
}

// newTestSession returns a session over an empty memory store.
func newTestSession(t *testing.T, opts ...cloudvfs.SessionOption) (*cloudvfs.Session, *memory.Store) {
	t.Helper()
	store := memory.New()
	return cloudvfs.New(store, opts...), store
}

// addAccount registers a shared key connection for account.
func addAccount(t *testing.T, s *cloudvfs.Session, account string) {
	t.Helper()
	name, err := s.Registry().AddConnection(context.Background(), connString(account))
	if err != nil {
		t.Fatalf("AddConnection(%s) error = %v", account, err)
	}
	if name != account {
		t.Fatalf("registered as %q, want %q", name, account)
	}
}

func writeLocal(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func recordProgress() (*[]int, cloudvfs.Option) {
	var mu sync.Mutex
	got := []int{}
	return &got, cloudvfs.WithProgress(func(p int) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
}

// ============================================================================
// Collaborator fakes
// ============================================================================

type staticCredential struct{}

func (staticCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

type fakeCredentials struct {
	mu      sync.Mutex
	calls   int
	tenants []string
	err     error
	decline bool
}

func (f *fakeCredentials) ObtainCredential(ctx context.Context, tenantID string) (azcore.TokenCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tenants = append(f.tenants, tenantID)
	if f.err != nil {
		return nil, f.err
	}
	if f.decline {
		return nil, nil
	}
	return staticCredential{}, nil
}

func (f *fakeCredentials) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memoryConnections struct {
	mu      sync.Mutex
	records map[string]cloudvfs.ConnectionRecord
	saves   int
}

func (m *memoryConnections) Load(ctx context.Context) (map[string]cloudvfs.ConnectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]cloudvfs.ConnectionRecord, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

func (m *memoryConnections) Save(ctx context.Context, records map[string]cloudvfs.ConnectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.records = records
	return nil
}

func (m *memoryConnections) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type scriptedPrompter struct {
	input     string
	cancel    bool
	titles    []string
	templates []string
}

func (p *scriptedPrompter) PromptConnection(ctx context.Context, title, template string) (string, bool, error) {
	p.titles = append(p.titles, title)
	p.templates = append(p.templates, template)
	if p.cancel {
		return "", false, nil
	}
	return p.input, true, nil
}

type fakeEnumerator struct {
	accounts []cloudvfs.DiscoveredAccount
}

func (f *fakeEnumerator) EnumerateAccounts(ctx context.Context) ([]cloudvfs.DiscoveredAccount, error) {
	return f.accounts, nil
}
