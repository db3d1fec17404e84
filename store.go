package cloudvfs

import (
	"context"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// AuthMode selects how a client authenticates against the store.
type AuthMode int

const (
	AuthSharedKey AuthMode = iota
	AuthSAS
	AuthDelegated
)

func (m AuthMode) String() string {
	switch m {
	case AuthSharedKey:
		return "shared-key"
	case AuthSAS:
		return "sas"
	case AuthDelegated:
		return "delegated"
	default:
		return "unknown"
	}
}

// ClientSpec is everything a backend needs to build a client.
type ClientSpec struct {
	Mode AuthMode

	// Account is the physical storage account name.
	Account string

	// ServiceURL is the account URL, or the container URL for container
	// clients. SAS URLs keep their query.
	ServiceURL string

	// ConnectionString is set for AuthSharedKey.
	ConnectionString string

	// Credential is set for AuthDelegated.
	Credential azcore.TokenCredential
}

// ClientFactory builds store clients. Each backend registers one.
type ClientFactory interface {
	NewAccountClient(spec ClientSpec) (AccountClient, error)
	NewContainerClient(spec ClientSpec) (ContainerClient, error)
}

// AccountClient addresses one storage account.
type AccountClient interface {
	ListContainers(ctx context.Context) ([]ContainerItem, error)
	Container(name string) ContainerClient
}

// ContainerClient addresses one container.
type ContainerClient interface {
	Name() string

	// ListHierarchy lists the direct children of prefix. Names sharing a
	// delimiter after the prefix are collapsed into one prefix item.
	ListHierarchy(ctx context.Context, prefix, delimiter string) ([]ListItem, error)
	Blob(name string) BlobClient
}

// BlobClient addresses one blob.
type BlobClient interface {
	Name() string

	// SourceURL returns a URL the store can read the blob from during a
	// server-side copy.
	SourceURL(ctx context.Context) (string, error)

	Exists(ctx context.Context) (bool, error)
	Properties(ctx context.Context) (*BlobProperties, error)
	Download(ctx context.Context) (io.ReadCloser, int64, error)

	// Upload writes the blob from r. With IfNoneMatch set the write fails
	// with ErrExist when the blob is present.
	Upload(ctx context.Context, r io.Reader, size int64, opts UploadOptions) error

	StartCopy(ctx context.Context, sourceURL string) (CopyStatus, error)
	CopyStatus(ctx context.Context) (CopyStatus, error)

	// Delete removes the blob. It reports false when nothing was deleted.
	Delete(ctx context.Context) (bool, error)
}

// UploadOptions controls a single upload.
type UploadOptions struct {
	ContentType string
	Metadata    map[string]string
	IfNoneMatch bool
	ChunkSize   int
}

// ContainerItem is one container of an account listing.
type ContainerItem struct {
	Name         string
	LastModified time.Time
}

// ListItem is one entry of a hierarchical listing.
type ListItem struct {
	Name       string
	IsPrefix   bool
	Properties *BlobProperties
}

// CopyState is the state of a server-side copy.
type CopyState string

const (
	CopyPending CopyState = "pending"
	CopySuccess CopyState = "success"
	CopyAborted CopyState = "aborted"
	CopyFailed  CopyState = "failed"
)

// CopyStatus reports the progress of a server-side copy.
type CopyStatus struct {
	State       CopyState
	Description string
}

// BlobProperties is the metadata the store reports for a blob.
type BlobProperties struct {
	Size               int64
	ContentType        string
	ContentEncoding    string
	ContentLanguage    string
	CacheControl       string
	ContentMD5         string
	ETag               string
	CreatedOn          time.Time
	LastModified       time.Time
	AccessTier         string
	AccessTierInferred bool
	BlobType           string
	LeaseState         string
	LeaseStatus        string
	CopyStatus         string
	ServerEncrypted    bool
	Metadata           map[string]string
}

// Clone returns a deep copy of p.
func (p *BlobProperties) Clone() *BlobProperties {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
