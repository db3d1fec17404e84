// Package azure implements the cloudvfs client interfaces on Azure Blob
// Storage.
package azure

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/gobeaver/cloudvfs"
)

// DefaultBlockSize is the staged block size of uploads.
const DefaultBlockSize = 4 << 20

// DefaultCopySourceExpiry is how long a signed copy source URL stays valid.
const DefaultCopySourceExpiry = 15 * time.Minute

// codeKeyAuthNotPermitted is returned by accounts with shared key access
// disabled.
const codeKeyAuthNotPermitted bloberror.Code = "KeyBasedAuthenticationNotPermitted"

// Factory builds Azure Blob Storage clients.
type Factory struct {
	clientOptions     *azblob.ClientOptions
	blockSize         int64
	uploadConcurrency int
	sourceExpiry      time.Duration
}

// FactoryOption is a function that configures the Azure Factory
type FactoryOption func(*Factory)

// WithClientOptions sets the pipeline options of every client.
func WithClientOptions(opts *azblob.ClientOptions) FactoryOption {
	return func(f *Factory) {
		f.clientOptions = opts
	}
}

// WithBlockSize sets the staged block size of uploads.
func WithBlockSize(size int64) FactoryOption {
	return func(f *Factory) {
		if size > 0 {
			f.blockSize = size
		}
	}
}

// WithUploadConcurrency sets how many blocks are staged in parallel.
func WithUploadConcurrency(n int) FactoryOption {
	return func(f *Factory) {
		if n > 0 {
			f.uploadConcurrency = n
		}
	}
}

// New creates a new Azure client factory
func New(options ...FactoryOption) *Factory {
	f := &Factory{
		blockSize:         DefaultBlockSize,
		uploadConcurrency: 1,
		sourceExpiry:      DefaultCopySourceExpiry,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

var _ cloudvfs.ClientFactory = (*Factory)(nil)

// NewAccountClient implements cloudvfs.ClientFactory
func (f *Factory) NewAccountClient(spec cloudvfs.ClientSpec) (cloudvfs.AccountClient, error) {
	var (
		client *azblob.Client
		err    error
	)
	switch spec.Mode {
	case cloudvfs.AuthSharedKey:
		client, err = azblob.NewClientFromConnectionString(spec.ConnectionString, f.clientOptions)
	case cloudvfs.AuthSAS:
		client, err = azblob.NewClientWithNoCredential(spec.ServiceURL, f.clientOptions)
	case cloudvfs.AuthDelegated:
		if spec.Credential == nil {
			return nil, cloudvfs.ErrAuthRequired
		}
		client, err = azblob.NewClient(spec.ServiceURL, spec.Credential, f.clientOptions)
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %s", cloudvfs.ErrInvalidConnection, spec.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cloudvfs.ErrInvalidConnection, err)
	}
	return &accountClient{factory: f, service: client.ServiceClient()}, nil
}

// NewContainerClient implements cloudvfs.ClientFactory
func (f *Factory) NewContainerClient(spec cloudvfs.ClientSpec) (cloudvfs.ContainerClient, error) {
	var containerOpts *container.ClientOptions
	if f.clientOptions != nil {
		containerOpts = &container.ClientOptions{ClientOptions: f.clientOptions.ClientOptions}
	}

	var (
		client *container.Client
		err    error
	)
	switch spec.Mode {
	case cloudvfs.AuthSAS:
		client, err = container.NewClientWithNoCredential(spec.ServiceURL, containerOpts)
	case cloudvfs.AuthDelegated:
		if spec.Credential == nil {
			return nil, cloudvfs.ErrAuthRequired
		}
		client, err = container.NewClient(spec.ServiceURL, spec.Credential, containerOpts)
	case cloudvfs.AuthSharedKey:
		client, err = container.NewClientFromConnectionString(spec.ConnectionString, containerName(spec.ServiceURL), containerOpts)
	default:
		return nil, fmt.Errorf("%w: unknown auth mode %s", cloudvfs.ErrInvalidConnection, spec.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cloudvfs.ErrInvalidConnection, err)
	}
	return &containerClient{factory: f, client: client, name: containerName(spec.ServiceURL)}, nil
}

// ============================================================================
// Account client
// ============================================================================

type accountClient struct {
	factory *Factory
	service *service.Client
}

func (a *accountClient) ListContainers(ctx context.Context) ([]cloudvfs.ContainerItem, error) {
	pager := a.service.NewListContainersPager(nil)

	var items []cloudvfs.ContainerItem
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapAzureError("list", a.service.URL(), err)
		}
		for _, c := range resp.ContainerItems {
			if c == nil || c.Name == nil {
				continue
			}
			item := cloudvfs.ContainerItem{Name: *c.Name}
			if c.Properties != nil && c.Properties.LastModified != nil {
				item.LastModified = *c.Properties.LastModified
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func (a *accountClient) Container(name string) cloudvfs.ContainerClient {
	return &containerClient{factory: a.factory, client: a.service.NewContainerClient(name), name: name}
}

// ============================================================================
// Container client
// ============================================================================

type containerClient struct {
	factory *Factory
	client  *container.Client
	name    string
}

func (c *containerClient) Name() string {
	return c.name
}

func (c *containerClient) ListHierarchy(ctx context.Context, prefix, delimiter string) ([]cloudvfs.ListItem, error) {
	opts := &container.ListBlobsHierarchyOptions{
		Include: container.ListBlobsInclude{Metadata: true},
	}
	if prefix != "" {
		opts.Prefix = &prefix
	}
	pager := c.client.NewListBlobsHierarchyPager(delimiter, opts)

	var items []cloudvfs.ListItem
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapAzureError("list", c.name+"/"+prefix, err)
		}

		for _, p := range resp.Segment.BlobPrefixes {
			if p == nil || p.Name == nil {
				continue
			}
			items = append(items, cloudvfs.ListItem{Name: *p.Name, IsPrefix: true})
		}

		for _, b := range resp.Segment.BlobItems {
			if b == nil || b.Name == nil {
				continue
			}
			items = append(items, cloudvfs.ListItem{
				Name:       *b.Name,
				Properties: listedProperties(b),
			})
		}
	}
	return items, nil
}

func (c *containerClient) Blob(name string) cloudvfs.BlobClient {
	return &blobClient{
		factory: c.factory,
		blob:    c.client.NewBlobClient(name),
		block:   c.client.NewBlockBlobClient(name),
		name:    name,
	}
}

// ============================================================================
// Blob client
// ============================================================================

type blobClient struct {
	factory *Factory
	blob    *blob.Client
	block   *blockblob.Client
	name    string
}

func (b *blobClient) Name() string {
	return b.name
}

// SourceURL implements cloudvfs.BlobClient. Shared key clients sign a
// short-lived read URL; other clients return their own URL, which carries
// the SAS query when there is one.
func (b *blobClient) SourceURL(ctx context.Context) (string, error) {
	expiry := time.Now().UTC().Add(b.factory.sourceExpiry)
	signed, err := b.blob.GetSASURL(sas.BlobPermissions{Read: true}, expiry, nil)
	if err == nil {
		return signed, nil
	}
	return b.blob.URL(), nil
}

func (b *blobClient) Exists(ctx context.Context) (bool, error) {
	_, err := b.blob.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) || isStatus(err, http.StatusNotFound) {
		return false, nil
	}
	return false, mapAzureError("exists", b.name, err)
}

func (b *blobClient) Properties(ctx context.Context) (*cloudvfs.BlobProperties, error) {
	resp, err := b.blob.GetProperties(ctx, nil)
	if err != nil {
		return nil, mapAzureError("properties", b.name, err)
	}

	props := &cloudvfs.BlobProperties{
		Size:               deref(resp.ContentLength),
		ContentType:        str(resp.ContentType),
		ContentEncoding:    str(resp.ContentEncoding),
		ContentLanguage:    str(resp.ContentLanguage),
		CacheControl:       str(resp.CacheControl),
		ContentMD5:         hex.EncodeToString(resp.ContentMD5),
		ETag:               str(resp.ETag),
		CreatedOn:          deref(resp.CreationTime),
		LastModified:       deref(resp.LastModified),
		AccessTier:         str(resp.AccessTier),
		AccessTierInferred: deref(resp.AccessTierInferred),
		BlobType:           str(resp.BlobType),
		LeaseState:         str(resp.LeaseState),
		LeaseStatus:        str(resp.LeaseStatus),
		CopyStatus:         str(resp.CopyStatus),
		ServerEncrypted:    deref(resp.IsServerEncrypted),
		Metadata:           metadata(resp.Metadata),
	}
	return props, nil
}

func (b *blobClient) Download(ctx context.Context) (io.ReadCloser, int64, error) {
	resp, err := b.blob.DownloadStream(ctx, nil)
	if err != nil {
		return nil, 0, mapAzureError("download", b.name, err)
	}
	return resp.Body, deref(resp.ContentLength), nil
}

// Upload implements cloudvfs.BlobClient. With IfNoneMatch the commit is
// conditional on the blob being absent; staged blocks of a rejected
// upload are discarded by the service.
func (b *blobClient) Upload(ctx context.Context, r io.Reader, size int64, opts cloudvfs.UploadOptions) error {
	uploadOpts := &blockblob.UploadStreamOptions{
		BlockSize:   b.factory.blockSize,
		Concurrency: b.factory.uploadConcurrency,
	}
	if opts.ContentType != "" {
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &opts.ContentType}
	}
	if len(opts.Metadata) > 0 {
		md := make(map[string]*string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			md[k] = to.Ptr(v)
		}
		uploadOpts.Metadata = md
	}
	if opts.IfNoneMatch {
		uploadOpts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		}
	}

	if _, err := b.block.UploadStream(ctx, r, uploadOpts); err != nil {
		return mapAzureError("upload", b.name, err)
	}
	return nil
}

func (b *blobClient) StartCopy(ctx context.Context, sourceURL string) (cloudvfs.CopyStatus, error) {
	resp, err := b.blob.StartCopyFromURL(ctx, sourceURL, nil)
	if err != nil {
		return cloudvfs.CopyStatus{}, mapAzureError("copy", b.name, err)
	}
	return copyStatus(resp.CopyStatus, nil), nil
}

func (b *blobClient) CopyStatus(ctx context.Context) (cloudvfs.CopyStatus, error) {
	resp, err := b.blob.GetProperties(ctx, nil)
	if err != nil {
		return cloudvfs.CopyStatus{}, mapAzureError("copy", b.name, err)
	}
	return copyStatus(resp.CopyStatus, resp.CopyStatusDescription), nil
}

func (b *blobClient) Delete(ctx context.Context) (bool, error) {
	_, err := b.blob.Delete(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) || isStatus(err, http.StatusNotFound) {
		return false, nil
	}
	return false, mapAzureError("delete", b.name, err)
}

// ============================================================================
// Helpers
// ============================================================================

func copyStatus(state *blob.CopyStatusType, description *string) cloudvfs.CopyStatus {
	status := cloudvfs.CopyStatus{Description: str(description)}
	if state == nil {
		// A copy that completes synchronously reports no state.
		status.State = cloudvfs.CopySuccess
		return status
	}
	switch *state {
	case blob.CopyStatusTypeSuccess:
		status.State = cloudvfs.CopySuccess
	case blob.CopyStatusTypePending:
		status.State = cloudvfs.CopyPending
	case blob.CopyStatusTypeAborted:
		status.State = cloudvfs.CopyAborted
	default:
		status.State = cloudvfs.CopyFailed
	}
	return status
}

func listedProperties(item *container.BlobItem) *cloudvfs.BlobProperties {
	props := &cloudvfs.BlobProperties{Metadata: metadata(item.Metadata)}
	p := item.Properties
	if p == nil {
		return props
	}
	props.Size = deref(p.ContentLength)
	props.ContentType = str(p.ContentType)
	props.ContentEncoding = str(p.ContentEncoding)
	props.ContentLanguage = str(p.ContentLanguage)
	props.CacheControl = str(p.CacheControl)
	props.ContentMD5 = hex.EncodeToString(p.ContentMD5)
	props.ETag = str(p.ETag)
	props.CreatedOn = deref(p.CreationTime)
	props.LastModified = deref(p.LastModified)
	props.AccessTier = str(p.AccessTier)
	props.AccessTierInferred = deref(p.AccessTierInferred)
	props.BlobType = str(p.BlobType)
	props.LeaseState = str(p.LeaseState)
	props.LeaseStatus = str(p.LeaseStatus)
	props.CopyStatus = str(p.CopyStatus)
	props.ServerEncrypted = deref(p.ServerEncrypted)
	return props
}

// containerName returns the first path segment of a container URL.
func containerName(containerURL string) string {
	u, err := url.Parse(containerURL)
	if err != nil {
		return ""
	}
	name, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return name
}

func metadata(md map[string]*string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func str[T ~string](p *T) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// mapAzureError maps Azure errors to cloudvfs errors
func mapAzureError(op, path string, err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		return &cloudvfs.PathError{Op: op, Path: path, Err: cloudvfs.ErrNotExist}
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet):
		return &cloudvfs.PathError{Op: op, Path: path, Err: cloudvfs.ErrExist}
	case bloberror.HasCode(err, codeKeyAuthNotPermitted):
		return &cloudvfs.PathError{Op: op, Path: path, Err: &cloudvfs.StoreError{
			Code:       string(codeKeyAuthNotPermitted),
			StatusCode: http.StatusForbidden,
			Err:        cloudvfs.ErrKeyAuthNotPermitted,
		}}
	case bloberror.HasCode(err, bloberror.AuthorizationPermissionMismatch, bloberror.AuthorizationFailure):
		return &cloudvfs.PathError{Op: op, Path: path, Err: cloudvfs.ErrPermission}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &cloudvfs.PathError{Op: op, Path: path, Err: err}
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return &cloudvfs.PathError{Op: op, Path: path, Err: cloudvfs.ErrNotExist}
		case http.StatusConflict, http.StatusPreconditionFailed:
			return &cloudvfs.PathError{Op: op, Path: path, Err: cloudvfs.ErrExist}
		case http.StatusForbidden, http.StatusUnauthorized:
			return &cloudvfs.PathError{Op: op, Path: path, Err: cloudvfs.ErrPermission}
		}
		return &cloudvfs.PathError{Op: op, Path: path, Err: &cloudvfs.StoreError{
			Code:       respErr.ErrorCode,
			StatusCode: respErr.StatusCode,
			Err:        err,
		}}
	}

	return &cloudvfs.PathError{Op: op, Path: path, Err: err}
}
