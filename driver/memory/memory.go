// Package memory provides an in-process object store implementing the
// cloudvfs client interfaces. It is useful for offline use and tests.
package memory

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // content MD5 mirrors what blob stores report
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/cloudvfs"
)

// Operation names accepted by FailOn.
const (
	OpListContainers = "ListContainers"
	OpListHierarchy  = "ListHierarchy"
	OpProperties     = "Properties"
	OpDownload       = "Download"
	OpUpload         = "Upload"
	OpStartCopy      = "StartCopy"
	OpCopyStatus     = "CopyStatus"
	OpDelete         = "Delete"
)

// object represents a blob stored in memory
type object struct {
	content     []byte
	contentType string
	metadata    map[string]string
	created     time.Time
	modTime     time.Time
	etag        string
	accessTier  string
}

// pendingCopy is a server-side copy that completes after a number of polls
type pendingCopy struct {
	source    *object
	remaining int
}

type container struct {
	created time.Time
	blobs   map[string]*object
	copies  map[string]*pendingCopy
}

type account struct {
	containers map[string]*container
}

// Store is an in-memory object store holding any number of accounts.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account
	now      func() time.Time
	etagSeq  int64

	copyPolls        int
	dropCopies       bool
	failCopy         string
	sharedKeyBlocked map[string]bool
	failures         map[string]error

	listContainerCalls int
	copyStatusCalls    int
	uploadCalls        int
	bytesWritten       int64
}

// Config holds configuration for the memory store
type Config struct {
	// Now overrides the clock used for timestamps
	Now func() time.Time
}

var _ cloudvfs.ClientFactory = (*Store)(nil)

// New creates an empty store
func New(cfg ...Config) *Store {
	s := &Store{
		accounts:         make(map[string]*account),
		now:              time.Now,
		sharedKeyBlocked: make(map[string]bool),
		failures:         make(map[string]error),
	}
	if len(cfg) > 0 && cfg[0].Now != nil {
		s.now = cfg[0].Now
	}
	return s
}

// ============================================================================
// Seeding and instrumentation
// ============================================================================

// CreateContainer creates a container, and its account when missing.
func (s *Store) CreateContainer(accountName, containerName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containerLocked(accountName, containerName, true)
}

// PutBlob stores content directly, bypassing preconditions and counters.
func (s *Store) PutBlob(accountName, containerName, name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.containerLocked(accountName, containerName, true)
	c.blobs[name] = s.newObjectLocked(content, "", nil)
}

// SetAccessTier sets the access tier reported for a blob.
func (s *Store) SetAccessTier(accountName, containerName, name, tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.containerLocked(accountName, containerName, false); c != nil {
		if obj, ok := c.blobs[name]; ok {
			obj.accessTier = tier
		}
	}
}

// BlobContent returns a copy of a blob's content.
func (s *Store) BlobContent(accountName, containerName, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.containerLocked(accountName, containerName, false)
	if c == nil {
		return nil, false
	}
	obj, ok := c.blobs[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.content...), true
}

// SetCopyPolls makes every copy report pending for n status polls.
func (s *Store) SetCopyPolls(n int) {
	s.mu.Lock()
	s.copyPolls = n
	s.mu.Unlock()
}

// DropCopies makes copies report success without writing the destination.
func (s *Store) DropCopies(drop bool) {
	s.mu.Lock()
	s.dropCopies = drop
	s.mu.Unlock()
}

// FailCopies makes new copies end in the failed state with description.
// An empty description restores normal copies.
func (s *Store) FailCopies(description string) {
	s.mu.Lock()
	s.failCopy = description
	s.mu.Unlock()
}

// BlockSharedKey rejects shared key clients of an account the way a store
// with key based auth disabled does.
func (s *Store) BlockSharedKey(accountName string) {
	s.mu.Lock()
	s.sharedKeyBlocked[accountName] = true
	s.mu.Unlock()
}

// FailOn makes every call of op fail with err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// ListContainersCalls returns how often containers were listed.
func (s *Store) ListContainersCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listContainerCalls
}

// CopyStatusCalls returns how often a copy status was polled.
func (s *Store) CopyStatusCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyStatusCalls
}

// UploadCalls returns how many uploads reached the store.
func (s *Store) UploadCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploadCalls
}

// BytesWritten returns the number of bytes accepted by uploads.
func (s *Store) BytesWritten() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytesWritten
}

// ============================================================================
// Client factory
// ============================================================================

// NewAccountClient implements cloudvfs.ClientFactory
func (s *Store) NewAccountClient(spec cloudvfs.ClientSpec) (cloudvfs.AccountClient, error) {
	if spec.Account == "" {
		return nil, fmt.Errorf("%w: account name is required", cloudvfs.ErrInvalidConnection)
	}
	return &accountClient{store: s, account: spec.Account, mode: spec.Mode}, nil
}

// NewContainerClient implements cloudvfs.ClientFactory. The container is
// taken from the path of spec.ServiceURL.
func (s *Store) NewContainerClient(spec cloudvfs.ClientSpec) (cloudvfs.ContainerClient, error) {
	if spec.Account == "" {
		return nil, fmt.Errorf("%w: account name is required", cloudvfs.ErrInvalidConnection)
	}
	u, err := url.Parse(spec.ServiceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cloudvfs.ErrInvalidConnection, err)
	}
	name, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if name == "" {
		return nil, fmt.Errorf("%w: container URL has no container", cloudvfs.ErrInvalidConnection)
	}
	return &containerClient{store: s, account: spec.Account, name: name}, nil
}

// ============================================================================
// Internal helpers (callers hold s.mu)
// ============================================================================

func (s *Store) containerLocked(accountName, containerName string, create bool) *container {
	acct, ok := s.accounts[accountName]
	if !ok {
		if !create {
			return nil
		}
		acct = &account{containers: make(map[string]*container)}
		s.accounts[accountName] = acct
	}
	c, ok := acct.containers[containerName]
	if !ok {
		if !create {
			return nil
		}
		c = &container{
			created: s.now(),
			blobs:   make(map[string]*object),
			copies:  make(map[string]*pendingCopy),
		}
		acct.containers[containerName] = c
	}
	return c
}

func (s *Store) newObjectLocked(content []byte, contentType string, metadata map[string]string) *object {
	s.etagSeq++
	now := s.now()
	if contentType == "" {
		contentType = cloudvfs.DefaultContentType
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &object{
		content:     content,
		contentType: contentType,
		metadata:    md,
		created:     now,
		modTime:     now,
		etag:        fmt.Sprintf("\"0x%X\"", s.etagSeq),
		accessTier:  "Hot",
	}
}

func (s *Store) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return err
	}
	return nil
}

func (o *object) properties() *cloudvfs.BlobProperties {
	sum := md5.Sum(o.content) //nolint:gosec // content MD5 mirrors what blob stores report
	md := make(map[string]string, len(o.metadata))
	for k, v := range o.metadata {
		md[k] = v
	}
	return &cloudvfs.BlobProperties{
		Size:            int64(len(o.content)),
		ContentType:     o.contentType,
		ContentMD5:      hex.EncodeToString(sum[:]),
		ETag:            o.etag,
		CreatedOn:       o.created,
		LastModified:    o.modTime,
		AccessTier:      o.accessTier,
		BlobType:        "BlockBlob",
		LeaseState:      "available",
		LeaseStatus:     "unlocked",
		ServerEncrypted: true,
		Metadata:        md,
	}
}

// ============================================================================
// Account client
// ============================================================================

type accountClient struct {
	store   *Store
	account string
	mode    cloudvfs.AuthMode
}

func (a *accountClient) ListContainers(ctx context.Context) ([]cloudvfs.ContainerItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := a.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listContainerCalls++
	if err := s.failure(OpListContainers); err != nil {
		return nil, err
	}
	if a.mode == cloudvfs.AuthSharedKey && s.sharedKeyBlocked[a.account] {
		return nil, &cloudvfs.StoreError{
			Code:       "KeyBasedAuthenticationNotPermitted",
			StatusCode: 403,
			Err:        cloudvfs.ErrKeyAuthNotPermitted,
		}
	}

	acct, ok := s.accounts[a.account]
	if !ok {
		return nil, nil
	}
	items := make([]cloudvfs.ContainerItem, 0, len(acct.containers))
	for name, c := range acct.containers {
		items = append(items, cloudvfs.ContainerItem{Name: name, LastModified: c.created})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (a *accountClient) Container(name string) cloudvfs.ContainerClient {
	return &containerClient{store: a.store, account: a.account, name: name}
}

// ============================================================================
// Container client
// ============================================================================

type containerClient struct {
	store   *Store
	account string
	name    string
}

func (c *containerClient) Name() string {
	return c.name
}

func (c *containerClient) ListHierarchy(ctx context.Context, prefix, delimiter string) ([]cloudvfs.ListItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := c.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure(OpListHierarchy); err != nil {
		return nil, err
	}
	cont := s.containerLocked(c.account, c.name, false)
	if cont == nil {
		return nil, &cloudvfs.PathError{Op: "list", Path: c.name, Err: cloudvfs.ErrNotExist}
	}

	names := make([]string, 0, len(cont.blobs))
	for name := range cont.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var items []cloudvfs.ListItem
	seen := make(map[string]bool)
	for _, name := range names {
		rest := name[len(prefix):]
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				p := prefix + rest[:i+len(delimiter)]
				if !seen[p] {
					seen[p] = true
					items = append(items, cloudvfs.ListItem{Name: p, IsPrefix: true})
				}
				continue
			}
		}
		items = append(items, cloudvfs.ListItem{Name: name, Properties: cont.blobs[name].properties()})
	}
	return items, nil
}

func (c *containerClient) Blob(name string) cloudvfs.BlobClient {
	return &blobClient{store: c.store, account: c.account, container: c.name, name: name}
}

// ============================================================================
// Blob client
// ============================================================================

type blobClient struct {
	store     *Store
	account   string
	container string
	name      string
}

func (b *blobClient) Name() string {
	return b.name
}

// SourceURL implements cloudvfs.BlobClient
func (b *blobClient) SourceURL(ctx context.Context) (string, error) {
	u := url.URL{Scheme: "memory", Host: b.account, Path: "/" + b.container + "/" + b.name}
	return u.String(), nil
}

func (b *blobClient) lookupLocked() (*object, bool) {
	cont := b.store.containerLocked(b.account, b.container, false)
	if cont == nil {
		return nil, false
	}
	obj, ok := cont.blobs[b.name]
	return obj, ok
}

func (b *blobClient) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	_, ok := b.lookupLocked()
	return ok, nil
}

func (b *blobClient) Properties(ctx context.Context) (*cloudvfs.BlobProperties, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := b.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpProperties); err != nil {
		return nil, err
	}
	obj, ok := b.lookupLocked()
	if !ok {
		return nil, &cloudvfs.PathError{Op: "properties", Path: b.name, Err: cloudvfs.ErrNotExist}
	}
	return obj.properties(), nil
}

func (b *blobClient) Download(ctx context.Context) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s := b.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpDownload); err != nil {
		return nil, 0, err
	}
	obj, ok := b.lookupLocked()
	if !ok {
		return nil, 0, &cloudvfs.PathError{Op: "download", Path: b.name, Err: cloudvfs.ErrNotExist}
	}
	content := append([]byte(nil), obj.content...)
	return io.NopCloser(bytes.NewReader(content)), int64(len(content)), nil
}

// Upload implements cloudvfs.BlobClient. The If-None-Match precondition
// is evaluated before any byte of r is consumed.
func (b *blobClient) Upload(ctx context.Context, r io.Reader, size int64, opts cloudvfs.UploadOptions) error {
	s := b.store
	s.mu.Lock()
	s.uploadCalls++
	if err := s.failure(OpUpload); err != nil {
		s.mu.Unlock()
		return err
	}
	if opts.IfNoneMatch {
		if _, exists := b.lookupLocked(); exists {
			s.mu.Unlock()
			return &cloudvfs.PathError{Op: "upload", Path: b.name, Err: cloudvfs.ErrExist}
		}
	}
	s.mu.Unlock()

	data, err := readBlocks(r, opts.ChunkSize)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cont := s.containerLocked(b.account, b.container, false)
	if cont == nil {
		return &cloudvfs.PathError{Op: "upload", Path: b.container, Err: cloudvfs.ErrNotExist}
	}
	if _, exists := cont.blobs[b.name]; exists && opts.IfNoneMatch {
		return &cloudvfs.PathError{Op: "upload", Path: b.name, Err: cloudvfs.ErrExist}
	}
	cont.blobs[b.name] = s.newObjectLocked(data, opts.ContentType, opts.Metadata)
	s.bytesWritten += int64(len(data))
	return nil
}

// readBlocks drains r in reads of blockSize bytes, the way block uploads
// stage their content.
func readBlocks(r io.Reader, blockSize int) ([]byte, error) {
	if blockSize <= 0 {
		blockSize = cloudvfs.DefaultChunkSize
	}
	var data bytes.Buffer
	buf := make([]byte, blockSize)
	for {
		n, err := io.ReadFull(r, buf)
		data.Write(buf[:n])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return data.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (b *blobClient) StartCopy(ctx context.Context, sourceURL string) (cloudvfs.CopyStatus, error) {
	if err := ctx.Err(); err != nil {
		return cloudvfs.CopyStatus{}, err
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Scheme != "memory" {
		return cloudvfs.CopyStatus{}, fmt.Errorf("%w: unsupported copy source %q", cloudvfs.ErrNotSupported, sourceURL)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(parts) != 2 {
		return cloudvfs.CopyStatus{}, fmt.Errorf("%w: malformed copy source %q", cloudvfs.ErrInvalidPath, sourceURL)
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpStartCopy); err != nil {
		return cloudvfs.CopyStatus{}, err
	}

	srcCont := s.containerLocked(u.Host, parts[0], false)
	if srcCont == nil {
		return cloudvfs.CopyStatus{}, &cloudvfs.PathError{Op: "copy", Path: sourceURL, Err: cloudvfs.ErrNotExist}
	}
	src, ok := srcCont.blobs[parts[1]]
	if !ok {
		return cloudvfs.CopyStatus{}, &cloudvfs.PathError{Op: "copy", Path: sourceURL, Err: cloudvfs.ErrNotExist}
	}
	dst := s.containerLocked(b.account, b.container, false)
	if dst == nil {
		return cloudvfs.CopyStatus{}, &cloudvfs.PathError{Op: "copy", Path: b.container, Err: cloudvfs.ErrNotExist}
	}

	if s.failCopy != "" {
		return cloudvfs.CopyStatus{State: cloudvfs.CopyFailed, Description: s.failCopy}, nil
	}

	snapshot := *src
	snapshot.content = append([]byte(nil), src.content...)
	if s.copyPolls > 0 {
		dst.copies[b.name] = &pendingCopy{source: &snapshot, remaining: s.copyPolls}
		return cloudvfs.CopyStatus{State: cloudvfs.CopyPending}, nil
	}
	b.completeCopyLocked(dst, &snapshot)
	return cloudvfs.CopyStatus{State: cloudvfs.CopySuccess}, nil
}

func (b *blobClient) CopyStatus(ctx context.Context) (cloudvfs.CopyStatus, error) {
	if err := ctx.Err(); err != nil {
		return cloudvfs.CopyStatus{}, err
	}
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.copyStatusCalls++
	if err := s.failure(OpCopyStatus); err != nil {
		return cloudvfs.CopyStatus{}, err
	}
	dst := s.containerLocked(b.account, b.container, false)
	if dst == nil {
		return cloudvfs.CopyStatus{}, &cloudvfs.PathError{Op: "copy", Path: b.container, Err: cloudvfs.ErrNotExist}
	}
	pc, ok := dst.copies[b.name]
	if !ok {
		if _, exists := dst.blobs[b.name]; exists || s.dropCopies {
			return cloudvfs.CopyStatus{State: cloudvfs.CopySuccess}, nil
		}
		return cloudvfs.CopyStatus{State: cloudvfs.CopyFailed, Description: "no copy in progress"}, nil
	}
	pc.remaining--
	if pc.remaining > 0 {
		return cloudvfs.CopyStatus{State: cloudvfs.CopyPending}, nil
	}
	delete(dst.copies, b.name)
	b.completeCopyLocked(dst, pc.source)
	return cloudvfs.CopyStatus{State: cloudvfs.CopySuccess}, nil
}

func (b *blobClient) completeCopyLocked(dst *container, src *object) {
	if b.store.dropCopies {
		return
	}
	obj := b.store.newObjectLocked(src.content, src.contentType, src.metadata)
	obj.accessTier = src.accessTier
	dst.blobs[b.name] = obj
}

func (b *blobClient) Delete(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpDelete); err != nil {
		return false, err
	}
	cont := s.containerLocked(b.account, b.container, false)
	if cont == nil {
		return false, nil
	}
	if _, ok := cont.blobs[b.name]; !ok {
		return false, nil
	}
	delete(cont.blobs, b.name)
	return true, nil
}
