package cloudvfs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/gobeaver/cloudvfs/internal/logging"
)

// ConnectAccountName is the reserved pseudo account listing the ways to
// add a connection.
const ConnectAccountName = "Connect to Azure"

// ConnectOption is one entry of the reserved pseudo account.
type ConnectOption struct {
	Label    string
	Prompt   string
	Template string

	// Subscription options enumerate accounts instead of prompting.
	Subscription bool
}

// ConnectOptions lists the pseudo entries in display order.
var ConnectOptions = []ConnectOption{
	{
		Label:    "[Connect to Storage by Connection String]",
		Prompt:   "Storage Connection String:",
		Template: "DefaultEndpointsProtocol=https;AccountName=[StorageAccount];AccountKey=[Key];EndpointSuffix=core.windows.net",
	},
	{
		Label:    "[Connect to Storage by SAS Url]",
		Prompt:   "SAS Storage Url:",
		Template: "https://[StorageAccount].blob.core.windows.net/?[SASKey]",
	},
	{
		Label:    "[Connect to Blob by SAS Url]",
		Prompt:   "SAS Blob Url:",
		Template: "https://[StorageAccount].blob.core.windows.net/[Container]?[SASKey]",
	},
	{
		Label:    "[Connect to Blob by Azure AD]",
		Prompt:   "Blob Url:",
		Template: "https://[StorageAccount].blob.core.windows.net/[Container]?",
	},
	{
		Label:        "[Connect to Subscription]",
		Subscription: true,
	},
}

// LookupConnectOption finds a pseudo entry by label.
func LookupConnectOption(label string) (ConnectOption, bool) {
	for _, opt := range ConnectOptions {
		if opt.Label == label {
			return opt, true
		}
	}
	return ConnectOption{}, false
}

// List returns the entries directly below path.
func (s *Session) List(ctx context.Context, path string) ([]FileInfo, error) {
	vp, err := Parse(path)
	if err != nil {
		return nil, err
	}

	switch {
	case vp.IsRoot():
		return s.listAccounts(), nil
	case vp.AccountName() == ConnectAccountName:
		if vp.Level() > 1 {
			return nil, &PathError{Op: "list", Path: vp.String(), Err: ErrNotExist}
		}
		return s.listConnectOptions(vp), nil
	case vp.Level() == 1:
		return s.listContainers(ctx, vp)
	default:
		return s.listBlobs(ctx, vp)
	}
}

// ListMatching returns the entries directly below path whose names match
// a glob pattern such as "*.csv".
func (s *Session) ListMatching(ctx context.Context, path, pattern string) ([]FileInfo, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	entries, err := s.List(ctx, path)
	if err != nil {
		return nil, err
	}

	matched := entries[:0:0]
	for _, e := range entries {
		if e.Placeholder {
			continue
		}
		if g.Match(e.Name) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (s *Session) listAccounts() []FileInfo {
	names := s.registry.Names()
	entries := make([]FileInfo, 0, len(names)+1)
	for _, name := range names {
		entries = append(entries, FileInfo{Name: name, Path: Root.Join(name).String(), IsDir: true})
	}
	return append(entries, FileInfo{
		Name:   ConnectAccountName,
		Path:   Root.Join(ConnectAccountName).String(),
		IsDir:  true,
		Pseudo: true,
	})
}

func (s *Session) listConnectOptions(vp VirtualPath) []FileInfo {
	names := s.registry.Names()
	entries := make([]FileInfo, 0, len(ConnectOptions)+len(names))
	for _, opt := range ConnectOptions {
		entries = append(entries, FileInfo{Name: opt.Label, Path: vp.Join(opt.Label).String(), Pseudo: true})
	}
	for _, name := range names {
		entries = append(entries, FileInfo{Name: name, Path: vp.Join(name).String(), Pseudo: true})
	}
	return entries
}

func (s *Session) listContainers(ctx context.Context, vp VirtualPath) ([]FileInfo, error) {
	name := vp.AccountName()
	conn := s.registry.Get(name)
	if conn == nil {
		return nil, &PathError{Op: "list", Path: vp.String(), Err: ErrNotExist}
	}

	if conn.IsContainerScoped() {
		container := conn.ContainerName()
		return []FileInfo{{Name: container, Path: vp.Join(container).String(), IsDir: true}}, nil
	}

	items, err := s.fetchContainers(ctx, name)
	if errors.Is(err, ErrKeyAuthNotPermitted) {
		s.logger.Warn("shared key rejected, retrying with delegated auth", logging.String("account", name))
		if perr := s.registry.EnableDelegatedAuth(ctx, name); perr != nil {
			s.logger.Error("failed to persist delegated auth", logging.String("account", name), logging.ErrorField(perr))
		}
		items, err = s.fetchContainers(ctx, name)
		if err != nil && !errors.Is(err, ErrAuthRequired) && !errors.Is(err, ErrUserAbort) {
			err = fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}
	if errors.Is(err, ErrPermission) && !errors.Is(err, ErrAuthFailed) {
		err = fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if err != nil {
		s.logger.Error("cannot list containers", logging.String("account", name), logging.ErrorField(err))
		return nil, &PathError{Op: "list", Path: vp.String(), Err: err}
	}

	entries := make([]FileInfo, 0, len(items))
	for _, item := range items {
		entries = append(entries, FileInfo{
			Name:    item.Name,
			Path:    vp.Join(item.Name).String(),
			IsDir:   true,
			ModTime: item.LastModified,
		})
	}
	return entries, nil
}

func (s *Session) fetchContainers(ctx context.Context, name string) ([]ContainerItem, error) {
	acct, err := s.registry.ResolveClient(ctx, name)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrNotSupported
	}
	items, err := acct.ListContainers(ctx)
	if err != nil {
		return nil, abortError(err)
	}
	return items, nil
}

func (s *Session) listBlobs(ctx context.Context, vp VirtualPath) ([]FileInfo, error) {
	container, err := s.containerClient(ctx, "list", vp)
	if err != nil {
		return nil, err
	}

	prefix := vp.BlobName()
	if prefix != "" {
		prefix += Separator
	}

	items, err := container.ListHierarchy(ctx, prefix, Separator)
	if err != nil {
		return nil, &PathError{Op: "list", Path: vp.String(), Err: abortError(err)}
	}

	dir := VirtualPath{segments: vp.segments}
	entries := make([]FileInfo, 0, len(items))
	for _, item := range items {
		name := strings.Trim(strings.TrimPrefix(item.Name, prefix), Separator)
		if name == "" {
			continue
		}
		child := dir.Join(name)

		if item.IsPrefix {
			entries = append(entries, FileInfo{Name: name, Path: child.String(), IsDir: true})
			continue
		}

		entry := FileInfo{Name: name, Path: child.String()}
		if p := item.Properties; p != nil {
			entry.Size = p.Size
			entry.ModTime = p.LastModified
			entry.CreatedAt = p.CreatedOn
			entry.ContentType = p.ContentType
			entry.Archived = strings.EqualFold(p.AccessTier, "Archive")
			s.props.Set(child.Key(), p)
		}
		entries = append(entries, entry)
	}

	return s.dirs.Merge(dir, entries), nil
}
