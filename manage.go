package cloudvfs

import (
	"context"
	"errors"

	"github.com/gobeaver/cloudvfs/internal/logging"
)

// Delete removes a blob, or a connection when path names an entry of the
// reserved account. A successful blob delete keeps the parent directory
// visible through the directory cache.
func (s *Session) Delete(ctx context.Context, path string) (DeleteOutcome, error) {
	vp, err := Parse(path)
	if err != nil {
		return DeleteNothing, err
	}

	if vp.AccountName() == ConnectAccountName {
		if vp.Level() != 2 {
			return DeleteNothing, nil
		}
		removed, err := s.registry.Remove(ctx, vp.ContainerName())
		if err != nil {
			return DeleteConnectionRemoved, err
		}
		if removed {
			return DeleteConnectionRemoved, nil
		}
		return DeleteNothing, nil
	}

	blob, err := s.blobClient(ctx, "delete", vp)
	if err != nil {
		return DeleteNothing, unresolvable("delete", vp, err)
	}

	deleted, err := blob.Delete(ctx)
	if err != nil {
		return DeleteNothing, &PathError{Op: "delete", Path: vp.String(), Err: abortError(err)}
	}
	removedDir := s.dirs.Remove(vp)
	if deleted {
		s.props.Delete(vp.Key())
		s.dirs.Add(vp.Parent())
		s.logger.Debug("blob deleted", logging.String("path", vp.String()))
		return DeleteDeleted, nil
	}
	if removedDir {
		return DeleteDeleted, nil
	}
	return DeleteNothing, nil
}

// MakeDirectory creates a directory. At account level it adds a
// connection through the prompter, using the name as prefilled input.
// Containers cannot be created. Deeper directories only exist in the
// directory cache until a blob is written below them.
func (s *Session) MakeDirectory(ctx context.Context, path string) error {
	vp, err := Parse(path)
	if err != nil {
		return err
	}

	switch vp.Level() {
	case 0:
		return &PathError{Op: "mkdir", Path: vp.String(), Err: ErrExist}
	case 1:
		if vp.AccountName() == ConnectAccountName {
			return &PathError{Op: "mkdir", Path: vp.String(), Err: ErrExist}
		}
		_, err := s.promptConnection(ctx, "Blob Connection String:", vp.AccountName())
		return err
	case 2:
		return &PathError{Op: "mkdir", Path: vp.String(), Err: ErrNotSupported}
	default:
		if vp.AccountName() == ConnectAccountName {
			return &PathError{Op: "mkdir", Path: vp.String(), Err: ErrNotSupported}
		}
		s.dirs.Add(vp)
		return nil
	}
}

// RemoveDirectory evicts a provisional directory. At account level it
// removes the connection. It reports whether anything was removed.
func (s *Session) RemoveDirectory(ctx context.Context, path string) (bool, error) {
	vp, err := Parse(path)
	if err != nil {
		return false, err
	}

	removed := s.dirs.Remove(vp)
	if vp.Level() == 1 && vp.AccountName() != ConnectAccountName {
		return s.registry.Remove(ctx, vp.AccountName())
	}
	return removed, nil
}

// OpenConnectOption runs the action behind one of the reserved account's
// pseudo entries and returns the names of the connections it added.
func (s *Session) OpenConnectOption(ctx context.Context, path string) ([]string, error) {
	vp, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if vp.Level() != 2 || vp.AccountName() != ConnectAccountName {
		return nil, &PathError{Op: "open", Path: vp.String(), Err: ErrNotSupported}
	}

	opt, ok := LookupConnectOption(vp.ContainerName())
	if !ok {
		return nil, &PathError{Op: "open", Path: vp.String(), Err: ErrNotExist}
	}

	if opt.Subscription {
		if s.enumerator == nil {
			return nil, &PathError{Op: "open", Path: vp.String(), Err: ErrNotSupported}
		}
		names, err := s.registry.AddFromSubscription(ctx, s.enumerator)
		if err != nil {
			return names, abortError(err)
		}
		return names, nil
	}

	name, err := s.promptConnection(ctx, opt.Prompt, opt.Template)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (s *Session) promptConnection(ctx context.Context, title, template string) (string, error) {
	if s.prompter == nil {
		return "", &PathError{Op: "connect", Path: template, Err: ErrNotSupported}
	}
	input, ok, err := s.prompter.PromptConnection(ctx, title, template)
	if err != nil {
		return "", abortError(err)
	}
	if !ok {
		return "", ErrUserAbort
	}

	name, err := s.registry.AddConnection(ctx, input)
	if err != nil {
		if errors.Is(err, ErrInvalidConnection) {
			s.logger.Warn("rejected connection input", logging.String("prompt", title))
		}
		return "", err
	}
	return name, nil
}
