package cloudvfs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/gobeaver/cloudvfs/internal/logging"
)

// copyPhase is the state of a server-side copy as seen by the engine.
type copyPhase int

const (
	copyStarting copyPhase = iota
	copyPolling
	copyCompleted
	copyFailed
)

func (p copyPhase) String() string {
	switch p {
	case copyStarting:
		return "pending"
	case copyPolling:
		return "polling"
	case copyCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// Copy duplicates a blob with a server-side copy.
func (s *Session) Copy(ctx context.Context, srcPath, dstPath string, options ...Option) error {
	return s.copyBlob(ctx, "copy", srcPath, dstPath, processOptions(options...), false)
}

// Move copies a blob and deletes the source once the destination is
// confirmed. When the source cannot be deleted the duplicate is kept and
// the failure is logged.
func (s *Session) Move(ctx context.Context, srcPath, dstPath string, options ...Option) error {
	return s.copyBlob(ctx, "move", srcPath, dstPath, processOptions(options...), true)
}

func (s *Session) copyBlob(ctx context.Context, op, srcPath, dstPath string, opts *Options, deleteSource bool) error {
	srcVP, err := Parse(srcPath)
	if err != nil {
		return err
	}
	dstVP, err := Parse(dstPath)
	if err != nil {
		return err
	}

	src, err := s.blobClient(ctx, op, srcVP)
	if err != nil {
		return unresolvable(op, srcVP, err)
	}
	dst, err := s.blobClient(ctx, op, dstVP)
	if err != nil {
		return unresolvable(op, dstVP, err)
	}

	if deleteSource {
		same, err := sameBlob(ctx, src, dst)
		if err != nil {
			return &PathError{Op: op, Path: srcVP.String(), Err: abortError(err)}
		}
		if same || srcVP.Key() == dstVP.Key() {
			return &PathError{Op: op, Path: dstVP.String(), Err: fmt.Errorf("%w: source and destination are the same blob", ErrNotSupported)}
		}
	}

	exists, err := src.Exists(ctx)
	if err != nil {
		return &PathError{Op: op, Path: srcVP.String(), Err: abortError(err)}
	}
	if !exists {
		return &PathError{Op: op, Path: srcVP.String(), Err: ErrNotExist}
	}
	if !opts.Overwrite {
		exists, err := dst.Exists(ctx)
		if err != nil {
			return &PathError{Op: op, Path: dstVP.String(), Err: abortError(err)}
		}
		if exists {
			return &PathError{Op: op, Path: dstVP.String(), Err: ErrExist}
		}
	}

	log := s.logger.With(
		logging.String("transfer_id", uuid.NewString()),
		logging.String("op", op),
		logging.String("source", srcVP.String()),
		logging.String("destination", dstVP.String()),
	)

	tracker := newProgressTracker(0, opts.Progress)
	tracker.start()

	sourceURL, err := src.SourceURL(ctx)
	if err != nil {
		return &PathError{Op: op, Path: srcVP.String(), Err: abortError(err)}
	}

	log.Debug("starting server-side copy")
	status, err := dst.StartCopy(ctx, sourceURL)
	if err != nil {
		return &PathError{Op: op, Path: dstVP.String(), Err: abortError(err)}
	}

	phase, status, err := s.awaitCopy(ctx, dst, status, log)
	if err != nil {
		if phase == copyPolling {
			log.Info("copy aborted while polling")
		}
		return &PathError{Op: op, Path: dstVP.String(), Err: err}
	}
	if phase == copyFailed {
		err := &StoreError{Code: string(status.State), Err: fmt.Errorf("copy %s: %s", status.State, status.Description)}
		log.Error("server-side copy failed", logging.ErrorField(err))
		return &PathError{Op: op, Path: dstVP.String(), Err: err}
	}

	ok, err := dst.Exists(ctx)
	if err != nil {
		return &PathError{Op: op, Path: dstVP.String(), Err: abortError(err)}
	}
	if !ok {
		integrity := &CopyIntegrityError{Source: srcVP.String(), Destination: dstVP.String()}
		log.Error("copy reported success but destination is missing", logging.ErrorField(integrity))
		return &PathError{Op: op, Path: dstVP.String(), Err: integrity}
	}
	s.props.Delete(dstVP.Key())

	if deleteSource {
		if _, err := src.Delete(ctx); err != nil {
			log.Warn("source not deleted after move, duplicate kept", logging.ErrorField(err))
		} else {
			s.props.Delete(srcVP.Key())
			s.dirs.Add(srcVP.Parent())
		}
	}

	tracker.finish()
	log.Info(op + " finished")
	return nil
}

// sameBlob reports whether src and dst address one physical blob. Two
// connections may reach the same account, so the store URLs are compared
// without their signatures.
func sameBlob(ctx context.Context, src, dst BlobClient) (bool, error) {
	srcURL, err := src.SourceURL(ctx)
	if err != nil {
		return false, err
	}
	dstURL, err := dst.SourceURL(ctx)
	if err != nil {
		return false, err
	}
	return blobLocation(srcURL) == blobLocation(dstURL), nil
}

func blobLocation(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.ToLower(u.Scheme+"://"+u.Host) + u.EscapedPath()
}

// awaitCopy drives a started copy to a terminal state, polling the
// destination every poll interval. Cancellation while waiting returns
// ErrUserAbort without polling again.
func (s *Session) awaitCopy(ctx context.Context, dst BlobClient, status CopyStatus, log logging.Logger) (copyPhase, CopyStatus, error) {
	phase := copyStarting
	polls := 0
	for {
		switch status.State {
		case CopySuccess:
			return copyCompleted, status, nil
		case CopyPending:
			phase = copyPolling
		default:
			return copyFailed, status, nil
		}

		select {
		case <-ctx.Done():
			return phase, status, abortError(ctx.Err())
		case <-s.clock.After(s.pollInterval):
		}
		if err := ctx.Err(); err != nil {
			return phase, status, abortError(err)
		}

		polls++
		next, err := dst.CopyStatus(ctx)
		if err != nil {
			return phase, status, abortError(err)
		}
		status = next
		log.Debug("copy status", logging.String("state", string(status.State)), logging.Int("polls", polls))
	}
}
