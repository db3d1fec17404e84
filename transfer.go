package cloudvfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/gobeaver/cloudvfs/internal/logging"
)

// Download copies a blob to a local file.
//
// Without overwrite the local file is created exclusively. Cancellation
// stops the copy between chunks and leaves the partial file in place.
func (s *Session) Download(ctx context.Context, remotePath, localPath string, options ...Option) error {
	opts := processOptions(options...)
	vp, err := Parse(remotePath)
	if err != nil {
		return err
	}
	if opts.Resume {
		return &PathError{Op: "download", Path: vp.String(), Err: ErrNotSupported}
	}

	blob, err := s.blobClient(ctx, "download", vp)
	if err != nil {
		return unresolvable("download", vp, err)
	}

	exists, err := blob.Exists(ctx)
	if err != nil {
		return &PathError{Op: "download", Path: vp.String(), Err: abortError(err)}
	}
	if !exists {
		return &PathError{Op: "download", Path: vp.String(), Err: ErrNotExist}
	}

	log := s.logger.With(
		logging.String("transfer_id", uuid.NewString()),
		logging.String("op", "download"),
		logging.String("remote", vp.String()),
		logging.String("local", localPath),
	)

	body, size, err := blob.Download(ctx)
	if err != nil {
		return &PathError{Op: "download", Path: vp.String(), Err: abortError(err)}
	}
	defer body.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(localPath, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &PathError{Op: "download", Path: localPath, Err: ErrExist}
		}
		return &PathError{Op: "download", Path: localPath, Err: err}
	}

	log.Debug("download started", logging.Int64("size", size))
	tracker := newProgressTracker(size, opts.Progress)
	tracker.start()

	if err := s.copyChunks(ctx, file, body, tracker); err != nil {
		file.Close()
		err = abortError(err)
		if errors.Is(err, ErrUserAbort) {
			log.Info("download aborted", logging.Int64("transferred", tracker.transferred))
		} else {
			log.Error("download failed", logging.ErrorField(err))
		}
		return &PathError{Op: "download", Path: vp.String(), Err: err}
	}
	if err := file.Close(); err != nil {
		return &PathError{Op: "download", Path: localPath, Err: err}
	}

	if opts.DeleteSource {
		if _, err := blob.Delete(ctx); err != nil {
			log.Error("failed to delete source after download", logging.ErrorField(err))
			return &PathError{Op: "download", Path: vp.String(), Err: abortError(err)}
		}
		s.props.Delete(vp.Key())
		s.dirs.Add(vp.Parent())
	}

	tracker.finish()
	log.Info("download finished", logging.Int64("size", tracker.transferred))
	return nil
}

// copyChunks copies src to dst in chunkSize pieces, checking ctx before
// every chunk.
func (s *Session) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, tracker *progressTracker) error {
	buf := make([]byte, s.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			tracker.add(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// Upload copies a local file to a blob.
//
// Without overwrite the write is conditional on the blob being absent and
// fails with ErrExist otherwise.
func (s *Session) Upload(ctx context.Context, localPath, remotePath string, options ...Option) error {
	opts := processOptions(options...)
	vp, err := Parse(remotePath)
	if err != nil {
		return err
	}
	if opts.Resume {
		return &PathError{Op: "upload", Path: vp.String(), Err: ErrNotSupported}
	}

	blob, err := s.blobClient(ctx, "upload", vp)
	if err != nil {
		return unresolvable("upload", vp, err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &PathError{Op: "upload", Path: localPath, Err: ErrNotExist}
		}
		return &PathError{Op: "upload", Path: localPath, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return &PathError{Op: "upload", Path: localPath, Err: err}
	}

	if !opts.Overwrite {
		exists, err := blob.Exists(ctx)
		if err != nil {
			return &PathError{Op: "upload", Path: vp.String(), Err: abortError(err)}
		}
		if exists {
			return &PathError{Op: "upload", Path: vp.String(), Err: ErrExist}
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentTypeOf(filepath.Base(localPath))
	}

	log := s.logger.With(
		logging.String("transfer_id", uuid.NewString()),
		logging.String("op", "upload"),
		logging.String("local", localPath),
		logging.String("remote", vp.String()),
	)
	log.Debug("upload started", logging.Int64("size", info.Size()), logging.String("content_type", contentType))

	tracker := newProgressTracker(info.Size(), opts.Progress)
	tracker.start()

	reader := &transferReader{ctx: ctx, reader: file, chunkSize: s.chunkSize, tracker: tracker}
	err = blob.Upload(ctx, reader, info.Size(), UploadOptions{
		ContentType: contentType,
		Metadata:    opts.Metadata,
		IfNoneMatch: !opts.Overwrite,
		ChunkSize:   s.chunkSize,
	})
	if err != nil {
		err = abortError(err)
		if errors.Is(err, ErrPermission) && s.isContainerSAS(vp) {
			err = fmt.Errorf("%w: %v", ErrNotSupported, err)
		}
		if errors.Is(err, ErrUserAbort) {
			log.Info("upload aborted", logging.Int64("transferred", tracker.transferred))
		} else {
			log.Error("upload failed", logging.ErrorField(err))
		}
		return &PathError{Op: "upload", Path: vp.String(), Err: err}
	}
	s.props.Delete(vp.Key())

	if opts.DeleteSource {
		file.Close()
		if err := os.Remove(localPath); err != nil {
			return &PathError{Op: "upload", Path: localPath, Err: err}
		}
	}

	tracker.finish()
	log.Info("upload finished", logging.Int64("size", info.Size()))
	return nil
}

func (s *Session) isContainerSAS(vp VirtualPath) bool {
	conn := s.registry.Get(vp.AccountName())
	return conn != nil && conn.IsContainerSAS()
}

// unresolvable maps a failure to reach an account or container onto
// ErrNotSupported. Auth outcomes and cancellation pass through.
func unresolvable(op string, vp VirtualPath, err error) error {
	switch {
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrAuthFailed), errors.Is(err, ErrNotSupported):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &PathError{Op: op, Path: vp.String(), Err: abortError(err)}
	default:
		return &PathError{Op: op, Path: vp.String(), Err: fmt.Errorf("%w: %v", ErrNotSupported, err)}
	}
}
