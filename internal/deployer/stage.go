package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/libdeploy/internal/logger"
)

// stage copies the packaged archive into the target directory and returns
// the path of the copy. Any failure wraps ErrStaging.
func (d *Deployer) stage(ctx context.Context) (string, error) {
	// A file squatting on the directory path is replaced.
	if info, err := os.Lstat(d.dir); err == nil && !info.IsDir() {
		if err = os.Remove(d.dir); err != nil {
			logger.WarnKV(ctx, "Unable to remove file in place of library directory", "error", err)
		}
	}

	if err := os.MkdirAll(d.dir, dirMode); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrStaging, d.dir, err)
	}

	staged := filepath.Join(d.dir, d.stagedName)

	if info, err := os.Lstat(staged); err == nil && !info.Mode().IsRegular() {
		if err = os.RemoveAll(staged); err != nil {
			logger.WarnKV(ctx, "Unable to remove entry in place of staged archive", "error", err)
		}
	}

	src, err := d.resource.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStaging, err)
	}

	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(staged, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, stagedMode)
	if err != nil {
		return "", fmt.Errorf("%w: create staged archive: %w", ErrStaging, err)
	}

	written, err := copyBuffered(dst, src, make([]byte, d.bufferSize))

	if err = errors.Join(err, dst.Close()); err != nil {
		if removeErr := os.Remove(staged); removeErr != nil {
			logger.WarnKV(ctx, "Unable to delete partial staged archive", "error", removeErr)
		}

		return "", fmt.Errorf("%w: copy %s: %w", ErrStaging, d.resource.Name(), err)
	}

	logger.DebugKV(ctx, "Copied packaged archive", "bytes", written)

	return staged, nil
}

// copyBuffered copies src to dst through buf, writing at most len(buf) bytes
// per call and only the bytes actually read.
func copyBuffered(dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			m, writeErr := dst.Write(buf[:n])
			written += int64(m)

			if writeErr != nil {
				return written, writeErr
			}

			if m != n {
				return written, io.ErrShortWrite
			}
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			return written, readErr
		}
	}
}

// removeTree deletes path and everything below it, children before their
// parent. Failures are logged; the caller re-creates the directory anyway.
func removeTree(ctx context.Context, path string) {
	info, err := os.Lstat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to inspect path for deletion", "path", path, "error", err)
		}

		return
	}

	if info.IsDir() {
		entries, readErr := os.ReadDir(path)
		if readErr != nil {
			logger.WarnKV(ctx, "Unable to list directory for deletion", "path", path, "error", readErr)
		}

		for _, entry := range entries {
			removeTree(ctx, filepath.Join(path, entry.Name()))
		}
	}

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to delete path", "path", path, "error", err)
	}
}
