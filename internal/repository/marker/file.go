package marker

import (
	"bufio"
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	// Registers SHA-512 for the commit checksum.
	_ "crypto/sha512"
)

// Repository defines persistence operations for the version marker.
type Repository interface {
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context, version int) error
	Remove(ctx context.Context) error
}

const (
	// FileMode is applied to the marker file.
	FileMode os.FileMode = 0o644

	// checksumFunction verifies the marker content before it replaces the old one.
	checksumFunction = crypto.SHA512

	// maxLineLength bounds how much of a damaged marker is read.
	maxLineLength = 64
)

var (
	// ErrNotFound is returned when the marker file does not exist.
	ErrNotFound = errors.New("version marker not found")
	// ErrMalformed is returned when the marker does not hold an integer.
	ErrMalformed = errors.New("version marker is malformed")
)

// FileRepository stores the marker as a file on disk.
type FileRepository struct {
	// path is the filesystem location of the marker.
	path string
}

// NewFileRepository creates a repository for the marker at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the marker location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the version from the first line of the marker.
func (r *FileRepository) Load(_ context.Context) (int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotFound
		}

		return 0, fmt.Errorf("open version marker: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	line, err := bufio.NewReader(io.LimitReader(f, maxLineLength)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read version marker: %w", err)
	}

	version, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, line)
	}

	return version, nil
}

// Save creates the marker and replaces its whole content with version.
// The new content is written next to the marker, checked against its
// SHA-512 sum and renamed over it, so a reader never sees a partial value.
func (r *FileRepository) Save(_ context.Context, version int) error {
	content := []byte(strconv.Itoa(version))

	// go-update swaps files by renaming the old one away, so it must exist.
	if _, err := os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		f, createErr := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY, FileMode)
		if createErr != nil {
			return fmt.Errorf("create version marker: %w", createErr)
		}

		if createErr = f.Close(); createErr != nil {
			return fmt.Errorf("create version marker: %w", createErr)
		}
	} else if err != nil {
		return fmt.Errorf("stat version marker: %w", err)
	}

	hasher := checksumFunction.New()
	_, _ = hasher.Write(content)

	options := goupdate.Options{
		TargetPath: r.path,
		TargetMode: FileMode,
		Checksum:   hasher.Sum(nil),
		Hash:       checksumFunction,
	}

	if err := goupdate.Apply(bytes.NewReader(content), options); err != nil {
		if rerr := goupdate.RollbackError(err); rerr != nil {
			return fmt.Errorf("write version marker: %w (rollback: %w)", err, rerr)
		}

		return fmt.Errorf("write version marker: %w", err)
	}

	return nil
}

// Remove deletes the marker. A missing marker is not an error.
func (r *FileRepository) Remove(_ context.Context) error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove version marker: %w", err)
	}

	return nil
}
