// Package resource gives read-only access to the packaged bundle archive.
//
// The deployer only copies the bytes of a Resource and never interprets them,
// so the handle can be backed by an embedded filesystem or a file on disk.
package resource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Resource is a sequential byte stream packaged with the application.
type Resource interface {
	// Name identifies the resource in logs.
	Name() string
	// Open returns a fresh reader positioned at the first byte.
	Open() (io.ReadCloser, error)
}

// ErrNotRegular is returned when the resource does not point to a regular file.
var ErrNotRegular = errors.New("resource is not a regular file")

// FSResource reads a file from an fs.FS such as an embed.FS.
type FSResource struct {
	fsys fs.FS
	name string
}

// FromFS returns a resource reading name from fsys.
func FromFS(fsys fs.FS, name string) *FSResource {
	return &FSResource{fsys: fsys, name: name}
}

// Name returns the path inside the filesystem.
func (r *FSResource) Name() string {
	return r.name
}

// Open opens the file inside the filesystem.
func (r *FSResource) Open() (io.ReadCloser, error) {
	f, err := r.fsys.Open(r.name)
	if err != nil {
		return nil, fmt.Errorf("open resource %s: %w", r.name, err)
	}

	return checkRegular(f, r.name)
}

// FileResource reads a file from the host filesystem.
type FileResource struct {
	path string
}

// FromFile returns a resource reading the file at path.
func FromFile(path string) *FileResource {
	return &FileResource{path: filepath.Clean(path)}
}

// Name returns the cleaned file path.
func (r *FileResource) Name() string {
	return r.path
}

// Open opens the file for reading.
func (r *FileResource) Open() (io.ReadCloser, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open resource: %w", err)
	}

	return checkRegular(f, r.path)
}

func checkRegular(f fs.File, name string) (io.ReadCloser, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("stat resource %s: %w", name, err), f.Close())
	}

	if !info.Mode().IsRegular() {
		return nil, errors.Join(fmt.Errorf("%s: %w", name, ErrNotRegular), f.Close())
	}

	return f, nil
}
