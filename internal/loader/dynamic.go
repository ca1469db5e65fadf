//go:build (darwin || freebsd || linux) && !android

package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ebitengine/purego"
)

// DynamicLoader opens libraries with dlopen and keeps their handles until Close.
type DynamicLoader struct {
	mu      sync.Mutex
	handles map[string]uintptr
	order   []string
	closed  bool
}

// NewDynamicLoader returns an empty loader.
func NewDynamicLoader() *DynamicLoader {
	return &DynamicLoader{
		handles: make(map[string]uintptr),
	}
}

// Load opens the library at path. Loading the same path twice is a no-op.
func (l *DynamicLoader) Load(path string) error {
	path = filepath.Clean(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	if _, ok := l.handles[path]; ok {
		return nil
	}

	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrLoad, path, err)
	}

	l.handles[path] = handle
	l.order = append(l.order, path)

	return nil
}

// Loaded returns the paths opened so far, in load order.
func (l *DynamicLoader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.order...)
}

// Close releases every handle in reverse load order.
func (l *DynamicLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true

	var errs []error

	for i := len(l.order) - 1; i >= 0; i-- {
		path := l.order[i]
		if err := purego.Dlclose(l.handles[path]); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}

	l.handles = nil
	l.order = nil

	return errors.Join(errs...)
}
