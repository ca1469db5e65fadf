package loader

import (
	"errors"
	"runtime"
	"strings"
)

var (
	// ErrUnsupportedPlatform is returned where dynamic loading is not available.
	ErrUnsupportedPlatform = errors.New("dynamic loading is not supported on " + runtime.GOOS)
	// ErrLoad wraps a failure reported by the dynamic linker.
	ErrLoad = errors.New("unable to load library")
	// ErrClosed is returned by Load after Close.
	ErrClosed = errors.New("loader is closed")
)

// Loader makes a shared library available to the running process.
type Loader interface {
	Load(path string) error
	Close() error
}

// MapLibraryName turns a bare library name into the platform file name,
// e.g. "ijkffmpeg" into "libijkffmpeg.so" on Linux.
// Names that already carry a platform suffix are returned as is.
func MapLibraryName(name string) string {
	return mapLibraryName(runtime.GOOS, name)
}

func mapLibraryName(goos, name string) string {
	prefix, suffix := "lib", ".so"

	switch goos {
	case "darwin", "ios":
		suffix = ".dylib"
	case "windows":
		prefix, suffix = "", ".dll"
	}

	if strings.HasSuffix(name, suffix) || strings.Contains(name, suffix+".") {
		return name
	}

	if !strings.HasPrefix(name, prefix) {
		name = prefix + name
	}

	return name + suffix
}
