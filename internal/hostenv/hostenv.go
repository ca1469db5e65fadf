// Package hostenv resolves where the application may write its libraries.
package hostenv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Environment supplies the application-private writable root directory.
type Environment interface {
	PrivateRoot() (string, error)
}

// ErrNoRoot is returned when an environment cannot name a root.
var ErrNoRoot = errors.New("application private root is not set")

// Static is an Environment with a fixed root.
type Static struct {
	Root string
}

// PrivateRoot returns the configured root.
func (s Static) PrivateRoot() (string, error) {
	if strings.TrimSpace(s.Root) == "" {
		return "", ErrNoRoot
	}

	return s.Root, nil
}

// UserData places the root in the per-user configuration directory.
type UserData struct {
	AppName string

	// userConfigDir is os.UserConfigDir unless replaced in tests.
	userConfigDir func() (string, error)
}

// PrivateRoot returns <user config dir>/<AppName>. When the user directory is
// unknown it falls back to /data/data/<AppName>/, the conventional private
// data directory of a packaged application.
func (u UserData) PrivateRoot() (string, error) {
	if strings.TrimSpace(u.AppName) == "" {
		return "", ErrNoRoot
	}

	lookup := u.userConfigDir
	if lookup == nil {
		lookup = os.UserConfigDir
	}

	base, err := lookup()
	if err != nil || base == "" {
		return "/data/data/" + u.AppName + "/", nil //nolint:nilerr // Fallback root.
	}

	return filepath.Join(base, u.AppName), nil
}

// ResolveTargetDir joins the private root and subpath, each normalized to a
// single trailing separator. An empty root resolves to the filesystem root.
// It performs no I/O.
func ResolveTargetDir(root, subpath string) string {
	const sep = string(filepath.Separator)

	dir := strings.TrimRight(strings.TrimSpace(root), `/\`) + sep

	subpath = strings.Trim(strings.TrimSpace(subpath), `/\`)
	if subpath == "" {
		return dir
	}

	return dir + subpath + sep
}
