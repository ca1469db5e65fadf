package bundle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidVersion is returned for a non-positive bundle version.
	ErrInvalidVersion = errors.New("bundle version must be positive")
	// ErrNoRequiredFiles is returned when the integrity checklist is empty.
	ErrNoRequiredFiles = errors.New("at least one required file must be listed")
	// ErrInvalidFileName is returned for required names that are not plain file names.
	ErrInvalidFileName = errors.New("required file must be a plain file name")
)

// Manifest describes the bundle a build expects to find on disk.
type Manifest struct {
	// Version is the bundle version baked into the running build.
	Version int
	// RequiredFiles lists the file names that must exist after extraction.
	// It is an integrity checklist, not the full archive listing.
	RequiredFiles []string
	// Variant is the platform tag handed to the archive decoder.
	Variant string
}

// Validate checks that the manifest can be used for deployment.
func (m *Manifest) Validate() error {
	if m.Version <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, m.Version)
	}

	if len(m.RequiredFiles) == 0 {
		return ErrNoRequiredFiles
	}

	for _, name := range m.RequiredFiles {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
		}
	}

	return nil
}

// Clone returns a copy that does not share the RequiredFiles slice.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}

	return &Manifest{
		Version:       m.Version,
		RequiredFiles: append([]string(nil), m.RequiredFiles...),
		Variant:       m.Variant,
	}
}
