//go:build !((darwin || freebsd || linux) && !android)

package loader

// DynamicLoader reports ErrUnsupportedPlatform on this platform.
type DynamicLoader struct{}

// NewDynamicLoader returns a loader that cannot load anything.
func NewDynamicLoader() *DynamicLoader {
	return &DynamicLoader{}
}

// Load always fails with ErrUnsupportedPlatform.
func (*DynamicLoader) Load(string) error {
	return ErrUnsupportedPlatform
}

// Loaded always returns nil.
func (*DynamicLoader) Loaded() []string {
	return nil
}

// Close does nothing.
func (*DynamicLoader) Close() error {
	return nil
}
