package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the libdeploy commands.
type Config struct {
	// DataDir is the application-private root. Empty means the per-user
	// config directory of AppName.
	DataDir string `yaml:"data_dir"`
	// AppName names the application when DataDir is not set.
	AppName string `yaml:"app_name"`
	// Subpath is the directory below the private root that receives the libraries.
	Subpath string `yaml:"subpath"`
	// Archive is the path of the packaged bundle archive.
	Archive string `yaml:"archive"`
	// StagedName is the file name of the staged archive inside the target directory.
	StagedName string `yaml:"staged_name"`
	// MarkerName is the file name of the version marker inside the target directory.
	MarkerName string `yaml:"marker_name"`
	// BundleVersion must be raised whenever the archive contents change.
	BundleVersion int `yaml:"bundle_version"`
	// Variant selects the platform subtree of the archive.
	Variant string `yaml:"variant"`
	// RequiredFiles must all be present for a deployment to count as intact.
	RequiredFiles []string `yaml:"required_files"`
	// BufferSize is the chunk size used to stage the archive.
	BufferSize int `yaml:"buffer_size"`
	// MaxFileSize caps a single extracted file, in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxTotalSize caps the sum of extracted files, in bytes.
	MaxTotalSize int64 `yaml:"max_total_size"`
	// MetricsTextfile, when set, receives deployment metrics in Prometheus text format.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "libdeploy-settings.yaml"

	// DefaultAppName names the application directory when no data_dir is configured.
	DefaultAppName = "libdeploy"

	// DefaultSubpath is the library directory below the private root.
	DefaultSubpath = "vsvlibs/"

	// DefaultArchive is the packaged bundle looked up next to the binary.
	DefaultArchive = "vsvlibs.tar.zst"

	// DefaultStagedName is the staged copy of the archive inside the target directory.
	DefaultStagedName = "vsvlibs.tar.zst"

	// DefaultMarkerName is the version marker inside the target directory.
	DefaultMarkerName = ".lock"

	// DefaultBundleVersion is the version baked into this build.
	DefaultBundleVersion = 1

	// DefaultVariant is the platform subtree extracted from the archive.
	DefaultVariant = "arm"

	// DefaultBufferSize is the staging copy chunk size.
	DefaultBufferSize = 1024

	// DefaultMaxFileSize caps a single extracted library (256 MiB).
	DefaultMaxFileSize int64 = 256 << 20

	// DefaultMaxTotalSize caps the whole extraction (1 GiB).
	DefaultMaxTotalSize int64 = 1 << 30

	// DefaultFilePermissions is used for the settings file.
	DefaultFilePermissions = 0o600
)

// DefaultRequiredFiles returns the integrity checklist of the shipped bundle.
func DefaultRequiredFiles() []string {
	return []string{"libijkffmpeg.so", "libijkplayer.so", "libijksdl.so"}
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadBundleVersion is returned for a non-positive bundle version.
	errBadBundleVersion = errors.New("bundle version must be positive")
	// errBadFileName is returned when a configured file name is not a plain base name.
	errBadFileName = errors.New("file name must not contain path separators")
	// errSameFileName is returned when the marker and the staged archive collide.
	errSameFileName = errors.New("marker and staged archive names must differ")
	// errBadLimit is returned for negative sizes.
	errBadLimit = errors.New("sizes must not be negative")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg) //nolint:errcheck // Defaults always validate.

	return cfg
}

// Load reads configuration from path and validates it.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for unset fields and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	setDefaults(cfg)

	if cfg.BundleVersion <= 0 {
		return fmt.Errorf("%w: %d", errBadBundleVersion, cfg.BundleVersion)
	}

	if cfg.MaxFileSize < 0 || cfg.MaxTotalSize < 0 || cfg.BufferSize < 0 {
		return errBadLimit
	}

	names := append([]string{cfg.StagedName, cfg.MarkerName}, cfg.RequiredFiles...)
	for _, name := range names {
		if !isBaseName(name) {
			return fmt.Errorf("%w: %q", errBadFileName, name)
		}
	}

	if cfg.StagedName == cfg.MarkerName {
		return errSameFileName
	}

	return nil
}

func setDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}

	if cfg.Subpath == "" {
		cfg.Subpath = DefaultSubpath
	}

	if cfg.Archive == "" {
		cfg.Archive = DefaultArchive
	}

	if cfg.StagedName == "" {
		cfg.StagedName = DefaultStagedName
	}

	if cfg.MarkerName == "" {
		cfg.MarkerName = DefaultMarkerName
	}

	if cfg.BundleVersion == 0 {
		cfg.BundleVersion = DefaultBundleVersion
	}

	if cfg.Variant == "" {
		cfg.Variant = DefaultVariant
	}

	if len(cfg.RequiredFiles) == 0 {
		cfg.RequiredFiles = DefaultRequiredFiles()
	}

	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	if cfg.MaxTotalSize == 0 {
		cfg.MaxTotalSize = DefaultMaxTotalSize
	}
}

func isBaseName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
