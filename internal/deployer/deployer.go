package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/libdeploy/internal/domain/bundle"
	"github.com/oshokin/libdeploy/internal/logger"
	"github.com/oshokin/libdeploy/internal/repository/marker"
	"github.com/oshokin/libdeploy/internal/resource"
)

const (
	// DefaultMarkerName is the version marker file inside the target directory.
	DefaultMarkerName = ".lock"

	// DefaultStagedName is the staged archive file inside the target directory.
	DefaultStagedName = "bundle.staged"

	// DefaultBufferSize is the chunk size of the staging copy.
	DefaultBufferSize = 1024

	dirMode    os.FileMode = 0o755
	stagedMode os.FileMode = 0o600
)

var (
	// ErrStaging means the packaged archive could not be copied into the target directory.
	ErrStaging = errors.New("staging failed")
	// ErrExtraction means the decoder reported a failure.
	ErrExtraction = errors.New("extraction failed")
	// ErrMarkerWrite means files were extracted but the version marker could not be written.
	ErrMarkerWrite = errors.New("version marker write failed")

	errNoTargetDir = errors.New("target directory must be set")
	errNoManifest  = errors.New("manifest must be set")
	errNoResource  = errors.New("packaged resource must be set")
	errNoDecoder   = errors.New("decoder must be set")
	errBadName     = errors.New("marker and staged names must be distinct plain file names")
)

// Decoder unpacks a staged archive into destDir.
// The archive format is opaque to the deployer.
type Decoder interface {
	Decode(archivePath, destDir, variant string) error
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(archivePath, destDir, variant string) error

// Decode calls f.
func (f DecoderFunc) Decode(archivePath, destDir, variant string) error {
	return f(archivePath, destDir, variant)
}

// Observer receives the outcome of checks and deployments.
type Observer interface {
	ObserveCheck(state bundle.State)
	ObserveDeploy(state bundle.State, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveCheck(bundle.State)                  {}
func (noopObserver) ObserveDeploy(bundle.State, time.Duration) {}

// Options configure a Deployer.
type Options struct {
	// TargetDir is the application-private directory that receives the libraries.
	TargetDir string
	// Manifest describes the expected bundle.
	Manifest *bundle.Manifest
	// Resource is the packaged archive.
	Resource resource.Resource
	// Decoder unpacks the staged archive.
	Decoder Decoder
	// MarkerName defaults to DefaultMarkerName.
	MarkerName string
	// StagedName defaults to DefaultStagedName.
	StagedName string
	// BufferSize defaults to DefaultBufferSize.
	BufferSize int
	// Observer is optional.
	Observer Observer
}

// Deployer keeps a library bundle extracted and version-current in a directory.
//
// Calls must be serialized by the caller: the version marker records that a
// commit happened, it does not lock the directory against a second deployer.
type Deployer struct {
	dir        string
	manifest   *bundle.Manifest
	resource   resource.Resource
	decoder    Decoder
	markerName string
	stagedName string
	bufferSize int
	marker     *marker.FileRepository
	observer   Observer
}

// New validates opts and returns a Deployer.
func New(opts *Options) (*Deployer, error) {
	if opts == nil || strings.TrimSpace(opts.TargetDir) == "" {
		return nil, errNoTargetDir
	}

	if opts.Manifest == nil {
		return nil, errNoManifest
	}

	if err := opts.Manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	if opts.Resource == nil {
		return nil, errNoResource
	}

	if opts.Decoder == nil {
		return nil, errNoDecoder
	}

	d := &Deployer{
		dir:        filepath.Clean(opts.TargetDir),
		manifest:   opts.Manifest.Clone(),
		resource:   opts.Resource,
		decoder:    opts.Decoder,
		markerName: valueOr(opts.MarkerName, DefaultMarkerName),
		stagedName: valueOr(opts.StagedName, DefaultStagedName),
		bufferSize: opts.BufferSize,
		observer:   opts.Observer,
	}

	if d.bufferSize <= 0 {
		d.bufferSize = DefaultBufferSize
	}

	if d.observer == nil {
		d.observer = noopObserver{}
	}

	if !isPlainName(d.markerName) || !isPlainName(d.stagedName) || d.markerName == d.stagedName {
		return nil, fmt.Errorf("%w: %q, %q", errBadName, d.markerName, d.stagedName)
	}

	d.marker = marker.NewFileRepository(filepath.Join(d.dir, d.markerName))

	return d, nil
}

// LibPath returns the library directory with a trailing separator, ready for
// a loader to append library file names.
func (d *Deployer) LibPath() string {
	return d.dir + string(filepath.Separator)
}

// LibraryPath returns the full path of one library file.
func (d *Deployer) LibraryPath(fileName string) string {
	return filepath.Join(d.dir, fileName)
}

// Manifest returns a copy of the expected bundle description.
func (d *Deployer) Manifest() *bundle.Manifest {
	return d.manifest.Clone()
}

// EnsureDeployed makes sure the bundle is extracted and current.
// A valid directory is left untouched. Failures are logged and reported as
// false; nothing is returned to the caller beyond that.
func (d *Deployer) EnsureDeployed(ctx context.Context) bool {
	ctx = logger.WithKV(ctx, "target", d.dir)

	if d.Check(ctx) == bundle.StateValid {
		logger.Debug(ctx, "Native library bundle is up to date")
		return true
	}

	if err := d.Deploy(ctx); err != nil {
		logger.ErrorKV(ctx, "Native library deployment failed", "error", err)
		return false
	}

	return true
}

// Check classifies the target directory as valid or invalid.
func (d *Deployer) Check(ctx context.Context) bundle.State {
	state := bundle.StateInvalid
	if d.IsValid(ctx) {
		state = bundle.StateValid
	}

	d.observer.ObserveCheck(state)

	return state
}

// IsValid reports whether the target directory holds every required file and
// a marker for the expected version.
func (d *Deployer) IsValid(ctx context.Context) bool {
	return IsValid(ctx, d.dir, d.manifest.RequiredFiles, d.markerName, d.manifest.Version)
}

// Deploy wipes the target directory and extracts the bundle into it.
// The returned error wraps ErrStaging, ErrExtraction or ErrMarkerWrite.
// On failure the directory is left as is; the next check sees it as invalid.
func (d *Deployer) Deploy(ctx context.Context) (err error) {
	started := time.Now()

	logger.InfoKV(ctx, "Deploying native library bundle",
		"version", d.manifest.Version, "variant", d.manifest.Variant, "resource", d.resource.Name())

	defer func() {
		state := bundle.StateCommitted
		if err != nil {
			state = bundle.StateFailed
		}

		elapsed := time.Since(started)
		d.observer.ObserveDeploy(state, elapsed)
		logger.InfoKV(ctx, "Deployment finished", "state", state, "elapsed", elapsed)
	}()

	if removeErr := d.marker.Remove(ctx); removeErr != nil {
		logger.WarnKV(ctx, "Unable to delete stale version marker", "error", removeErr)
	}

	removeTree(ctx, d.dir)

	if mkdirErr := os.MkdirAll(d.dir, dirMode); mkdirErr != nil {
		logger.WarnKV(ctx, "Unable to recreate library directory", "error", mkdirErr)
	}

	staged, err := d.stage(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Archive staged", "path", staged, "elapsed", time.Since(started))

	if err = d.extract(ctx, staged); err != nil {
		return err
	}

	return d.commit(ctx)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

func isPlainName(name string) bool {
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
