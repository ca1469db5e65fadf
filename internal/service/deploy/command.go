package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/libdeploy/internal/archive"
	"github.com/oshokin/libdeploy/internal/config"
	"github.com/oshokin/libdeploy/internal/deployer"
	"github.com/oshokin/libdeploy/internal/domain/bundle"
	"github.com/oshokin/libdeploy/internal/hostenv"
	"github.com/oshokin/libdeploy/internal/loader"
	"github.com/oshokin/libdeploy/internal/logger"
	"github.com/oshokin/libdeploy/internal/metrics"
	"github.com/oshokin/libdeploy/internal/resource"
)

var (
	// ErrNotDeployed is returned when the bundle could not be made valid.
	ErrNotDeployed = errors.New("native library bundle is not deployed")

	errDeployerAlreadyRunning = errors.New("another libdeploy process is running")
)

// Options are inputs accepted by the deploy entry points.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Libraries are loaded, in order, after a successful deployment.
	// Bare names such as "ijkffmpeg" are mapped to platform file names.
	Libraries []string
	// Environment overrides the private root derived from the settings.
	Environment hostenv.Environment
	// Loader overrides the dynamic loader.
	Loader loader.Loader
	// SkipInstanceCheck disables the running-process guard.
	SkipInstanceCheck bool
}

// runner holds everything a single invocation needs.
type runner struct {
	cfg      *config.Config
	deployer *deployer.Deployer
	metrics  *metrics.DeployMetrics
}

// Run ensures the bundle is deployed and loads the requested libraries.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "libdeploy-deploy")

	if !opts.SkipInstanceCheck && isAnotherInstanceRunning(ctx) {
		return errDeployerAlreadyRunning
	}

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer r.writeMetrics(ctx)

	if !r.deployer.EnsureDeployed(ctx) {
		return fmt.Errorf("%w: %s", ErrNotDeployed, r.deployer.LibPath())
	}

	logger.InfoKV(ctx, "Native library bundle is ready",
		"path", r.deployer.LibPath(), "version", r.cfg.BundleVersion)

	if len(opts.Libraries) == 0 {
		return nil
	}

	l := opts.Loader
	if l == nil {
		l = loader.NewDynamicLoader()
	}

	if err = r.loadLibraries(ctx, l, opts.Libraries); err != nil {
		return errors.Join(err, l.Close())
	}

	return l.Close()
}

// Check reports the state of the library directory without changing it.
func Check(ctx context.Context, opts *Options) (bundle.State, error) {
	ctx = logger.WithName(ctx, "libdeploy-check")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return bundle.StateUnknown, err
	}

	defer r.writeMetrics(ctx)

	return r.deployer.Check(ctx), nil
}

// Path returns the resolved library directory with a trailing separator.
func Path(ctx context.Context, opts *Options) (string, error) {
	ctx = logger.WithName(ctx, "libdeploy-path")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return "", err
	}

	return r.deployer.LibPath(), nil
}

// newRunner loads settings and builds the deployer with its collaborators.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigFilename
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	env := opts.Environment
	if env == nil {
		env = environmentFor(cfg)
	}

	root, err := env.PrivateRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve private root: %w", err)
	}

	target := hostenv.ResolveTargetDir(root, cfg.Subpath)

	logger.DebugKV(ctx, "Resolved library directory", "root", root, "target", target, "settings", configPath)

	m := metrics.New()
	m.SetExpectedVersion(cfg.BundleVersion)

	d, err := deployer.New(&deployer.Options{
		TargetDir: target,
		Manifest: &bundle.Manifest{
			Version:       cfg.BundleVersion,
			RequiredFiles: cfg.RequiredFiles,
			Variant:       cfg.Variant,
		},
		Resource: resource.FromFile(cfg.Archive),
		Decoder: archive.NewTarDecoder(
			archive.WithMaxFileSize(cfg.MaxFileSize),
			archive.WithMaxTotalSize(cfg.MaxTotalSize),
		),
		MarkerName: cfg.MarkerName,
		StagedName: cfg.StagedName,
		BufferSize: cfg.BufferSize,
		Observer:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize deployer: %w", err)
	}

	return &runner{
		cfg:      cfg,
		deployer: d,
		metrics:  m,
	}, nil
}

// environmentFor picks the private root source from the settings.
func environmentFor(cfg *config.Config) hostenv.Environment {
	if cfg.DataDir != "" {
		return hostenv.Static{Root: cfg.DataDir}
	}

	return hostenv.UserData{AppName: cfg.AppName}
}

// loadLibraries opens the named libraries from the deployed directory.
func (r *runner) loadLibraries(ctx context.Context, l loader.Loader, names []string) error {
	for _, name := range names {
		path := r.deployer.LibraryPath(loader.MapLibraryName(name))

		if err := l.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}

		logger.InfoKV(ctx, "Loaded native library", "path", path)
	}

	return nil
}

// writeMetrics exports the run's metrics when a textfile is configured.
func (r *runner) writeMetrics(ctx context.Context) {
	if r.cfg.MetricsTextfile == "" {
		return
	}

	if err := r.metrics.WriteTextfile(r.cfg.MetricsTextfile); err != nil {
		logger.WarnKV(ctx, "Unable to write metrics textfile", "path", r.cfg.MetricsTextfile, "error", err)
		return
	}

	logger.DebugKV(ctx, "Metrics textfile written", "path", r.cfg.MetricsTextfile)
}
