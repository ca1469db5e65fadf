package pack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oshokin/libdeploy/internal/archive"
	"github.com/oshokin/libdeploy/internal/config"
	"github.com/oshokin/libdeploy/internal/deployer"
	"github.com/oshokin/libdeploy/internal/logger"
)

// Options contains inputs for the pack entry point.
type Options struct {
	// ConfigPath is an optional path to the settings YAML file.
	ConfigPath string
	// SourceDir holds the libraries of one platform variant.
	SourceDir string
	// Output is the archive path; its extension selects the compression.
	// Empty means the archive path from the settings.
	Output string
	// Variant overrides the variant from the settings.
	Variant string
}

// errMissingRequiredFile is returned when the source lacks a library the deployer checks for.
var errMissingRequiredFile = errors.New("required library is missing from source directory")

// packager builds and verifies one archive.
type packager struct {
	cfg     *config.Config
	source  string
	output  string
	variant string
}

// Run packs the source directory and verifies the result.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "libdeploy-pack")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	p := &packager{
		cfg:     cfg,
		source:  filepath.Clean(opts.SourceDir),
		output:  firstNonEmpty(opts.Output, cfg.Archive),
		variant: firstNonEmpty(opts.Variant, cfg.Variant),
	}

	if err = p.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// Run checks the source, writes the archive and extracts it once as a test.
func (p *packager) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Checking source directory", "path", p.source)

	if err := p.checkSource(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Writing bundle archive", "path", p.output, "variant", p.variant)

	files, err := archive.PackFile(p.source, p.output, p.variant)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Verifying bundle archive", "files", files)

	if err = p.verify(ctx); err != nil {
		return err
	}

	p.printNextSteps(ctx, files)

	return nil
}

// checkSource makes sure every required library is present before packing.
func (p *packager) checkSource() error {
	for _, name := range p.cfg.RequiredFiles {
		info, err := os.Stat(filepath.Join(p.source, name))
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", errMissingRequiredFile, name)
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}

		if !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s is not a regular file", errMissingRequiredFile, name)
		}
	}

	return nil
}

// verify extracts the new archive into a scratch directory with the same
// limits the deployer uses and runs the deployer's validity check on it.
func (p *packager) verify(ctx context.Context) error {
	scratch, err := os.MkdirTemp("", "libdeploy-verify-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	defer func() {
		if removeErr := os.RemoveAll(scratch); removeErr != nil {
			logger.WarnKV(ctx, "Unable to delete scratch directory", "path", scratch, "error", removeErr)
		}
	}()

	decoder := archive.NewTarDecoder(
		archive.WithMaxFileSize(p.cfg.MaxFileSize),
		archive.WithMaxTotalSize(p.cfg.MaxTotalSize),
	)
	if err = decoder.Decode(p.output, scratch, p.variant); err != nil {
		return fmt.Errorf("verify archive: %w", err)
	}

	markerPath := filepath.Join(scratch, p.cfg.MarkerName)
	if err = os.WriteFile(markerPath, []byte(strconv.Itoa(p.cfg.BundleVersion)), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write scratch marker: %w", err)
	}

	verifyCtx := logger.WithKV(ctx, "scratch", scratch)
	if !deployer.IsValid(verifyCtx, scratch, p.cfg.RequiredFiles, p.cfg.MarkerName, p.cfg.BundleVersion) {
		return fmt.Errorf("verify archive: %w", errMissingRequiredFile)
	}

	return nil
}

// printNextSteps logs human-readable guidance for shipping the archive.
func (p *packager) printNextSteps(ctx context.Context, files int) {
	var builder strings.Builder

	builder.WriteString("The bundle archive ")
	builder.WriteString(p.output)
	builder.WriteString(" holds ")
	builder.WriteString(strconv.Itoa(files))
	builder.WriteString(" files for the \"")
	builder.WriteString(p.variant)
	builder.WriteString("\" variant.\n")
	builder.WriteString("Ship it next to the application as ")
	builder.WriteString(p.cfg.Archive)
	builder.WriteString(".\nIf the libraries changed, raise bundle_version above ")
	builder.WriteString(strconv.Itoa(p.cfg.BundleVersion))
	builder.WriteString(" so installed copies are replaced on the next start.")

	logger.Info(ctx, builder.String())
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}

	return ""
}
