package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/libdeploy/internal/archive"
	"github.com/oshokin/libdeploy/internal/config"
	"github.com/oshokin/libdeploy/internal/domain/bundle"
)

var errLoaderRefused = errors.New("loader refused")

// recordingLoader remembers every path it was asked to load.
type recordingLoader struct {
	loaded []string
	fail   error
	closed bool
}

func (l *recordingLoader) Load(path string) error {
	if l.fail != nil {
		return l.fail
	}

	l.loaded = append(l.loaded, path)

	return nil
}

func (l *recordingLoader) Close() error {
	l.closed = true
	return nil
}

// setup packs a bundle and writes settings pointing at it.
func setup(t *testing.T) (configPath, dataDir string, cfg *config.Config) {
	t.Helper()

	base := t.TempDir()
	src := filepath.Join(base, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))

	for _, name := range []string{"libijkffmpeg.so", "libijkplayer.so", "libijksdl.so"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(name), 0o644))
	}

	archivePath := filepath.Join(base, "vsvlibs.tar.zst")
	_, err := archive.PackFile(src, archivePath, "arm")
	require.NoError(t, err)

	dataDir = filepath.Join(base, "data")
	cfg = &config.Config{
		DataDir:         dataDir,
		Archive:         archivePath,
		MetricsTextfile: filepath.Join(base, "libdeploy.prom"),
	}

	configPath = filepath.Join(base, config.DefaultConfigFilename)
	require.NoError(t, config.Save(configPath, cfg))

	return configPath, dataDir, cfg
}

func TestRunDeploysAndLoads(t *testing.T) {
	t.Parallel()

	configPath, dataDir, cfg := setup(t)
	ctx := context.Background()
	l := new(recordingLoader)

	opts := &Options{
		ConfigPath:        configPath,
		Libraries:         []string{"ijkffmpeg", "libijksdl.so"},
		Loader:            l,
		SkipInstanceCheck: true,
	}
	require.NoError(t, Run(ctx, opts))

	target := filepath.Join(dataDir, "vsvlibs")
	require.Equal(t, []string{
		filepath.Join(target, "libijkffmpeg.so"),
		filepath.Join(target, "libijksdl.so"),
	}, l.loaded)
	require.True(t, l.closed)

	marker, err := os.ReadFile(filepath.Join(target, config.DefaultMarkerName))
	require.NoError(t, err)
	require.Equal(t, "1", string(marker))
	require.NoFileExists(t, filepath.Join(target, config.DefaultStagedName))

	metricsText, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	require.Contains(t, string(metricsText), `libdeploy_deploys_total{state="committed"} 1`)

	state, err := Check(ctx, &Options{ConfigPath: configPath})
	require.NoError(t, err)
	require.Equal(t, bundle.StateValid, state)

	path, err := Path(ctx, &Options{ConfigPath: configPath})
	require.NoError(t, err)
	require.Equal(t, target+string(filepath.Separator), path)
}

func TestRunReportsMissingArchive(t *testing.T) {
	t.Parallel()

	configPath, _, cfg := setup(t)
	require.NoError(t, os.Remove(cfg.Archive))

	err := Run(context.Background(), &Options{ConfigPath: configPath, SkipInstanceCheck: true})
	require.ErrorIs(t, err, ErrNotDeployed)

	state, err := Check(context.Background(), &Options{ConfigPath: configPath})
	require.NoError(t, err)
	require.Equal(t, bundle.StateInvalid, state)
}

func TestRunLoaderFailure(t *testing.T) {
	t.Parallel()

	configPath, _, _ := setup(t)
	l := &recordingLoader{fail: errLoaderRefused}

	err := Run(context.Background(), &Options{
		ConfigPath:        configPath,
		Libraries:         []string{"ijkplayer"},
		Loader:            l,
		SkipInstanceCheck: true,
	})
	require.ErrorIs(t, err, errLoaderRefused)
	require.True(t, l.closed)
}

func TestRunRejectsBadSettings(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("bundle_version: -3\n"), 0o600))

	_, err := Check(context.Background(), &Options{ConfigPath: configPath})
	require.Error(t, err)
}

func TestFindOtherProcess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	require.False(t, findOtherProcess(ctx, "no-such-libdeploy-process", os.Getpid()))
	require.False(t, isAnotherInstanceRunning(ctx))
}
