package deployer

import (
	"context"
	"os"
	"path/filepath"
	"slices"

	"github.com/oshokin/libdeploy/internal/logger"
	"github.com/oshokin/libdeploy/internal/repository/marker"
)

// IsValid reports whether dir is a directory containing every required file
// and a marker named markerName whose first line parses as expectedVersion.
//
// It has no side effects and never fails: any I/O error makes the directory
// invalid, so it is safe to call on every startup.
func IsValid(ctx context.Context, dir string, requiredFiles []string, markerName string, expectedVersion int) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logger.InfoKV(ctx, "Library directory is not deployed yet", "path", dir)
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.WarnKV(ctx, "Unable to list library directory", "path", dir, "error", err)
		return false
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	slices.Sort(names)

	for _, required := range requiredFiles {
		if _, found := slices.BinarySearch(names, required); !found {
			logger.WarnKV(ctx, "Required library is missing", "file", required)
			return false
		}
	}

	version, err := marker.NewFileRepository(filepath.Join(dir, markerName)).Load(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Unable to read version marker", "error", err)
		return false
	}

	logger.InfoKV(ctx, "Checked library bundle version", "expected", expectedVersion, "current", version)

	return version == expectedVersion
}
