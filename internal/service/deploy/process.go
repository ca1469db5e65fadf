package deploy

import (
	"context"
	"os"
	"runtime"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/libdeploy/internal/logger"
)

// baseExecutable is the process name of the CLI.
const baseExecutable = "libdeploy"

// isAnotherInstanceRunning reports whether a second libdeploy process exists.
// Deployments into the same directory are not safe to run side by side.
func isAnotherInstanceRunning(ctx context.Context) bool {
	return findOtherProcess(ctx, executableName(), os.Getpid())
}

func findOtherProcess(ctx context.Context, name string, self int) bool {
	processList, err := ps.Processes()
	if err != nil {
		logger.WarnKV(ctx, "Unable to list processes, skipping instance check", "error", err)
		return false
	}

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if process.Executable() == name {
			logger.WarnKV(ctx, "Found a running libdeploy process", "pid", process.Pid())
			return true
		}
	}

	return false
}

// executableName returns the CLI process name on this platform.
func executableName() string {
	if runtime.GOOS == "windows" {
		return baseExecutable + ".exe"
	}

	return baseExecutable
}
