package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/nursery-speaker/internal/logger"
)

const (
	// restartEnv carries the PID of the process that started a restart.
	restartEnv = "NURSERY_SPEAKER_RESTARTED_FROM"

	// parentExitTimeout bounds the wait for the restarting parent.
	parentExitTimeout = 10 * time.Second

	// parentPollInterval is the cadence of the parent exit check.
	parentPollInterval = 100 * time.Millisecond

	// commLength is the Linux limit on process names reported by /proc.
	commLength = 15
)

var (
	// ErrAlreadyRunning is returned when another speaker owns the device.
	ErrAlreadyRunning = errors.New("another instance is already running")
	// errParentStillRunning is returned when the restarting parent does not exit in time.
	errParentStillRunning = errors.New("restarting process did not exit")
)

// finder looks up processes; ps.Processes and ps.FindProcess in production.
type finder struct {
	processes func() ([]ps.Process, error)
	find      func(pid int) (ps.Process, error)
}

//nolint:gochecknoglobals // Replaced only by tests in this package.
var system = finder{
	processes: ps.Processes,
	find:      ps.FindProcess,
}

// EnsureSingleInstance fails when another process with the same executable
// name is alive. After a restart it first waits for the previous process to exit.
func EnsureSingleInstance(ctx context.Context) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	if parent := restartedFrom(); parent > 0 {
		logger.InfoKV(ctx, "Waiting for previous instance to exit", "pid", parent)

		if err = waitForExit(ctx, system, parent, parentExitTimeout); err != nil {
			return err
		}
	}

	return ensureSingleInstance(system, os.Getpid(), filepath.Base(executable))
}

// ensureSingleInstance scans the process list for another instance of name.
func ensureSingleInstance(f finder, self int, name string) error {
	processList, err := f.processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == self {
			continue
		}

		if !sameExecutable(process.Executable(), name) {
			continue
		}

		return fmt.Errorf("pid %d: %w", process.Pid(), ErrAlreadyRunning)
	}

	return nil
}

// waitForExit polls until pid is gone or timeout elapses.
func waitForExit(ctx context.Context, f finder, pid int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(parentPollInterval)
	defer ticker.Stop()

	for {
		process, err := f.find(pid)
		if err != nil {
			return fmt.Errorf("find process %d: %w", pid, err)
		}

		if process == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("pid %d: %w", pid, errParentStillRunning)
		case <-ticker.C:
		}
	}
}

// Restart starts a fresh copy of the current executable with the same
// arguments. The caller is expected to exit right after.
func Restart(ctx context.Context) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	cmd := restartCommand(executable, os.Args[1:], os.Getpid())

	logger.InfoKV(ctx, "Starting executable", "executable", executable, "args", strings.Join(cmd.Args[1:], " "))

	// Not bound to ctx: it is already canceled during shutdown and would kill the child.
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", executable, err)
	}

	// The child is not waited for, it outlives this process.
	return cmd.Process.Release()
}

// restartCommand builds the command starting the replacement process.
func restartCommand(executable string, args []string, self int) *exec.Cmd {
	//nolint:gosec // Re-executing our own binary with our own arguments.
	cmd := exec.Command(executable, args...)
	cmd.Env = append(os.Environ(), restartEnv+"="+strconv.Itoa(self))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd
}

// restartedFrom returns the PID of the process that restarted us, or zero.
func restartedFrom() int {
	pid, err := strconv.Atoi(os.Getenv(restartEnv))
	if err != nil || pid <= 0 {
		return 0
	}

	return pid
}

// sameExecutable compares a reported process name with ours. Linux truncates
// the reported name to 15 bytes; Windows reports it with the extension.
func sameExecutable(reported, name string) bool {
	if runtime.GOOS == "windows" {
		reported = strings.TrimSuffix(strings.ToLower(reported), ".exe")
		name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	}

	if reported == name {
		return true
	}

	return len(reported) == commLength && strings.HasPrefix(name, reported)
}
