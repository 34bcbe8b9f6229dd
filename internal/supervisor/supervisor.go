// Package supervisor manages worker processes as independent OS processes:
// it self-execs the queuectl binary with "worker run" for each one, tracks
// their PIDs in an advisory sidecar file, and escalates from a graceful
// stop signal to a hard kill when a worker doesn't exit in time.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/maumercado/queuectl/internal/logger"
)

// ShutdownTimeout is how long Stop waits for a worker to exit gracefully
// before sending SIGKILL.
const ShutdownTimeout = 10 * time.Second

const sidecarName = "workers.pid"

// managedWorker tracks one spawned worker process.
type managedWorker struct {
	ID      string
	PID     int
	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
}

// Supervisor starts, tracks, and stops worker processes. The PID sidecar
// and per-worker log files live next to the Store's database file; the
// Store's workers table remains the authoritative record of who's
// running, the sidecar only lets "worker stop" find OS processes to
// signal from a separate CLI invocation.
type Supervisor struct {
	dbPath  string
	mu      sync.Mutex
	workers map[string]*managedWorker
}

// New creates a Supervisor for the database at dbPath.
func New(dbPath string) *Supervisor {
	return &Supervisor{
		dbPath:  dbPath,
		workers: make(map[string]*managedWorker),
	}
}

func (s *Supervisor) dir() string {
	return filepath.Dir(s.dbPath)
}

func (s *Supervisor) sidecarPath() string {
	return filepath.Join(s.dir(), sidecarName)
}

// Start spawns count new worker processes, each self-exec'd as
// "<binary> worker run --id <id> --db <path>", and returns their ids.
func (s *Supervisor) Start(count int) ([]string, error) {
	bin, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	var ids []string
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("worker-%d-%d", time.Now().UnixNano(), i)

		cmd := exec.Command(bin, "worker", "run", "--id", id, "--db", s.dbPath)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		// Output must be wired before Start; the file is renamed to
		// worker-<pid>.log once the PID is known.
		logFile, err := os.CreateTemp(s.dir(), "worker-*.log")
		if err != nil {
			return ids, fmt.Errorf("open worker log: %w", err)
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile

		if err := cmd.Start(); err != nil {
			logFile.Close()
			os.Remove(logFile.Name())
			return ids, fmt.Errorf("spawn worker %s: %w", id, err)
		}

		logPath := filepath.Join(s.dir(), fmt.Sprintf("worker-%d.log", cmd.Process.Pid))
		if err := os.Rename(logFile.Name(), logPath); err != nil {
			logger.Warn().Err(err).Str("log", logFile.Name()).Msg("failed to rename worker log")
		}

		mw := &managedWorker{ID: id, PID: cmd.Process.Pid, cmd: cmd, logFile: logFile, done: make(chan struct{})}
		s.workers[id] = mw
		ids = append(ids, id)

		go func(mw *managedWorker) {
			mw.cmd.Wait()
			close(mw.done)
		}(mw)

		logger.Info().Str("worker_id", id).Int("pid", mw.PID).Msg("spawned worker process")
	}

	if err := s.writeSidecar(); err != nil {
		return ids, fmt.Errorf("write worker sidecar: %w", err)
	}

	return ids, nil
}

// Stop signals every tracked worker to terminate (SIGTERM), waits up to
// ShutdownTimeout, and SIGKILLs any that are still alive. It deletes the
// sidecar file once every worker it spawned has exited.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	workers := make([]*managedWorker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	for _, w := range workers {
		if err := w.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Warn().Str("worker_id", w.ID).Err(err).Msg("failed to send SIGTERM")
		}
	}

	deadline := time.After(ShutdownTimeout)
	for _, w := range workers {
		select {
		case <-w.done:
		case <-deadline:
			logger.Warn().Str("worker_id", w.ID).Msg("worker did not exit in time, sending SIGKILL")
			w.cmd.Process.Kill()
			<-w.done
		case <-ctx.Done():
			w.cmd.Process.Kill()
		}
		w.logFile.Close()
	}

	s.mu.Lock()
	s.workers = make(map[string]*managedWorker)
	s.mu.Unlock()

	return os.Remove(s.sidecarPath())
}

// StopPIDs sends SIGTERM then, after ShutdownTimeout, SIGKILL to each of
// the given PIDs. Used by a "worker stop" invocation that didn't spawn
// the workers itself and so only has the sidecar's PID list to go on.
func StopPIDs(ctx context.Context, pids []int) {
	for _, pid := range pids {
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		proc.Signal(syscall.SIGTERM)
	}

	deadline := time.Now().Add(ShutdownTimeout)

	for _, pid := range pids {
		for IsAlive(pid) {
			if time.Now().After(deadline) {
				if proc, err := os.FindProcess(pid); err == nil {
					proc.Kill()
				}
			}
			select {
			case <-ctx.Done():
				if proc, err := os.FindProcess(pid); err == nil {
					proc.Kill()
				}
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

func (s *Supervisor) writeSidecar() error {
	var b strings.Builder
	for _, w := range s.workers {
		fmt.Fprintf(&b, "%d\n", w.PID)
	}
	return os.WriteFile(s.sidecarPath(), []byte(b.String()), 0o644)
}

// ReadSidecar loads the last-written PID list for the database at
// dbPath, for CLI commands (like "worker stop") run in a process that
// didn't spawn the workers itself. Returns nil, nil if no sidecar
// exists.
func ReadSidecar(dbPath string) ([]int, error) {
	path := filepath.Join(filepath.Dir(dbPath), sidecarName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pids []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("parse worker sidecar: %w", err)
		}
		pids = append(pids, pid)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read worker sidecar: %w", err)
	}
	return pids, nil
}

// IsAlive reports whether a process with the given PID is still running.
func IsAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
