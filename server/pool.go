package server

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/redfin/dirpy/core"
)

// ListenerFDEnv, when present in a re-exec'd child's environment, marks it
// as a pool worker carrying the inherited listening socket on fd 3 (the
// sole entry of exec.Cmd.ExtraFiles, which Go always places starting at
// fd 3). cmd/dirpyd checks this to decide whether to run as the
// pre-forking parent or as a worker serving the inherited socket.
const ListenerFDEnv = "DIRPY_WORKER_FD"

// InheritedListenerFD is the fd number a worker finds its listening
// socket on (stdin/stdout/stderr occupy 0-2, ExtraFiles start at 3).
const InheritedListenerFD = 3

const (
	spawnRetries   = 3
	spawnBackoff   = time.Second
	watchdogPeriod = time.Second
)

// WorkerPool pre-forks numWorkers copies of the current binary, each
// inheriting the listening socket and re-exec'd with ListenerFDEnv set so
// it runs in worker mode (§4.7 "the parent process spawns num-workers
// children, each of which serves the listening socket in a blocking
// loop"). A watchdog restarts any child that exits, retrying up to 3
// times with 1s backoff before giving up fatally (§4.7).
type WorkerPool struct {
	lnFile     *os.File
	numWorkers int
	logger     core.Logger

	mu      sync.Mutex
	workers []*exec.Cmd
}

// NewWorkerPool returns a pool that will spawn numWorkers children, each
// inheriting lnFile as its listening socket.
func NewWorkerPool(lnFile *os.File, numWorkers int, logger core.Logger) *WorkerPool {
	return &WorkerPool{
		lnFile:     lnFile,
		numWorkers: numWorkers,
		logger:     logger,
		workers:    make([]*exec.Cmd, numWorkers),
	}
}

// Run spawns the pool and blocks, restarting crashed workers, until ctx
// is canceled — SIGINT in the parent terminates the group (§4.7) — or a
// worker exhausts its spawn retries, which is fatal.
func (p *WorkerPool) Run(ctx context.Context) error {
	exitc := make(chan int, p.numWorkers)
	for slot := 0; slot < p.numWorkers; slot++ {
		if err := p.spawn(slot, exitc); err != nil {
			p.terminateAll()
			return err
		}
	}

	retries := make([]int, p.numWorkers)
	ticker := time.NewTicker(watchdogPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.terminateAll()
			return nil

		case slot := <-exitc:
			select {
			case <-ctx.Done():
				p.terminateAll()
				return nil
			default:
			}
			retries[slot]++
			if retries[slot] > spawnRetries {
				p.terminateAll()
				return fmt.Errorf("server: worker slot %d crashed %d times, giving up", slot, retries[slot])
			}
			p.logger.Warn("worker.restart", "slot", slot, "attempt", retries[slot])
			time.Sleep(spawnBackoff)
			if err := p.spawn(slot, exitc); err != nil {
				p.terminateAll()
				return err
			}

		case <-ticker.C:
			// Once-per-second liveness cadence from §4.7; exits are
			// actually detected as soon as each child's Wait() returns
			// (see spawn below), this tick is the watchdog's heartbeat.
		}
	}
}

func (p *WorkerPool) spawn(slot int, exitc chan<- int) error {
	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), ListenerFDEnv+"=1")
	cmd.ExtraFiles = []*os.File{p.lnFile}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("server: spawn worker %d: %w", slot, err)
	}

	p.mu.Lock()
	p.workers[slot] = cmd
	p.mu.Unlock()
	p.logger.Info("worker.spawn", "slot", slot, "pid", cmd.Process.Pid)

	go func() {
		_ = cmd.Wait()
		p.logger.Warn("worker.exit", "slot", slot, "pid", cmd.Process.Pid)
		exitc <- slot
	}()
	return nil
}

// terminateAll signals every live child with SIGTERM (§4.7 "SIGINT in the
// parent terminates the group").
func (p *WorkerPool) terminateAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cmd := range p.workers {
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}
}
