//go:build !windows

package exec

import (
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// procGroup tracks running recipe subprocesses by process group so that an
// interrupt tears down whole pipelines, not just the immediate shell.
type procGroup struct {
	mu      sync.Mutex
	pgids   map[int]bool
	sigCh   chan os.Signal
	stopped chan struct{}
	got     os.Signal
}

func newProcGroup() *procGroup {
	pg := &procGroup{
		pgids:   make(map[int]bool),
		sigCh:   make(chan os.Signal, 1),
		stopped: make(chan struct{}),
	}
	signal.Notify(pg.sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	go pg.watch()
	return pg
}

func (pg *procGroup) watch() {
	select {
	case sig := <-pg.sigCh:
		pg.mu.Lock()
		pg.got = sig
		for pgid := range pg.pgids {
			unix.Kill(-pgid, unix.SIGTERM)
		}
		pg.mu.Unlock()
	case <-pg.stopped:
	}
}

func (pg *procGroup) close() {
	signal.Stop(pg.sigCh)
	close(pg.stopped)
}

// interrupted returns the received signal, if any.
func (pg *procGroup) interrupted() os.Signal {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	return pg.got
}

// setup puts the command into its own process group.
func (pg *procGroup) setup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (pg *procGroup) add(cmd *exec.Cmd) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	if cmd.Process != nil {
		pg.pgids[cmd.Process.Pid] = true
	}
}

func (pg *procGroup) remove(cmd *exec.Cmd) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	if cmd.Process != nil {
		delete(pg.pgids, cmd.Process.Pid)
	}
}

// exitStatus decodes the exit code of a finished command.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal())
			}
			return ws.ExitStatus()
		}
	}
	return 1
}
