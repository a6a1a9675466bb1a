package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"time"
)

// Process is a wst invocation running in the background.
type Process struct {
	cmd    *exec.Cmd
	stdout *bytes.Buffer
	stderr *bytes.Buffer

	// exited is closed when the process exits.
	exited chan struct{}
	// exitErr stores the error from cmd.Wait() for multiple reads.
	exitErr error
}

// Start runs wst in the background. The process is killed on test cleanup
// if it is still running.
func (h *Harness) Start(args ...string) *Process {
	h.t.Helper()

	cmd := h.command(args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		h.t.Fatalf("starting wst: %v", err)
	}

	p := &Process{
		cmd:    cmd,
		stdout: &stdout,
		stderr: &stderr,
		exited: make(chan struct{}),
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.exited)
	}()

	h.t.Cleanup(func() {
		if !p.IsDone() {
			_ = cmd.Process.Kill()
			<-p.exited
		}
	})
	return p
}

// Signal sends sig to the wst process.
func (p *Process) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

// IsDone returns true if the process has exited.
func (p *Process) IsDone() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// WaitWithTimeout waits for exit, killing the process after timeout.
func (p *Process) WaitWithTimeout(timeout time.Duration) Result {
	select {
	case <-p.exited:
	case <-time.After(timeout):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	return newResult(p.stdout, p.stderr, p.exitErr)
}
