// Package testutil provides test-only helpers shared across package
// tests, namely a guard that ensures a fixture child process launched for
// an integration test never outlives the test.
package testutil

import "os/exec"

// ChildGuard owns a spawned *exec.Cmd and guarantees it is killed and
// reaped on every exit path.
type ChildGuard struct {
	Cmd *exec.Cmd
}

// NewChildGuard wraps an already-started cmd.
func NewChildGuard(cmd *exec.Cmd) *ChildGuard {
	return &ChildGuard{Cmd: cmd}
}

// Close kills the process if it's still alive and reaps it, swallowing
// errors from a process that already exited on its own.
func (g *ChildGuard) Close() {
	if g.Cmd == nil || g.Cmd.Process == nil {
		return
	}
	if g.Cmd.ProcessState != nil {
		return // already waited on
	}
	_ = g.Cmd.Process.Kill()
	_ = g.Cmd.Wait()
}
