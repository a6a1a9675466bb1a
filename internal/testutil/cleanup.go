package testutil

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
)

// CleanupManager tracks resources that need cleanup after tests.
type CleanupManager struct {
	mu        sync.Mutex
	t         *testing.T
	resources []cleanupResource
	done      bool
}

type cleanupResource struct {
	name    string
	cleanup func() error
}

// NewCleanupManager creates a cleanup manager that runs at test end.
func NewCleanupManager(t *testing.T) *CleanupManager {
	t.Helper()

	cm := &CleanupManager{t: t}
	t.Cleanup(cm.Cleanup)
	return cm
}

// AddPath registers a file or directory for removal.
func (cm *CleanupManager) AddPath(path string) {
	cm.add("path:"+path, func() error {
		return os.RemoveAll(path)
	})
}

// AddProcessGroup registers a process group to be killed.
// Groups that are already gone are not an error.
func (cm *CleanupManager) AddProcessGroup(pgid int) {
	cm.add("pgroup", func() error {
		if pgid <= 0 {
			return nil
		}
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return err
		}
		return nil
	})
}

// AddFunc registers a custom cleanup function.
func (cm *CleanupManager) AddFunc(name string, fn func() error) {
	cm.add(name, fn)
}

func (cm *CleanupManager) add(name string, fn func() error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.resources = append(cm.resources, cleanupResource{name: name, cleanup: fn})
}

// Cleanup runs all cleanup functions in reverse order.
// It's safe to call multiple times - subsequent calls are no-ops.
func (cm *CleanupManager) Cleanup() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.done {
		return
	}
	cm.done = true

	for i := len(cm.resources) - 1; i >= 0; i-- {
		res := cm.resources[i]
		if err := res.cleanup(); err != nil {
			cm.t.Logf("Cleanup warning for %s: %v", res.name, err)
		}
	}
}
