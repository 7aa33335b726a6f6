// Package testutil provides testing utilities for screeps-adapter tests.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// DefaultWait bounds Eventually when no timeout is given.
const DefaultWait = 2 * time.Second

// Eventually polls cond every millisecond until it returns true, failing the
// test after timeout. Bridge watches attach on background goroutines, so
// tests wait for them with this before driving a digest cycle.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	if timeout <= 0 {
		timeout = DefaultWait
	}
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met after %v: %s", timeout, msg)
		}
		time.Sleep(time.Millisecond)
	}
}

// Never fails the test if cond becomes true within d.
func Never(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("condition unexpectedly met: %s", msg)
		}
		time.Sleep(time.Millisecond)
	}
}

// Recorder collects values delivered to a callback from any goroutine.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

// Record appends v. It has the shape of a subscriber callback.
func (r *Recorder[T]) Record(v T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
	return nil
}

// Values returns a copy of everything recorded so far.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// WriteConfig writes a config file into a fresh temporary directory and
// returns its path.
func WriteConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
