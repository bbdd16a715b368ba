// Package metrics is a minimal facade so pipeline code can emit counters
// without depending on any vendor SDK. The default backend is a nop; a real
// backend (see metrics/datadog) is installed at startup via SetBackend.
package metrics

import "sync"

// Backend receives metric updates. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter. Tags are "key:value" pairs.
	IncCounter(name string, delta int64, tags ...string)

	// Flush submits buffered metrics. Called at least once at shutdown.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, int64, ...string) {}
func (nopBackend) Flush() error                        { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide metrics backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// IncCounter adds delta to a named counter on the installed backend.
func IncCounter(name string, delta int64, tags ...string) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, tags...)
}

// Flush submits buffered metrics on the installed backend.
func Flush() error {
	mu.RLock()
	b := backend
	mu.RUnlock()
	return b.Flush()
}
