// Package monitoring abstracts error reporting. The process-wide Monitor is a
// no-op until Init installs a real implementation such as the Sentry one in
// infra/monitoring.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation. A nil monitor is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

// Reset restores the no-op monitor.
func Reset() { Init(NopMonitor{}) }

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// CaptureRunError tags err with the run identifier and module name.
func CaptureRunError(err error, runID, module string) {
	CaptureException(err, map[string]string{"run_id": runID, "module": module})
}

// Recover captures panics in goroutines.
func Recover() { get().Recover() }

// Flush flushes buffered events.
func Flush(d time.Duration) { get().Flush(d) }
