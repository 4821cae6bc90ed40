// Package inflight coalesces concurrent identical requests so that N
// near-simultaneous callers share one underlying execution and observe the
// same result or the same failure.
package inflight

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inflightStartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_inflight_starts_total",
		Help: "Total number of executions started by the in-flight registry",
	})

	inflightCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "api_inflight_coalesced_total",
		Help: "Total number of callers that joined an existing in-flight execution",
	})

	inflightActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "api_inflight_active",
		Help: "Current number of in-flight executions",
	})
)

// call represents one active execution and its eventual outcome.
type call struct {
	wg  sync.WaitGroup
	val interface{}
	err error
}

// Registry tracks requests currently executing, at most one per key.
// Safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	calls map[string]*call
}

// NewRegistry creates an empty in-flight registry.
func NewRegistry() *Registry {
	return &Registry{
		calls: make(map[string]*call),
	}
}

// GetOrStart returns the result of fn for key. If an execution for key is
// already in flight, the caller waits for it and receives its outcome
// instead of triggering a new one.
//
// The registry entry is removed unconditionally when fn settles, before
// any waiter resumes: a later call for the same key always starts fresh
// work, never observes a settled entry.
func (r *Registry) GetOrStart(key string, fn func() (interface{}, error)) (interface{}, error) {
	r.mu.Lock()
	if c, ok := r.calls[key]; ok {
		r.mu.Unlock()
		inflightCoalescedTotal.Inc()
		c.wg.Wait()
		return c.val, c.err
	}

	c := &call{}
	c.wg.Add(1)
	r.calls[key] = c
	r.mu.Unlock()

	inflightStartsTotal.Inc()
	inflightActive.Inc()

	// Removal must run on every exit path, including a panicking fn,
	// and must complete before waiters are released.
	defer func() {
		r.mu.Lock()
		delete(r.calls, key)
		r.mu.Unlock()
		inflightActive.Dec()
		c.wg.Done()
	}()

	c.val, c.err = fn()
	return c.val, c.err
}

// Len returns the number of executions currently in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
