// Package health aggregates subsystem probes behind the readiness
// endpoints. The server registers one checker per dependency it cannot
// serve orders without (currently the database, when one is configured)
// and /health/ready reports the aggregate.
package health

import (
	"context"
	"sync"
	"time"
)

// checkTimeout bounds a single probe so one stuck dependency cannot
// hang the readiness endpoint.
const checkTimeout = 2 * time.Second

// Status is the outcome of probing a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes one subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named checkers and runs them on demand. Checkers run
// in registration order so /health output stays stable.
type Registry struct {
	mu     sync.RWMutex
	probes []probe
}

type probe struct {
	name  string
	check Checker
}

// NewRegistry creates an empty registry. An empty registry reports
// healthy, which is what the in-memory configuration wants.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.probes = append(r.probes, probe{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every registered checker, each under its own timeout,
// and returns the aggregate plus per-subsystem results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	probes := make([]probe, len(r.probes))
	copy(probes, r.probes)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(probes))

	for i, p := range probes {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		statuses[i] = p.check(cctx)
		cancel()
		if statuses[i].Name == "" {
			statuses[i].Name = p.name
		}
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}
