package server

import (
	"context"
	"sort"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health runs dependency checks for the health endpoint.
type Health struct {
	checks map[string]Check
}

// NewHealth builds a Health with no checks.
func NewHealth() *Health {
	return &Health{checks: make(map[string]Check)}
}

// Add registers a named check. Nil checks are ignored.
func (h *Health) Add(name string, check Check) *Health {
	if check != nil {
		h.checks[name] = check
	}
	return h
}

// Status runs every check and reports each result and overall health.
func (h *Health) Status(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := h.checks[name](cctx)
		cancel()
		if err != nil {
			out[name] = err.Error()
			ok = false
			continue
		}
		out[name] = "ok"
	}
	return out, ok
}
