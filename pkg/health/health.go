// Package health reports the state of a running sink over HTTP.
package health

import (
	"time"
)

// NewChecker creates a checker with no checks
func NewChecker() *Checker {
	return &Checker{
		checks:      make(map[string]CheckFunc),
		readyChecks: make(map[string]CheckFunc),
		startedAt:   time.Now(),
	}
}

// Register adds a check to the health report
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// RegisterReadiness adds a check to the readiness report
func (c *Checker) RegisterReadiness(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyChecks[name] = check
}

// Check runs all health checks
func (c *Checker) Check() Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run(c.checks)
}

// CheckReadiness runs the readiness checks
func (c *Checker) CheckReadiness() Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run(c.readyChecks)
}

func (c *Checker) run(checks map[string]CheckFunc) Response {
	response := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(checks)),
		Uptime:    time.Since(c.startedAt).Seconds(),
	}

	for name, fn := range checks {
		start := time.Now()
		check := fn()
		check.Name = name
		check.Duration = time.Since(start)
		check.LastChecked = start
		response.Checks[name] = check

		// worst status wins
		switch {
		case check.Status == StatusUnhealthy:
			response.Status = StatusUnhealthy
		case check.Status == StatusDegraded && response.Status != StatusUnhealthy:
			response.Status = StatusDegraded
		}
	}
	return response
}

// RunningCheck is unhealthy while running reports false.
func RunningCheck(running func() bool) CheckFunc {
	return func() Check {
		if running() {
			return Check{Status: StatusHealthy, Message: "receiving"}
		}
		return Check{Status: StatusUnhealthy, Message: "receiver stopped"}
	}
}

// ActivityCheck is degraded when the last batch is older than stale. A sink
// that has not received anything yet is healthy.
func ActivityCheck(last func() time.Time, stale time.Duration) CheckFunc {
	return func() Check {
		at := last()
		if at.IsZero() {
			return Check{Status: StatusHealthy, Message: "no batches yet"}
		}
		idle := time.Since(at)
		check := Check{
			Status:  StatusHealthy,
			Details: map[string]any{"idle_seconds": idle.Seconds()},
		}
		if idle > stale {
			check.Status = StatusDegraded
			check.Message = "no recent batches"
		}
		return check
	}
}
