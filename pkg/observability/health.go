package observability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the result of a health check.
type HealthCheckResult struct {
	Status    HealthStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker performs one health check.
type HealthChecker func(ctx context.Context) HealthCheckResult

// HealthRegistry runs the registered checks of a process.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds or replaces the checker for a component.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check runs every check concurrently.
func (r *HealthRegistry) Check(ctx context.Context) map[string]HealthCheckResult {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for name, checker := range r.checkers {
		checkers[name] = checker
	}
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheckResult, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			result := checker(ctx)
			result.Duration = time.Since(start)
			result.Timestamp = time.Now()

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// OverallHealth is the aggregated result served by health endpoints.
type OverallHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// GetOverallHealth runs all checks. The worst component status wins.
func (r *HealthRegistry) GetOverallHealth(ctx context.Context) OverallHealth {
	checks := r.Check(ctx)
	status := HealthStatusHealthy
	for _, result := range checks {
		switch {
		case result.Status == HealthStatusUnhealthy:
			status = HealthStatusUnhealthy
		case result.Status == HealthStatusDegraded && status == HealthStatusHealthy:
			status = HealthStatusDegraded
		}
	}
	return OverallHealth{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// PingChecker reports component as healthy when ping succeeds and with
// onFailure otherwise.
func PingChecker(component string, onFailure HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		if err := ping(ctx); err != nil {
			return HealthCheckResult{
				Status:  onFailure,
				Message: component + " connection failed: " + err.Error(),
			}
		}
		return HealthCheckResult{
			Status:  HealthStatusHealthy,
			Message: component + " connection healthy",
		}
	}
}

// DatabaseHealthChecker fails the process when the store is unreachable;
// no webhook can be applied without it.
func DatabaseHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return PingChecker("database", HealthStatusUnhealthy, ping)
}

// RedisHealthChecker degrades when Redis is unreachable. Only account
// syncs need it.
func RedisHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return PingChecker("redis", HealthStatusDegraded, ping)
}

// RabbitMQHealthChecker degrades when the broker connection is gone.
// Events stay in the outbox until it returns.
func RabbitMQHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return PingChecker("rabbitmq", HealthStatusDegraded, ping)
}

// OutboxHealthChecker reports the delivery backlog. Dead-lettered messages
// degrade health; they need an operator.
func OutboxHealthChecker(backlog func(ctx context.Context) (pending, dead int64, err error)) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		pending, dead, err := backlog(ctx)
		if err != nil {
			return HealthCheckResult{
				Status:  HealthStatusDegraded,
				Message: "outbox backlog unavailable: " + err.Error(),
			}
		}
		result := HealthCheckResult{
			Status:  HealthStatusHealthy,
			Message: "outbox delivering",
			Details: map[string]any{"pending": pending, "dead_lettered": dead},
		}
		if dead > 0 {
			result.Status = HealthStatusDegraded
			result.Message = fmt.Sprintf("%d outbox messages dead-lettered", dead)
		}
		return result
	}
}

// BreakerHealthChecker degrades while the named circuit breaker is open.
func BreakerHealthChecker(name string, state func() string) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		current := state()
		result := HealthCheckResult{
			Status:  HealthStatusHealthy,
			Message: name + " breaker " + current,
			Details: map[string]any{"state": current},
		}
		if current == "open" {
			result.Status = HealthStatusDegraded
		}
		return result
	}
}
