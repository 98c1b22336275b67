package health

import (
	"context"
	"time"
)

// HealthStatus represents the health state of a dependency
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// Checker is implemented by every external dependency the backend talks to
// (Redis, the vector index, the generation endpoint, the conversation store).
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

// DependencyHealth is the result of the last probe of one dependency
type DependencyHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Critical  bool         `json:"critical"`
	LatencyMs int64        `json:"latency_ms"`
	LastError string       `json:"last_error,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// Report aggregates the probe results of all registered dependencies
type Report struct {
	Status       HealthStatus       `json:"status"`
	Dependencies []DependencyHealth `json:"dependencies"`
	CheckedAt    time.Time          `json:"checked_at"`
}

// Ready reports whether every critical dependency answered its last probe
func (r Report) Ready() bool {
	return r.Status != StatusUnhealthy && r.Status != StatusUnknown
}
