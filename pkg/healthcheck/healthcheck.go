// Package healthcheck aggregates component probes into the health,
// readiness and liveness endpoints both servers expose. Checks run
// concurrently and responses are cached briefly so probe storms do
// not hammer the upstream providers.
package healthcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Status represents the health status of a component or the system.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// checkTimeout bounds one aggregation round across all checkers.
const checkTimeout = 10 * time.Second

// Check is the result of probing one component.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
	Metadata    interface{}   `json:"metadata,omitempty"`
}

// Response aggregates all component checks.
type Response struct {
	Status        Status        `json:"status"`
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	Checks        []Check       `json:"checks"`
	TotalDuration time.Duration `json:"total_duration_ms"`
}

// Checker probes one component.
type Checker interface {
	Check(ctx context.Context) Check
}

// HealthCheck runs registered checkers and caches the aggregate.
type HealthCheck struct {
	version string
	logger  *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
	cache    *Response
	cacheTTL time.Duration

	refreshMu sync.Mutex
}

// New creates an empty registry.
func New(version string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		version:  version,
		logger:   logger,
		checkers: make(map[string]Checker),
		cacheTTL: 5 * time.Second,
	}
}

// Register adds a checker under the given name.
func (h *HealthCheck) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// SetCacheTTL overrides how long an aggregated response is reused.
// Zero disables caching.
func (h *HealthCheck) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheTTL = ttl
}

// Check returns the aggregated health of all registered components.
// Within the cache TTL the previous response is reused; past it,
// concurrent callers share one refresh.
func (h *HealthCheck) Check(ctx context.Context) Response {
	if response, ok := h.cached(); ok {
		return response
	}

	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	if response, ok := h.cached(); ok {
		return response
	}

	response := h.run(ctx)

	h.mu.Lock()
	previous := StatusHealthy
	if h.cache != nil {
		previous = h.cache.Status
	}
	h.cache = &response
	h.mu.Unlock()

	if response.Status != previous {
		if response.Status == StatusHealthy {
			h.logger.Info("Health recovered", zap.String("from", string(previous)))
		} else {
			h.logger.Warn("Health status changed",
				zap.String("from", string(previous)),
				zap.String("to", string(response.Status)))
		}
	}

	return response
}

func (h *HealthCheck) cached() (Response, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.cache != nil && time.Since(h.cache.Timestamp) < h.cacheTTL {
		return *h.cache, true
	}
	return Response{}, false
}

// run probes every checker concurrently. Checks come back in name
// order so the report is stable across refreshes.
func (h *HealthCheck) run(ctx context.Context) Response {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]Checker, len(names))
	for i, name := range names {
		checkers[i] = h.checkers[name]
	}
	h.mu.RUnlock()

	checks := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i := range checkers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			check := checkers[i].Check(ctx)
			check.Name = names[i]
			checks[i] = check
		}(i)
	}
	wg.Wait()

	response := Response{
		Status:    StatusHealthy,
		Version:   h.version,
		Timestamp: start,
		Checks:    checks,
	}
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if check.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}
	response.TotalDuration = time.Since(start)
	return response
}

// Handler serves the full health report.
func (h *HealthCheck) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())

		status := http.StatusOK
		if response.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response)
	}
}

// LivenessHandler answers as long as the process can serve requests.
func (h *HealthCheck) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	}
}

// ReadinessHandler reports not ready only on a hard failure. Degraded
// components, like an optional cache tier or an open image breaker,
// keep the instance in rotation.
func (h *HealthCheck) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())

		if response.Status == StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"reason": "Health checks failed",
				"checks": response.Checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	}
}

// ProbeChecker adapts a plain probe function, like the HealthCheck
// methods on the provider clients, into a Checker. A nil error maps
// to healthy, anything else to unhealthy.
type ProbeChecker struct {
	name  string
	probe func(ctx context.Context) error
}

// NewProbeChecker creates a probe-backed checker.
func NewProbeChecker(name string, probe func(ctx context.Context) error) *ProbeChecker {
	return &ProbeChecker{name: name, probe: probe}
}

// Check runs the probe.
func (p *ProbeChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := p.probe(ctx)

	check := Check{
		Name:        p.name,
		Status:      StatusHealthy,
		LastChecked: start,
		Duration:    time.Since(start),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// CustomChecker allows arbitrary health check logic.
type CustomChecker struct {
	name  string
	check func(ctx context.Context) (Status, string, interface{})
}

// NewCustomChecker creates a custom checker.
func NewCustomChecker(name string, check func(ctx context.Context) (Status, string, interface{})) *CustomChecker {
	return &CustomChecker{name: name, check: check}
}

// Check runs the custom logic.
func (c *CustomChecker) Check(ctx context.Context) Check {
	start := time.Now()
	status, message, metadata := c.check(ctx)

	return Check{
		Name:        c.name,
		Status:      status,
		Message:     message,
		Metadata:    metadata,
		LastChecked: start,
		Duration:    time.Since(start),
	}
}

// MarshalJSON reports the duration in milliseconds.
func (c Check) MarshalJSON() ([]byte, error) {
	type alias Check
	return json.Marshal(&struct {
		Duration float64 `json:"duration_ms"`
		*alias
	}{
		Duration: durationMS(c.Duration),
		alias:    (*alias)(&c),
	})
}

// MarshalJSON reports the total duration in milliseconds.
func (r Response) MarshalJSON() ([]byte, error) {
	type alias Response
	return json.Marshal(&struct {
		TotalDuration float64 `json:"total_duration_ms"`
		*alias
	}{
		TotalDuration: durationMS(r.TotalDuration),
		alias:         (*alias)(&r),
	})
}

func durationMS(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
