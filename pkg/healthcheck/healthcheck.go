// Package healthcheck reports whether recipegen and the services it
// streams from are usable, and guards providers with a circuit breaker.
package healthcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// worse reports whether s outranks other
func (s Status) worse(other Status) bool {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	return rank[s] > rank[other]
}

// Check is the outcome of one dependency probe
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"-"`
	Metadata    interface{}   `json:"metadata,omitempty"`
}

// Response aggregates every registered check
type Response struct {
	Status        Status        `json:"status"`
	Version       string        `json:"version"`
	Timestamp     time.Time     `json:"timestamp"`
	Checks        []Check       `json:"checks"`
	TotalDuration time.Duration `json:"-"`
}

// Failing lists the names of unhealthy checks
func (r Response) Failing() []string {
	var names []string
	for _, c := range r.Checks {
		if c.Status == StatusUnhealthy {
			names = append(names, c.Name)
		}
	}
	return names
}

// Checker probes one dependency
type Checker interface {
	Check(ctx context.Context) Check
}

// HealthCheck runs the registered checkers and caches the aggregate
type HealthCheck struct {
	version   string
	startedAt time.Time
	logger    *zap.Logger
	timeout   time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	cache    *Response
	cacheTTL time.Duration
}

// New creates a new health check instance
func New(version string, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		version:   version,
		startedAt: time.Now(),
		logger:    logger.Named("healthcheck"),
		timeout:   10 * time.Second,
		checkers:  make(map[string]Checker),
		cacheTTL:  5 * time.Second,
	}
}

// Register adds or replaces the checker reported as name
func (h *HealthCheck) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
	h.cache = nil
}

// SetCacheTTL sets how long an aggregate result is reused
func (h *HealthCheck) SetCacheTTL(ttl time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheTTL = ttl
}

// Handler serves the full report. Unhealthy is 503.
func (h *HealthCheck) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())

		c.Header("Cache-Control", "no-store")
		if response.Status == StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		c.JSON(http.StatusOK, response)
	}
}

// LivenessHandler answers as long as the process can serve requests
func (h *HealthCheck) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "alive",
			"version":        h.version,
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		})
	}
}

// ReadinessHandler reports whether generation can be served.
// Degraded dependencies still count as ready.
func (h *HealthCheck) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := h.Check(c.Request.Context())

		if failing := response.Failing(); len(failing) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"failing": failing,
				"checks":  response.Checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"degraded":  response.Status == StatusDegraded,
			"timestamp": response.Timestamp,
		})
	}
}

// Check runs every checker concurrently. Results are ordered by name.
func (h *HealthCheck) Check(ctx context.Context) Response {
	h.mu.RLock()
	if h.cache != nil && time.Since(h.cache.Timestamp) < h.cacheTTL {
		cached := *h.cache
		h.mu.RUnlock()
		return cached
	}
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	checkers := make([]Checker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = h.checkers[name]
	}
	h.mu.RUnlock()

	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]Check, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker Checker) {
			defer wg.Done()
			result := checker.Check(checkCtx)
			result.Name = names[i]
			results[i] = result
		}(i, checker)
	}
	wg.Wait()

	response := Response{
		Status:        StatusHealthy,
		Version:       h.version,
		Timestamp:     start,
		Checks:        results,
		TotalDuration: time.Since(start),
	}
	for _, result := range results {
		if result.Status == StatusUnhealthy {
			h.logger.Warn("Health check failed",
				zap.String("check", result.Name),
				zap.String("message", result.Message),
			)
		}
		if result.Status.worse(response.Status) {
			response.Status = result.Status
		}
	}

	h.mu.Lock()
	h.cache = &response
	h.mu.Unlock()

	return response
}

// timed runs probe and fills in the bookkeeping fields
func timed(name string, probe func() (Status, string, interface{})) Check {
	start := time.Now()
	status, message, metadata := probe()
	return Check{
		Name:        name,
		Status:      status,
		Message:     message,
		Metadata:    metadata,
		LastChecked: start,
		Duration:    time.Since(start),
	}
}

// RedisChecker pings the shared rate limit store
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis checker
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Check pings Redis. A failed ping is unhealthy.
func (r *RedisChecker) Check(ctx context.Context) Check {
	return timed("redis", func() (Status, string, interface{}) {
		pong, err := r.client.Ping(ctx).Result()
		switch {
		case err != nil:
			return StatusUnhealthy, err.Error(), nil
		case pong != "PONG":
			return StatusUnhealthy, "Unexpected ping response", nil
		}
		return StatusHealthy, "", nil
	})
}

// ExternalServiceChecker probes a chat backend over HTTP
type ExternalServiceChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewExternalServiceChecker creates a new external service checker
func NewExternalServiceChecker(name, url string, timeout time.Duration) *ExternalServiceChecker {
	return &ExternalServiceChecker{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Check issues a GET. Any answer below 500 means the service is
// reachable. Failures degrade the report without failing readiness.
func (e *ExternalServiceChecker) Check(ctx context.Context) Check {
	return timed(e.name, func() (Status, string, interface{}) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
		if err != nil {
			return StatusUnhealthy, err.Error(), nil
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return StatusDegraded, err.Error(), map[string]interface{}{"url": e.url}
		}
		resp.Body.Close()

		metadata := map[string]interface{}{"status_code": resp.StatusCode, "url": e.url}
		if resp.StatusCode >= http.StatusInternalServerError {
			return StatusDegraded, "Service returned error status", metadata
		}
		return StatusHealthy, "", metadata
	})
}

// CustomChecker adapts a function to Checker
type CustomChecker struct {
	name  string
	probe func(ctx context.Context) (Status, string, interface{})
}

// NewCustomChecker creates a new custom checker
func NewCustomChecker(name string, probe func(ctx context.Context) (Status, string, interface{})) *CustomChecker {
	return &CustomChecker{name: name, probe: probe}
}

// Check runs the wrapped function
func (c *CustomChecker) Check(ctx context.Context) Check {
	return timed(c.name, func() (Status, string, interface{}) {
		return c.probe(ctx)
	})
}

// MarshalJSON reports Duration in milliseconds
func (c Check) MarshalJSON() ([]byte, error) {
	type plain Check
	return json.Marshal(struct {
		plain
		DurationMS float64 `json:"duration_ms"`
	}{plain(c), float64(c.Duration.Microseconds()) / 1000})
}

// MarshalJSON reports TotalDuration in milliseconds
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	return json.Marshal(struct {
		plain
		TotalDurationMS float64 `json:"total_duration_ms"`
	}{plain(r), float64(r.TotalDuration.Microseconds()) / 1000})
}
