package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

const checkTimeout = 2 * time.Second

// Check pings one dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Checker struct {
	checks    []Check
	version   string
	startTime time.Time
	ready     atomic.Bool
}

func NewChecker(version string, checks ...Check) *Checker {
	return &Checker{
		checks:    checks,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady flips the readiness probe.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health runs every check and reports 503 when any of them fails.
func (c *Checker) Health(ctx echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult, len(c.checks)),
		ReportedAt: time.Now().UTC(),
	}

	for _, check := range c.checks {
		result := c.run(ctx.Request().Context(), check)
		if result.Status != "healthy" {
			status.Status = "unhealthy"
		}
		status.Checks[check.Name] = result
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, status)
}

func (c *Checker) run(ctx context.Context, check Check) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	if err := check.Ping(ctx); err != nil {
		return &CheckResult{Status: "unhealthy", Message: err.Error()}
	}
	return &CheckResult{Status: "healthy", Latency: time.Since(start).String()}
}

func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready is 200 only after SetReady(true) and while every check passes.
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	for _, check := range c.checks {
		if result := c.run(ctx.Request().Context(), check); result.Status != "healthy" {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": check.Name + ": " + result.Message,
			})
		}
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
