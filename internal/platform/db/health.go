package db

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// PoolStats is the subset of pgxpool statistics shown on /health.
type PoolStats struct {
	Total        int32  `json:"total"`
	Idle         int32  `json:"idle"`
	InUse        int32  `json:"inUse"`
	Max          int32  `json:"max"`
	Acquires     int64  `json:"acquires"`
	EmptyWaits   int64  `json:"emptyWaits"`
	AcquireDelay string `json:"acquireDelay"`
}

func statsOf(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		Total:        s.TotalConns(),
		Idle:         s.IdleConns(),
		InUse:        s.AcquiredConns(),
		Max:          s.MaxConns(),
		Acquires:     s.AcquireCount(),
		EmptyWaits:   s.EmptyAcquireCount(),
		AcquireDelay: s.AcquireDuration().String(),
	}
}

// Probe is one named dependency check.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Check describes what /health reports: the storage backend, its probes and,
// for postgres, the pool.
type Check struct {
	Backend string
	Probes  []Probe
	Pool    *pgxpool.Pool
	Timeout time.Duration
}

// HealthReport is the /health response body.
type HealthReport struct {
	Status  string            `json:"status"`
	Storage string            `json:"storage"`
	Checks  map[string]string `json:"checks,omitempty"`
	Pool    *PoolStats        `json:"pool,omitempty"`
}

// Run executes every probe concurrently. The report is unhealthy when any
// probe fails; each probe's outcome is listed by name.
func (c Check) Run(ctx context.Context) HealthReport {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := HealthReport{Status: "healthy", Storage: c.Backend}
	if len(c.Probes) > 0 {
		report.Checks = make(map[string]string, len(c.Probes))
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, p := range c.Probes {
		g.Go(func() error {
			result := "ok"
			if err := p.Check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			report.Checks[p.Name] = result
			if result != "ok" {
				report.Status = "unhealthy"
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if c.Pool != nil {
		report.Pool = statsOf(c.Pool)
	}
	return report
}

// HealthHandler serves /health, answering 503 when a probe fails.
func HealthHandler(check Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		report := check.Run(c.Request().Context())
		code := http.StatusOK
		if report.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, report)
	}
}
