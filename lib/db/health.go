package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

const (
	healthyThreshold  = time.Second
	degradedThreshold = 5 * time.Second
)

type PoolStats struct {
	Size         int           `json:"size"`
	MaxOverflow  int           `json:"maxOverflow"`
	MaxOpen      int           `json:"maxOpen"`
	Open         int           `json:"open"`
	InUse        int           `json:"inUse"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"waitCount"`
	WaitDuration time.Duration `json:"waitDuration"`
}

type HealthReport struct {
	Status       HealthStatus  `json:"status"`
	ResponseTime time.Duration `json:"responseTime"`
	Pool         PoolStats     `json:"pool"`
	Message      string        `json:"message,omitempty"`
	CheckedAt    time.Time     `json:"checkedAt"`
}

func statusForResponseTime(responseTime time.Duration) HealthStatus {
	switch {
	case responseTime < healthyThreshold:
		return Healthy
	case responseTime < degradedThreshold:
		return Degraded
	default:
		return Unhealthy
	}
}

func (s *Store) PoolStats() PoolStats {
	stats := s.db.Stats()
	return PoolStats{
		Size:         s.cfg.Size,
		MaxOverflow:  s.cfg.MaxOverflow,
		MaxOpen:      stats.MaxOpenConnections,
		Open:         stats.OpenConnections,
		InUse:        stats.InUse,
		Idle:         stats.Idle,
		WaitCount:    stats.WaitCount,
		WaitDuration: stats.WaitDuration,
	}
}

// Health runs a round trip through the pool and grades it by latency.
func (s *Store) Health(ctx context.Context) HealthReport {
	start := time.Now()
	err := s.WithQuerier(ctx, func(q Querier) error {
		var one int
		return q.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})

	report := HealthReport{
		ResponseTime: time.Since(start),
		CheckedAt:    start.UTC(),
	}

	if err != nil {
		report.Status = Unhealthy
		report.Message = fmt.Sprintf("health check failed: %v", err)
		slog.Warn("Database health check failed", slog.Any("err", err))
	} else {
		report.Status = statusForResponseTime(report.ResponseTime)
	}

	report.Pool = s.PoolStats()
	s.emitHealthMetrics(report)
	return report
}

func (s *Store) emitHealthMetrics(report HealthReport) {
	tags := map[string]string{"status": string(report.Status)}
	s.metrics.Timing("db.health.response_time", report.ResponseTime, tags)
	s.metrics.Gauge("db.pool.open", float64(report.Pool.Open), nil)
	s.metrics.Gauge("db.pool.in_use", float64(report.Pool.InUse), nil)
	s.metrics.Gauge("db.pool.idle", float64(report.Pool.Idle), nil)
	s.metrics.Count("db.pool.wait_count", report.Pool.WaitCount, nil)
}
