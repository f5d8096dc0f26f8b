package metrics

import "time"

// NullMetricsProvider drops everything, it is used when no exporter is configured.
type NullMetricsProvider struct{}

func (NullMetricsProvider) Gauge(string, float64, map[string]string) {}

func (NullMetricsProvider) Count(string, int64, map[string]string) {}

func (NullMetricsProvider) Timing(string, time.Duration, map[string]string) {}

func (NullMetricsProvider) Incr(string, map[string]string) {}

func (NullMetricsProvider) Close() error {
	return nil
}
