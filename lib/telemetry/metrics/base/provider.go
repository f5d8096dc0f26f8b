package base

import "time"

// Client is implemented by every metrics exporter. Tags are optional.
type Client interface {
	Timing(name string, value time.Duration, tags map[string]string)
	Incr(name string, tags map[string]string)
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	// Close flushes anything still buffered.
	Close() error
}
