package datadog

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"gopkg.in/yaml.v3"

	"github.com/artie-labs/ingest/lib/stringutil"
	"github.com/artie-labs/ingest/lib/telemetry/metrics/base"
)

const (
	DefaultSampleRate = 1.0
	DefaultNamespace  = "ingest."
	// DefaultAddr is where the agent listens when it runs on the same host.
	DefaultAddr = "127.0.0.1:8125"
)

// Options are the provider settings of the metrics section in the config file.
type Options struct {
	Addr      string   `yaml:"addr"`
	Namespace string   `yaml:"namespace"`
	Tags      []string `yaml:"tags"`
	// Sampling is a rate in (0, 1], anything else sends every metric.
	Sampling float64 `yaml:"sampling"`
}

// parseOptions decodes the free-form settings map. The config keeps it untyped since every provider has
// its own keys, so it is marshalled back to YAML and decoded into [Options].
func parseOptions(settings map[string]any) (Options, error) {
	var opts Options
	if len(settings) > 0 {
		out, err := yaml.Marshal(settings)
		if err != nil {
			return Options{}, fmt.Errorf("failed to read datadog settings: %w", err)
		}

		if err = yaml.Unmarshal(out, &opts); err != nil {
			return Options{}, fmt.Errorf("failed to read datadog settings: %w", err)
		}
	}

	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}

	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}

	if opts.Sampling <= 0 || opts.Sampling > 1 {
		opts.Sampling = DefaultSampleRate
	}

	host, port := os.Getenv("TELEMETRY_HOST"), os.Getenv("TELEMETRY_PORT")
	if !stringutil.Empty(host, port) {
		opts.Addr = fmt.Sprintf("%s:%s", host, port)
		slog.Info("Overriding telemetry address with env vars", slog.String("address", opts.Addr))
	}

	return opts, nil
}

func NewDatadogClient(settings map[string]any) (base.Client, error) {
	opts, err := parseOptions(settings)
	if err != nil {
		return nil, err
	}

	datadogClient, err := statsd.New(opts.Addr, statsd.WithNamespace(opts.Namespace), statsd.WithTags(opts.Tags))
	if err != nil {
		return nil, err
	}

	return &statsClient{client: datadogClient, rate: opts.Sampling}, nil
}

type statsClient struct {
	client *statsd.Client
	rate   float64
}

// toDatadogTags renders tags as key:value pairs, sorted so the same tags always produce the same series.
func toDatadogTags(tags map[string]string) []string {
	var out []string
	for key, val := range tags {
		out = append(out, key+":"+val)
	}

	slices.Sort(out)
	return out
}

func (s *statsClient) Timing(name string, value time.Duration, tags map[string]string) {
	_ = s.client.Timing(name, value, toDatadogTags(tags), s.rate)
}

func (s *statsClient) Incr(name string, tags map[string]string) {
	_ = s.client.Incr(name, toDatadogTags(tags), s.rate)
}

func (s *statsClient) Count(name string, value int64, tags map[string]string) {
	_ = s.client.Count(name, value, toDatadogTags(tags), s.rate)
}

func (s *statsClient) Gauge(name string, value float64, tags map[string]string) {
	// Pool gauges are sampled on every health check, so always send them.
	_ = s.client.Gauge(name, value, toDatadogTags(tags), 1)
}

func (s *statsClient) Close() error {
	return s.client.Close()
}
