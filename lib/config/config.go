package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/artie-labs/ingest/lib/config/constants"
	"github.com/artie-labs/ingest/lib/typing"
)

const (
	chunkSizeStart = 1
	// SQL Server caps a single bulk copy batch well above this, but larger chunks only raise peak memory.
	chunkSizeEnd = 100_000
)

type Sentry struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment,omitempty"`
}

type Staging struct {
	ChunkSize      int  `yaml:"chunkSize"`
	RetentionHours int  `yaml:"retentionHours"`
	DropOnFailure  bool `yaml:"dropOnFailure"`
	// SweepSchedule is a cron expression for the stale staging sweeper.
	SweepSchedule string `yaml:"sweepSchedule"`
}

func (s Staging) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}

type Validation struct {
	// BlockingThresholdPercent defaults to [constants.DefaultBlockingThresholdPercent], zero blocks on any failure.
	BlockingThresholdPercent *float64 `yaml:"blockingThresholdPercent,omitempty"`
	// SchemaMismatchThresholdPercent is the failure rate at which a numeric or date column is treated as declared
	// with the wrong type. It defaults to the larger of [constants.DefaultSchemaMismatchThresholdPercent] and the blocking threshold.
	SchemaMismatchThresholdPercent *float64 `yaml:"schemaMismatchThresholdPercent,omitempty"`
	MaxExamples                    int      `yaml:"maxExamples"`
	CreateIndexes                  *bool    `yaml:"createIndexes,omitempty"`
}

func (v Validation) BlockingThreshold() float64 {
	return typing.DefaultValueFromPtr(v.BlockingThresholdPercent, constants.DefaultBlockingThresholdPercent)
}

func (v Validation) SchemaMismatchThreshold() float64 {
	return typing.DefaultValueFromPtr(v.SchemaMismatchThresholdPercent, max(constants.DefaultSchemaMismatchThresholdPercent, v.BlockingThreshold()))
}

func (v Validation) ShouldCreateIndexes() bool {
	return v.CreateIndexes == nil || *v.CreateIndexes
}

type Config struct {
	MSSQL      *MSSQL     `yaml:"mssql"`
	Pool       Pool       `yaml:"pool"`
	Staging    Staging    `yaml:"staging"`
	Validation Validation `yaml:"validation"`
	Datasets   []Dataset  `yaml:"datasets"`

	Reporting struct {
		Sentry *Sentry `yaml:"sentry"`
	} `yaml:"reporting"`

	Telemetry struct {
		Metrics struct {
			Provider constants.ExporterKind `yaml:"provider"`
			Settings map[string]any         `yaml:"settings,omitempty"`
		} `yaml:"metrics"`
	} `yaml:"telemetry"`
}

func readFileToConfig(pathToConfig string) (*Config, error) {
	file, err := os.Open(pathToConfig)
	if err != nil {
		return nil, err
	}

	defer file.Close()
	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return parseConfig(bytes)
}

func parseConfig(bytes []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults fills in everything left unset, it must run after env overrides so those can still be defaulted.
func (c *Config) setDefaults() {
	c.Pool.setDefaults()

	if c.MSSQL != nil && c.MSSQL.Port == 0 {
		c.MSSQL.Port = defaultMSSQLPort
	}

	if c.Staging.ChunkSize == 0 {
		c.Staging.ChunkSize = constants.DefaultChunkSize
	}

	if c.Staging.RetentionHours == 0 {
		c.Staging.RetentionHours = int(constants.DefaultStagingTTL / time.Hour)
	}

	if c.Staging.SweepSchedule == "" {
		c.Staging.SweepSchedule = constants.DefaultSweepCronExp
	}

	if c.Validation.MaxExamples == 0 {
		c.Validation.MaxExamples = constants.DefaultMaxExamples
	}

	for i := range c.Datasets {
		if c.Datasets[i].Schema == "" {
			c.Datasets[i].Schema = constants.DefaultSchema
		}

		if c.Datasets[i].Table == "" {
			c.Datasets[i].Table = c.Datasets[i].Name
		}
	}
}

// Dataset looks up a configured dataset by name.
func (c *Config) Dataset(name string) (Dataset, error) {
	for _, dataset := range c.Datasets {
		if dataset.Name == name {
			return dataset, nil
		}
	}

	return Dataset{}, fmt.Errorf("dataset %q is not configured", name)
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if err := c.MSSQL.Validate(); err != nil {
		return fmt.Errorf("config is invalid: %w", err)
	}

	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("config is invalid: %w", err)
	}

	if c.Staging.ChunkSize < chunkSizeStart || c.Staging.ChunkSize > chunkSizeEnd {
		return fmt.Errorf("config is invalid, chunk size is outside of our range: %d, expected start: %d, end: %d",
			c.Staging.ChunkSize, chunkSizeStart, chunkSizeEnd)
	}

	if c.Staging.RetentionHours <= 0 {
		return fmt.Errorf("config is invalid, staging retention must be positive, got %d", c.Staging.RetentionHours)
	}

	if _, err := cron.ParseStandard(c.Staging.SweepSchedule); err != nil {
		return fmt.Errorf("config is invalid, sweep schedule %q: %w", c.Staging.SweepSchedule, err)
	}

	if threshold := c.Validation.BlockingThreshold(); threshold < 0 || threshold > 100 {
		return fmt.Errorf("config is invalid, blocking threshold must be between 0 and 100, got %v", threshold)
	}

	if threshold := c.Validation.SchemaMismatchThreshold(); threshold <= 0 || threshold > 100 {
		return fmt.Errorf("config is invalid, schema mismatch threshold must be above 0 and at most 100, got %v", threshold)
	}

	if c.Validation.MaxExamples < 0 {
		return fmt.Errorf("config is invalid, max examples cannot be negative, got %d", c.Validation.MaxExamples)
	}

	seen := make(map[string]bool)
	for _, dataset := range c.Datasets {
		if err := dataset.Validate(); err != nil {
			return fmt.Errorf("config is invalid: %w", err)
		}

		if seen[dataset.Name] {
			return fmt.Errorf("config is invalid, duplicate dataset %q", dataset.Name)
		}
		seen[dataset.Name] = true
	}

	if c.Telemetry.Metrics.Provider != "" && c.Telemetry.Metrics.Provider != constants.Datadog {
		return fmt.Errorf("config is invalid, unsupported metrics provider: %q", c.Telemetry.Metrics.Provider)
	}

	return nil
}
