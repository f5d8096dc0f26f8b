package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	EnvServer      = "DB_SERVER"
	EnvPort        = "DB_PORT"
	EnvDatabase    = "DB_NAME"
	EnvUsername    = "DB_USERNAME"
	EnvPassword    = "DB_PASSWORD"
	EnvSchema      = "DB_SCHEMA"
	EnvPoolSize    = "DB_POOL_SIZE"
	EnvMaxOverflow = "DB_MAX_OVERFLOW"
	EnvPoolTimeout = "DB_POOL_TIMEOUT"
	EnvPoolRecycle = "DB_POOL_RECYCLE"
)

// LoadDotEnv loads variables from the given files into the environment, a missing file is not an error.
// Variables that are already set win over the file.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %q: %w", path, err)
		}
	}
	return nil
}

func envInt(key string, target *int) error {
	value, isOk := os.LookupEnv(key)
	if !isOk || value == "" {
		return nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("failed to parse %s=%q: %w", key, value, err)
	}

	*target = parsed
	return nil
}

func envString(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

// applyEnvOverrides lets the connection settings be supplied through the environment, which wins over the config file.
func (c *Config) applyEnvOverrides() error {
	if c.MSSQL == nil {
		c.MSSQL = &MSSQL{}
	}

	envString(EnvServer, &c.MSSQL.Host)
	envString(EnvDatabase, &c.MSSQL.Database)
	envString(EnvUsername, &c.MSSQL.Username)
	envString(EnvPassword, &c.MSSQL.Password)

	for key, target := range map[string]*int{
		EnvPort:        &c.MSSQL.Port,
		EnvPoolSize:    &c.Pool.Size,
		EnvMaxOverflow: &c.Pool.MaxOverflow,
		EnvPoolTimeout: &c.Pool.TimeoutSeconds,
		EnvPoolRecycle: &c.Pool.RecycleSeconds,
	} {
		if err := envInt(key, target); err != nil {
			return err
		}
	}

	if schema := os.Getenv(EnvSchema); schema != "" {
		for i := range c.Datasets {
			if c.Datasets[i].Schema == "" {
				c.Datasets[i].Schema = schema
			}
		}
	}

	return nil
}
