package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/artie-labs/ingest/lib/stringutil"
)

const defaultMSSQLPort = 1433

type MSSQL struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// Encrypt is passed through to the driver, e.g. "disable", "false", "true" or "strict".
	Encrypt                string `yaml:"encrypt,omitempty"`
	TrustServerCertificate bool   `yaml:"trustServerCertificate,omitempty"`
}

func (m *MSSQL) DSN() string {
	query := url.Values{}
	query.Add("database", m.Database)
	query.Add("app name", "artie-ingest")
	if m.Encrypt != "" {
		query.Add("encrypt", m.Encrypt)
	}

	if m.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(m.Username, m.Password),
		Host:     fmt.Sprintf("%s:%d", m.Host, m.Port),
		RawQuery: query.Encode(),
	}

	return u.String()
}

func (m *MSSQL) String() string {
	// Don't log credentials.
	return fmt.Sprintf("host=%s, port=%d, database=%s, user_set=%v, pass_set=%v", m.Host, m.Port, m.Database, m.Username != "", m.Password != "")
}

func (m *MSSQL) Validate() error {
	if m == nil {
		return fmt.Errorf("mssql config is nil")
	}

	if empty := stringutil.Empty(m.Host, m.Username, m.Password, m.Database); empty {
		return fmt.Errorf("one of mssql settings is empty (host, username, password, database)")
	}

	if m.Port <= 0 {
		return fmt.Errorf("invalid mssql port: %d", m.Port)
	}

	return nil
}

type Pool struct {
	Size           int   `yaml:"size"`
	MaxOverflow    int   `yaml:"maxOverflow"`
	TimeoutSeconds int   `yaml:"timeoutSeconds"`
	RecycleSeconds int   `yaml:"recycleSeconds"`
	PrePing        *bool `yaml:"prePing,omitempty"`
}

const (
	defaultPoolSize       = 5
	defaultPoolOverflow   = 10
	defaultPoolTimeoutSec = 30
	defaultPoolRecycleSec = 3600
)

func (p Pool) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (p Pool) Recycle() time.Duration {
	return time.Duration(p.RecycleSeconds) * time.Second
}

func (p Pool) ShouldPrePing() bool {
	return p.PrePing == nil || *p.PrePing
}

func (p Pool) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("pool size must be positive, got %d", p.Size)
	}

	if p.MaxOverflow < 0 {
		return fmt.Errorf("pool max overflow cannot be negative, got %d", p.MaxOverflow)
	}

	if p.TimeoutSeconds <= 0 {
		return fmt.Errorf("pool timeout must be positive, got %d", p.TimeoutSeconds)
	}

	if p.RecycleSeconds <= 0 {
		return fmt.Errorf("pool recycle must be positive, got %d", p.RecycleSeconds)
	}

	return nil
}

func (p *Pool) setDefaults() {
	if p.Size == 0 {
		p.Size = defaultPoolSize
	}

	if p.MaxOverflow == 0 {
		p.MaxOverflow = defaultPoolOverflow
	}

	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = defaultPoolTimeoutSec
	}

	if p.RecycleSeconds == 0 {
		p.RecycleSeconds = defaultPoolRecycleSec
	}
}
