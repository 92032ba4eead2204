// Package config bundles the ambient settings a caller wires into
// src/reactivesql and src/blocking, adapted from the teacher's
// driver/config.go. Unlike the teacher's TLS-heavy Bolt transport config,
// this module never opens a socket itself (Non-goal: "driver protocol"),
// so TLSConfig is dropped; PoolConfig, ObservabilityConfig, LoggingConfig
// and the new RetryConfig/DialectConfig survive.
package config

import (
	"time"

	"github.com/seuros/reactive-sql-bridge/src/logging"
	"github.com/seuros/reactive-sql-bridge/src/render"
	"github.com/seuros/reactive-sql-bridge/src/retry"
)

// Config is the top-level bundle a caller builds once per ConnectionFactory
// and threads through QueryOptions construction.
type Config struct {
	Pool          *PoolConfig
	Observability *ObservabilityConfig
	Logging       *LoggingConfig
	Retry         *RetryConfig
	Dialect       *DialectConfig
}

// PoolConfig mirrors the teacher's connection-pool knobs. This module does
// not implement pooling itself (connections are supplied by an external
// spi.ConnectionFactory), but downstream adapters that do wrap a real pool
// read these values.
type PoolConfig struct {
	MaxConnections      int
	MaxIdleTime         time.Duration
	ConnectionLifetime  time.Duration
	AcquisitionTimeout  time.Duration
	EnableLivenessCheck bool
}

// ObservabilityConfig controls whether src/observability attaches spans
// and metrics around a subscription's execution.
type ObservabilityConfig struct {
	EnableTracing bool
	EnableMetrics bool
}

// LoggingConfig selects the logging.Logger implementation and minimum
// level a caller wants; see logging.NewStandard.
type LoggingConfig struct {
	Level logging.Level
}

// RetryConfig is the serializable form of a retry.Policy, kept separate
// so application config files don't need to import src/retry's callback
// fields.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// ToPolicy builds the retry.Policy a QueryOptions.RetryPolicy field expects.
// A nil receiver (no Retry section configured) yields retry.NoRetry.
func (c *RetryConfig) ToPolicy() *retry.Policy {
	if c == nil {
		return retry.NoRetry()
	}
	return &retry.Policy{
		MaxAttempts:  c.MaxAttempts,
		BaseDelay:    c.BaseDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		JitterFactor: c.JitterFactor,
	}
}

// DialectConfig captures the name and render.Config (bind-marker
// convention) of one SQL family, the same shape src/urlresolver resolves
// from a connection URL. It carries no returning-clause setting.
type DialectConfig struct {
	Name   string
	Render render.Config
}

// Default returns a Config with the teacher's defaults translated to this
// module's scope: a 100-connection pool, full observability, info-level
// logging and the default retry policy.
func Default() *Config {
	return &Config{
		Pool: &PoolConfig{
			MaxConnections:      100,
			MaxIdleTime:         30 * time.Minute,
			ConnectionLifetime:  time.Hour,
			AcquisitionTimeout:  30 * time.Second,
			EnableLivenessCheck: true,
		},
		Observability: &ObservabilityConfig{EnableTracing: true, EnableMetrics: true},
		Logging:       &LoggingConfig{Level: logging.LevelInfo},
		Retry: &RetryConfig{
			MaxAttempts:  5,
			BaseDelay:    100 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 1.0,
		},
		Dialect: &DialectConfig{Name: "postgresql", Render: render.DefaultConfig()},
	}
}
