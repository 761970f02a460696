// Package config loads and validates generator configuration via Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config captures all generator configuration knobs loaded via Viper.
type Config struct {
	AppIDsFile string         `mapstructure:"appids_file"`
	AppIDs     []int          `mapstructure:"appids"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	Output     OutputConfig   `mapstructure:"output"`
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
	API        APIConfig      `mapstructure:"api"`
	Browser    BrowserConfig  `mapstructure:"browser"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// OutputConfig sets where the chunked HTML pages land.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

// PipelineConfig governs run execution.
type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	ChunkSize   int `mapstructure:"chunk_size"`
	MaxJitterMs int `mapstructure:"max_jitter_ms"`
}

// APIConfig controls the storefront API client and its quota.
type APIConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	RateMaxCalls     int    `mapstructure:"rate_max_calls"`
	RatePeriodSec    int    `mapstructure:"rate_period_seconds"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// BrowserConfig configures the trailer capture subsystem.
type BrowserConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	MaxParallel     int     `mapstructure:"max_parallel"`
	NavTimeoutSec   int     `mapstructure:"nav_timeout_seconds"`
	ManifestWaitSec int     `mapstructure:"manifest_wait_seconds"`
	HostQPS         float64 `mapstructure:"host_qps"`
	UserAgent       string  `mapstructure:"user_agent"`
}

// Load builds a Config from the supplied Viper instance.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits. The API quota is
// checked here so an invalid limiter configuration fails before any work
// starts.
func (c Config) Validate() error {
	if c.API.RateMaxCalls <= 0 {
		return fmt.Errorf("api.rate_max_calls must be > 0")
	}
	if c.API.RatePeriodSec <= 0 {
		return fmt.Errorf("api.rate_period_seconds must be > 0")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk_size must be > 0")
	}
	if c.Output.Prefix == "" {
		return fmt.Errorf("output.prefix must be set")
	}
	if c.Browser.Enabled && c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0 when browser capture is enabled")
	}
	return nil
}

// RatePeriod returns the sliding-window length.
func (c APIConfig) RatePeriod() time.Duration {
	return time.Duration(c.RatePeriodSec) * time.Second
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry delay.
func (c APIConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c APIConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// NavTimeout returns the store page navigation budget.
func (c BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// ManifestWait returns how long to wait for an intercepted manifest after
// clicking play.
func (c BrowserConfig) ManifestWait() time.Duration {
	return time.Duration(c.ManifestWaitSec) * time.Second
}

// MaxJitter returns the per-app random start delay.
func (c PipelineConfig) MaxJitter() time.Duration {
	return time.Duration(c.MaxJitterMs) * time.Millisecond
}
