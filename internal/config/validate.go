package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	u, err := url.Parse(c.API.Endpoint)
	if err != nil {
		return fmt.Errorf("api.endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.endpoint must be an absolute http(s) URL, got %q", c.API.Endpoint)
	}
	if c.API.TimeoutSeconds < 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be zero or positive")
	}
	if c.API.RetryDelayMS < 0 {
		return errors.New("api.retry_delay_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.Dir == "" {
		return errors.New("download.dir must be set")
	}
	if c.Download.Concurrency < 1 {
		return errors.New("download.concurrency must be at least 1")
	}
	if c.Download.BatchSize < 1 {
		return errors.New("download.batch_size must be at least 1")
	}
	if c.Download.MinFreeMiB < 0 {
		return errors.New("download.min_free_mib must be zero or positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendJSON, CacheBackendSQLite:
		return nil
	default:
		return fmt.Errorf("cache.backend: unsupported value %q (want %q or %q)", c.Cache.Backend, CacheBackendJSON, CacheBackendSQLite)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMiB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation limits must be zero or positive")
	}
	return nil
}
