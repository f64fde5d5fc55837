package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envAPIEndpoint = "SIREN_API_ENDPOINT"
	envDownloadDir = "SIREN_DOWNLOAD_DIR"
	envLogLevel    = "SIREN_LOG_LEVEL"
)

func (c *Config) normalize() error {
	c.applyEnv()
	c.normalizeAPI()
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizePlayer()
	return c.normalizeLogging()
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(envAPIEndpoint); ok && strings.TrimSpace(value) != "" {
		c.API.Endpoint = value
	}
	if value, ok := os.LookupEnv(envDownloadDir); ok && strings.TrimSpace(value) != "" {
		c.Download.Dir = value
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
}

func (c *Config) normalizeAPI() {
	c.API.Endpoint = strings.TrimSpace(c.API.Endpoint)
	if c.API.Endpoint == "" {
		c.API.Endpoint = DefaultAPIEndpoint
	}
	// Relative references resolve against the endpoint, so it must end in a slash.
	if !strings.HasSuffix(c.API.Endpoint, "/") {
		c.API.Endpoint += "/"
	}
	c.API.UserAgent = strings.TrimSpace(c.API.UserAgent)
	if c.API.UserAgent == "" {
		c.API.UserAgent = defaultUserAgent
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizeDownload() error {
	if strings.TrimSpace(c.Download.Dir) == "" {
		c.Download.Dir = defaultDownloadDir()
	}
	var err error
	if c.Download.Dir, err = expandPath(strings.TrimSpace(c.Download.Dir)); err != nil {
		return fmt.Errorf("download.dir: %w", err)
	}
	if c.Download.Concurrency == 0 {
		c.Download.Concurrency = defaultConcurrency
	}
	if c.Download.BatchSize == 0 {
		c.Download.BatchSize = defaultBatchSize
	}
	return nil
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendJSON
	}
	c.Cache.Path = strings.TrimSpace(c.Cache.Path)
	if c.Cache.Path == "" {
		name := jsonCacheFile
		if c.Cache.Backend == CacheBackendSQLite {
			name = sqliteCacheFile
		}
		c.Cache.Path = filepath.Join(c.Download.Dir, name)
		return nil
	}
	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizePlayer() {
	c.Player.Binary = strings.TrimSpace(c.Player.Binary)
	if c.Player.Binary == "" {
		c.Player.Binary = defaultPlayerBinary
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	if dir := strings.TrimSpace(c.Logging.Dir); dir != "" {
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
		c.Logging.Dir = expanded
	}
	return nil
}
