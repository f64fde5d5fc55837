package preflight

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"siren/internal/config"
	"siren/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := localChecks(cfg)
	results = append(results, CheckAPI(ctx, cfg))
	return results
}

// Guard runs the filesystem checks a download needs and returns an error
// describing every failure.
func Guard(cfg *config.Config) error {
	if cfg == nil {
		return services.Wrap(services.ErrConfiguration, "preflight", "guard", "configuration not loaded", nil)
	}
	var failed []string
	for _, r := range localChecks(cfg) {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "guard", strings.Join(failed, "; "), nil)
}

func localChecks(cfg *config.Config) []Result {
	results := []Result{
		CheckDirectoryAccess("Download directory", cfg.Download.Dir),
	}
	if cacheDir := filepath.Dir(cfg.Cache.Path); cacheDir != cfg.Download.Dir {
		results = append(results, CheckDirectoryAccess("Cache directory", cacheDir))
	}
	if cfg.Logging.Dir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Logging.Dir))
	}
	if minFree := cfg.MinFreeBytes(); minFree > 0 {
		results = append(results, CheckFreeSpace("Free space", cfg.Download.Dir, minFree))
	}
	return results
}
