package config

import (
	"fmt"

	"github.com/xtxerr/skylog/internal/errors"
)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Tiering.RareThreshold < 1 {
		return errors.NewValidation("tiering.rare_threshold", "must be at least 1")
	}
	if c.Tiering.BulkTarget < 1 {
		return errors.NewValidation("tiering.bulk_target", "must be at least 1")
	}

	for name, rule := range c.Tiering.HighFrequency {
		if rule.Target < 1 {
			return errors.NewValidation(
				fmt.Sprintf("tiering.high_frequency.%s.target", name),
				"must be at least 1")
		}
	}

	if c.Query.MaxLimit < 1 {
		return errors.NewValidation("query.max_limit", "must be at least 1")
	}
	for field, v := range map[string]int{
		"query.critical_limit": c.Query.CriticalLimit,
		"query.type_limit":     c.Query.TypeLimit,
		"query.phase_limit":    c.Query.PhaseLimit,
		"query.recent_limit":   c.Query.RecentLimit,
	} {
		if v < 1 {
			return errors.NewValidation(field, "must be at least 1")
		}
		if v > c.Query.MaxLimit {
			return errors.NewValidation(field, "must not exceed query.max_limit")
		}
	}

	switch c.Archive.Compression {
	case "", "none", "snappy", "zstd", "lz4", "gzip":
	default:
		return errors.NewValidation("archive.compression",
			"must be one of none, snappy, zstd, lz4, gzip")
	}

	if c.Percentile.Enabled {
		if c.Percentile.Accuracy <= 0 || c.Percentile.Accuracy >= 1 {
			return errors.NewValidation("percentile.accuracy", "must be in (0, 1)")
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.NewValidation("logging.level",
			"must be one of debug, info, warn, error")
	}

	return nil
}
