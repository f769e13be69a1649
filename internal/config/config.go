// Package config provides the skylog configuration: storage paths, the
// tiering taxonomy, query bounds, archive and summary settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	// DataDir is the root directory for all storage files.
	DataDir string `yaml:"data_dir"`

	// Database configures the DuckDB store.
	Database DatabaseConfig `yaml:"database"`

	// Tiering defines the storage taxonomy applied during classification.
	Tiering TieringConfig `yaml:"tiering"`

	// Query configures the query engine bounds.
	Query QueryConfig `yaml:"query"`

	// Archive configures the full-resolution parquet archive.
	Archive ArchiveConfig `yaml:"archive"`

	// Summary configures the digest builder.
	Summary SummaryConfig `yaml:"summary"`

	// Percentile configures DDSketch percentile statistics.
	Percentile PercentileConfig `yaml:"percentile"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file path. Empty means in-memory.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// StatementTimeout bounds any single ingestion transaction or query so
	// a pathological log cannot starve other logs sharing the pool.
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// TieringConfig defines the storage taxonomy.
type TieringConfig struct {
	// Critical lists message types whose every instance is retained.
	Critical []string `yaml:"critical"`

	// HighFrequency maps message types to their sampling rule.
	HighFrequency map[string]HighFrequencyRule `yaml:"high_frequency"`

	// RareThreshold is the count below which an unconfigured type is
	// retained in full.
	RareThreshold int `yaml:"rare_threshold"`

	// BulkTarget is the approximate sample count kept for unconfigured
	// high-volume types.
	BulkTarget int `yaml:"bulk_target"`
}

// HighFrequencyRule is the sampling rule for one high-frequency type.
type HighFrequencyRule struct {
	// Target is the approximate number of samples to retain.
	Target int `yaml:"target"`

	// KeyFields names the fields of analytical interest for this type.
	KeyFields []string `yaml:"key_fields"`
}

// QueryConfig configures the query engine.
type QueryConfig struct {
	// MaxLimit caps the limit of any query.
	MaxLimit int `yaml:"max_limit"`

	// CriticalLimit is the default limit for critical-event queries.
	CriticalLimit int `yaml:"critical_limit"`

	// TypeLimit is the default limit for by-type queries.
	TypeLimit int `yaml:"type_limit"`

	// PhaseLimit is the default limit for by-phase queries.
	PhaseLimit int `yaml:"phase_limit"`

	// RecentLimit is the default limit for the recent-records query.
	RecentLimit int `yaml:"recent_limit"`
}

// ArchiveConfig configures the full-resolution parquet archive.
type ArchiveConfig struct {
	// Enabled enables writing one parquet file per ingested log.
	Enabled bool `yaml:"enabled"`

	// Compression is the parquet compression algorithm: snappy, zstd, lz4,
	// gzip, none.
	Compression string `yaml:"compression"`
}

// SummaryConfig configures the digest builder.
type SummaryConfig struct {
	// TopTypes is how many message types the digest query fetches.
	TopTypes int `yaml:"top_types"`

	// RankedTypes is how many of those the digest renders.
	RankedTypes int `yaml:"ranked_types"`
}

// PercentileConfig configures DDSketch percentile statistics.
type PercentileConfig struct {
	// Enabled enables p95 altitude/speed statistics.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON selects JSON output instead of text.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults. The tiering
// taxonomy defaults cover the common MAVLink-style message set.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "/var/lib/skylog",
		Database: DatabaseConfig{
			MaxOpenConns:     25,
			MaxIdleConns:     5,
			ConnMaxLifetime:  5 * time.Minute,
			StatementTimeout: 30 * time.Second,
		},
		Tiering: TieringConfig{
			Critical: []string{
				"MODE", "HEARTBEAT", "ARM", "DISARM", "TAKEOFF", "LAND",
				"STATUSTEXT", "ERROR", "CRITICAL", "ALERT", "EMERGENCY",
				"GPS_FIX_TYPE", "EKF_STATUS_REPORT", "VIBRATION", "POWER_STATUS",
			},
			HighFrequency: map[string]HighFrequencyRule{
				"ATTITUDE":            {Target: 10, KeyFields: []string{"roll", "pitch", "yaw"}},
				"GLOBAL_POSITION_INT": {Target: 5, KeyFields: []string{"lat", "lon", "alt", "relative_alt"}},
				"LOCAL_POSITION_NED":  {Target: 10, KeyFields: []string{"x", "y", "z"}},
				"VFR_HUD":             {Target: 5, KeyFields: []string{"airspeed", "groundspeed", "alt", "throttle"}},
				"RAW_IMU":             {Target: 20, KeyFields: []string{"xacc", "yacc", "zacc"}},
				"SERVO_OUTPUT_RAW":    {Target: 10, KeyFields: []string{"servo1_raw", "servo2_raw", "servo3_raw", "servo4_raw"}},
			},
			RareThreshold: 100,
			BulkTarget:    50,
		},
		Query: QueryConfig{
			MaxLimit:      1000,
			CriticalLimit: 50,
			TypeLimit:     100,
			PhaseLimit:    100,
			RecentLimit:   20,
		},
		Archive: ArchiveConfig{
			Enabled:     true,
			Compression: "zstd",
		},
		Summary: SummaryConfig{
			TopTypes:    15,
			RankedTypes: 8,
		},
		Percentile: PercentileConfig{
			Enabled:  true,
			Accuracy: 0.01,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DatabasePath returns the database file path under DataDir when no
// explicit path is configured.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	if c.DataDir == "" {
		return ""
	}
	return c.DataDir + "/skylog.db"
}

// ArchiveDir returns the directory for parquet archives.
func (c *Config) ArchiveDir() string {
	return c.DataDir + "/archive"
}
