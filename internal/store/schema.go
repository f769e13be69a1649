package store

import (
	"database/sql"
	"fmt"
)

// =============================================================================
// Schema
// =============================================================================

// createSchema creates all tables, sequences, and indexes.
//
// This is idempotent - safe to run multiple times. All dependent row sets
// are keyed by log_id and indexed for (log_id, message_type, timestamp)
// range scans and (log_id, tier) scans. Phase tags are stored as a JSON
// array so tag membership can be tested with a substring match on the
// quoted tag.
func createSchema(db *sql.DB) error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "seq_logs",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_logs START 1`,
		},
		{
			name: "seq_telemetry",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_telemetry START 1`,
		},
		{
			name: "seq_statistics",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_statistics START 1`,
		},
		{
			name: "seq_phases",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_phases START 1`,
		},
		{
			name: "seq_summaries",
			sql:  `CREATE SEQUENCE IF NOT EXISTS seq_summaries START 1`,
		},

		{
			name: "logs",
			sql: `CREATE TABLE IF NOT EXISTS logs (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_logs'),
				filename VARCHAR NOT NULL,
				vehicle_type VARCHAR,
				message_count BIGINT NOT NULL DEFAULT 0,
				uploaded_at TIMESTAMP NOT NULL DEFAULT current_timestamp
			)`,
		},
		{
			name: "telemetry",
			sql: `CREATE TABLE IF NOT EXISTS telemetry (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_telemetry'),
				log_id BIGINT NOT NULL,
				message_type VARCHAR NOT NULL,
				timestamp DOUBLE NOT NULL,
				fields VARCHAR NOT NULL,
				tier VARCHAR NOT NULL,
				original_index BIGINT NOT NULL,
				phase_tags VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
			)`,
		},
		{
			name: "flight_statistics",
			sql: `CREATE TABLE IF NOT EXISTS flight_statistics (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_statistics'),
				log_id BIGINT NOT NULL,
				statistic_type VARCHAR NOT NULL,
				value DOUBLE NOT NULL,
				unit VARCHAR,
				created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
			)`,
		},
		{
			name: "flight_phases",
			sql: `CREATE TABLE IF NOT EXISTS flight_phases (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_phases'),
				log_id BIGINT NOT NULL,
				phase_name VARCHAR NOT NULL,
				start_time DOUBLE NOT NULL,
				end_time DOUBLE NOT NULL,
				key_events VARCHAR NOT NULL DEFAULT '[]',
				record_count BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
			)`,
		},
		{
			name: "message_summaries",
			sql: `CREATE TABLE IF NOT EXISTS message_summaries (
				id BIGINT PRIMARY KEY DEFAULT nextval('seq_summaries'),
				log_id BIGINT NOT NULL,
				message_type VARCHAR NOT NULL,
				total_count BIGINT NOT NULL,
				stored_count BIGINT NOT NULL,
				sample_rate DOUBLE NOT NULL,
				time_range_start DOUBLE NOT NULL,
				time_range_end DOUBLE NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
			)`,
		},
		{
			name: "sessions",
			sql: `CREATE TABLE IF NOT EXISTS sessions (
				session_id VARCHAR PRIMARY KEY,
				log_id BIGINT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
				last_active TIMESTAMP NOT NULL DEFAULT current_timestamp
			)`,
		},

		{
			name: "idx_telemetry_log_type_time",
			sql:  `CREATE INDEX IF NOT EXISTS idx_telemetry_log_type_time ON telemetry(log_id, message_type, timestamp)`,
		},
		{
			name: "idx_telemetry_log_tier",
			sql:  `CREATE INDEX IF NOT EXISTS idx_telemetry_log_tier ON telemetry(log_id, tier)`,
		},
		{
			name: "idx_telemetry_log_time",
			sql:  `CREATE INDEX IF NOT EXISTS idx_telemetry_log_time ON telemetry(log_id, timestamp)`,
		},
		{
			name: "idx_statistics_log",
			sql:  `CREATE INDEX IF NOT EXISTS idx_statistics_log ON flight_statistics(log_id, statistic_type)`,
		},
		{
			name: "idx_phases_log",
			sql:  `CREATE INDEX IF NOT EXISTS idx_phases_log ON flight_phases(log_id, start_time)`,
		},
		{
			name: "idx_summaries_log",
			sql:  `CREATE INDEX IF NOT EXISTS idx_summaries_log ON message_summaries(log_id, total_count)`,
		},
		{
			name: "idx_sessions_log",
			sql:  `CREATE INDEX IF NOT EXISTS idx_sessions_log ON sessions(log_id)`,
		},
	}

	for _, m := range migrations {
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}

	return nil
}
