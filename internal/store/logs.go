package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/xtxerr/skylog/internal/errors"
)

// LogMeta is one row of the log registry.
type LogMeta struct {
	ID           int64
	Filename     string
	VehicleType  string
	MessageCount int64
	UploadedAt   time.Time
}

// CreateLog registers a new log and returns its ID. Every ingestion attempt
// gets a fresh log ID, which is what makes retrying a failed ingestion safe.
func (s *Store) CreateLog(ctx context.Context, filename, vehicleType string) (int64, error) {
	if s.isClosed() {
		return 0, errors.ErrClosed
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO logs (filename, vehicle_type) VALUES (?, ?) RETURNING id`,
		filename, vehicleType).Scan(&id)
	if err != nil {
		return 0, errors.NewDatabase("create log", err)
	}
	return id, nil
}

// GetLog fetches log metadata. Returns ErrLogNotFound for unknown IDs.
func (s *Store) GetLog(ctx context.Context, logID int64) (*LogMeta, error) {
	var (
		meta    LogMeta
		vehicle sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, vehicle_type, message_count, uploaded_at
		 FROM logs WHERE id = ?`, logID).
		Scan(&meta.ID, &meta.Filename, &vehicle, &meta.MessageCount, &meta.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrLogNotFound
	}
	if err != nil {
		return nil, errors.NewDatabase("get log", err)
	}
	meta.VehicleType = vehicle.String
	return &meta, nil
}

// ListLogs returns all registered logs, newest first.
func (s *Store) ListLogs(ctx context.Context) ([]LogMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, vehicle_type, message_count, uploaded_at
		 FROM logs ORDER BY uploaded_at DESC, id DESC`)
	if err != nil {
		return nil, errors.NewDatabase("list logs", err)
	}
	defer rows.Close()

	var logs []LogMeta
	for rows.Next() {
		var (
			meta    LogMeta
			vehicle sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Filename, &vehicle,
			&meta.MessageCount, &meta.UploadedAt); err != nil {
			return nil, errors.NewDatabase("scan log", err)
		}
		meta.VehicleType = vehicle.String
		logs = append(logs, meta)
	}
	return logs, rows.Err()
}

// SetMessageCountTx records the total decoded message count for a log
// within the ingestion transaction.
func SetMessageCountTx(tx *sql.Tx, logID int64, count int) error {
	_, err := tx.Exec(`UPDATE logs SET message_count = ? WHERE id = ?`, count, logID)
	return err
}

// DeleteLog removes a log and every dependent row set in one transaction:
// stored records, phases, statistics, summaries, and sessions all share the
// log's lifetime. Returns ErrLogNotFound if the log does not exist.
func (s *Store) DeleteLog(ctx context.Context, logID int64) error {
	return s.TransactionContext(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT count(*) FROM logs WHERE id = ?`, logID).Scan(&exists)
		if err != nil {
			return errors.NewDatabase("delete log", err)
		}
		if exists == 0 {
			return errors.ErrLogNotFound
		}

		for _, stmt := range []string{
			`DELETE FROM telemetry WHERE log_id = ?`,
			`DELETE FROM flight_statistics WHERE log_id = ?`,
			`DELETE FROM flight_phases WHERE log_id = ?`,
			`DELETE FROM message_summaries WHERE log_id = ?`,
			`DELETE FROM sessions WHERE log_id = ?`,
			`DELETE FROM logs WHERE id = ?`,
		} {
			if _, err := tx.Exec(stmt, logID); err != nil {
				return errors.NewDatabase("delete log", err)
			}
		}
		return nil
	})
}
