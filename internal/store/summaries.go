package store

import (
	"context"
	"database/sql"

	"github.com/xtxerr/skylog/internal/errors"
)

// SummaryRow is one persisted per-type message summary. StoredCount never
// exceeds TotalCount; they are equal exactly for fully retained tiers.
type SummaryRow struct {
	MessageType    string
	TotalCount     int64
	StoredCount    int64
	SampleRate     float64
	TimeRangeStart float64
	TimeRangeEnd   float64
}

// InsertSummariesTx persists message summaries within the ingestion
// transaction.
func InsertSummariesTx(tx *sql.Tx, logID int64, summaries []SummaryRow) error {
	for _, sm := range summaries {
		_, err := tx.Exec(
			`INSERT INTO message_summaries
			 (log_id, message_type, total_count, stored_count, sample_rate,
			  time_range_start, time_range_end)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			logID, sm.MessageType, sm.TotalCount, sm.StoredCount, sm.SampleRate,
			sm.TimeRangeStart, sm.TimeRangeEnd)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListTopSummaries returns up to limit message summaries for a log, ranked
// by total count descending. An unknown log yields an empty slice.
func (s *Store) ListTopSummaries(ctx context.Context, logID int64, limit int) ([]SummaryRow, error) {
	if limit <= 0 {
		limit = 15
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT message_type, total_count, stored_count, sample_rate,
		        time_range_start, time_range_end
		 FROM message_summaries WHERE log_id = ?
		 ORDER BY total_count DESC, message_type LIMIT ?`, logID, limit)
	if err != nil {
		return nil, errors.NewDatabase("list summaries", err)
	}
	defer rows.Close()

	var summaries []SummaryRow
	for rows.Next() {
		var sm SummaryRow
		if err := rows.Scan(&sm.MessageType, &sm.TotalCount, &sm.StoredCount,
			&sm.SampleRate, &sm.TimeRangeStart, &sm.TimeRangeEnd); err != nil {
			return nil, errors.NewDatabase("scan summary", err)
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}
