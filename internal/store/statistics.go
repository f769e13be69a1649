package store

import (
	"context"
	"database/sql"

	"github.com/xtxerr/skylog/internal/errors"
)

// StatisticRow is one persisted flight statistic: one row per
// (log, statistic type), computed at most once per ingestion.
type StatisticRow struct {
	Type  string
	Value float64
	Unit  string
}

// InsertStatisticsTx persists flight statistics within the ingestion
// transaction.
func InsertStatisticsTx(tx *sql.Tx, logID int64, stats []StatisticRow) error {
	for _, st := range stats {
		_, err := tx.Exec(
			`INSERT INTO flight_statistics (log_id, statistic_type, value, unit)
			 VALUES (?, ?, ?, ?)`,
			logID, st.Type, st.Value, st.Unit)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListStatistics returns the statistics for a log ordered by type. An
// unknown log yields an empty slice.
func (s *Store) ListStatistics(ctx context.Context, logID int64) ([]StatisticRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT statistic_type, value, unit FROM flight_statistics
		 WHERE log_id = ? ORDER BY statistic_type`, logID)
	if err != nil {
		return nil, errors.NewDatabase("list statistics", err)
	}
	defer rows.Close()

	var stats []StatisticRow
	for rows.Next() {
		var (
			st   StatisticRow
			unit sql.NullString
		)
		if err := rows.Scan(&st.Type, &st.Value, &unit); err != nil {
			return nil, errors.NewDatabase("scan statistic", err)
		}
		st.Unit = unit.String
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
