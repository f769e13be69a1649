package store

import (
	"context"
	"database/sql"

	json "github.com/goccy/go-json"

	"github.com/xtxerr/skylog/internal/errors"
	"github.com/xtxerr/skylog/internal/phase"
)

// PhaseRow is one persisted flight phase. Phases of a log are contiguous,
// non-overlapping, and ordered by start time.
type PhaseRow struct {
	Name        string
	StartTime   float64
	EndTime     float64
	KeyEvents   []phase.Event
	RecordCount int64
}

// Duration returns the phase length in seconds.
func (p PhaseRow) Duration() float64 {
	return p.EndTime - p.StartTime
}

// InsertPhasesTx persists the phase list within the ingestion transaction.
func InsertPhasesTx(tx *sql.Tx, logID int64, phases []phase.Phase) error {
	for _, ph := range phases {
		events, err := json.Marshal(ph.KeyEvents)
		if err != nil {
			events = []byte("[]")
		}
		_, err = tx.Exec(
			`INSERT INTO flight_phases
			 (log_id, phase_name, start_time, end_time, key_events, record_count)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			logID, ph.Name, ph.StartTime, ph.EndTime, string(events), ph.RecordCount)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListPhases returns the phases of a log ordered by start time. An unknown
// log yields an empty slice.
func (s *Store) ListPhases(ctx context.Context, logID int64) ([]PhaseRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase_name, start_time, end_time, key_events, record_count
		 FROM flight_phases WHERE log_id = ? ORDER BY start_time`, logID)
	if err != nil {
		return nil, errors.NewDatabase("list phases", err)
	}
	defer rows.Close()

	var phases []PhaseRow
	for rows.Next() {
		var (
			ph        PhaseRow
			eventsRaw string
		)
		if err := rows.Scan(&ph.Name, &ph.StartTime, &ph.EndTime,
			&eventsRaw, &ph.RecordCount); err != nil {
			return nil, errors.NewDatabase("scan phase", err)
		}
		if eventsRaw != "" && eventsRaw != "[]" {
			_ = json.Unmarshal([]byte(eventsRaw), &ph.KeyEvents)
		}
		phases = append(phases, ph)
	}
	return phases, rows.Err()
}
