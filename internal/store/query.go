package store

import (
	"context"

	"github.com/xtxerr/skylog/internal/errors"
	"github.com/xtxerr/skylog/internal/telemetry"
)

// QueryType selects one of the bounded access patterns over stored records.
type QueryType string

const (
	// QueryCriticalEvents returns critical-tier rows, newest first.
	QueryCriticalEvents QueryType = "critical_events"

	// QueryByType returns rows of one message type, newest first.
	QueryByType QueryType = "message_type"

	// QueryByPhase returns rows carrying a phase tag, newest first.
	QueryByPhase QueryType = "phase"

	// QueryRecent returns the most recent rows regardless of tier or type.
	QueryRecent QueryType = "recent"
)

// ParseQueryType parses a query type name.
func ParseQueryType(s string) (QueryType, error) {
	switch s {
	case "critical_events", "critical":
		return QueryCriticalEvents, nil
	case "message_type", "type":
		return QueryByType, nil
	case "phase":
		return QueryByPhase, nil
	case "recent", "default", "":
		return QueryRecent, nil
	default:
		return QueryRecent, errors.Wrapf(errors.ErrInvalidQuery, "unknown query type %q", s)
	}
}

// QueryParams holds the parameters of a record query.
type QueryParams struct {
	// MessageType filters by exact type (QueryByType only).
	MessageType string

	// PhaseTag filters by phase-tag membership (QueryByPhase only).
	PhaseTag string

	// Limit bounds the result. Zero means the store default for the shape.
	Limit int
}

// QueryLimits bounds the four query shapes: per-shape defaults applied when
// the caller passes no limit, and the cap applied to every query. Zero
// fields take the package defaults when the store opens.
type QueryLimits struct {
	Max      int
	Critical int
	Type     int
	Phase    int
	Recent   int
}

// DefaultQueryLimits returns the package default limits.
func DefaultQueryLimits() QueryLimits {
	return QueryLimits{
		Max:      1000,
		Critical: 50,
		Type:     100,
		Phase:    100,
		Recent:   20,
	}
}

// withDefaults fills unset fields so a zero-value Config stays usable.
func (l QueryLimits) withDefaults() QueryLimits {
	d := DefaultQueryLimits()
	if l.Max < 1 {
		l.Max = d.Max
	}
	if l.Critical < 1 {
		l.Critical = d.Critical
	}
	if l.Type < 1 {
		l.Type = d.Type
	}
	if l.Phase < 1 {
		l.Phase = d.Phase
	}
	if l.Recent < 1 {
		l.Recent = d.Recent
	}
	return l
}

const recordColumns = `id, log_id, message_type, timestamp, fields, tier, original_index, phase_tags`

// QueryRecords serves one of the four bounded access patterns. An unknown
// log ID, or a log with no matching rows, returns an empty slice and no
// error: empty and absent are indistinguishable by design.
func (s *Store) QueryRecords(ctx context.Context, logID int64, qt QueryType, p QueryParams) ([]StoredRecord, error) {
	if s.isClosed() {
		return nil, errors.ErrClosed
	}

	limits := s.config.Limits

	var (
		query string
		args  []interface{}
	)

	switch qt {
	case QueryCriticalEvents:
		query = `SELECT ` + recordColumns + `
			FROM telemetry
			WHERE log_id = ? AND tier = ?
			ORDER BY timestamp DESC LIMIT ?`
		args = []interface{}{logID, telemetry.TierCritical.String(),
			clampLimit(p.Limit, limits.Critical, limits.Max)}

	case QueryByType:
		if p.MessageType == "" {
			return nil, errors.Wrap(errors.ErrInvalidQuery, "message type required")
		}
		query = `SELECT ` + recordColumns + `
			FROM telemetry
			WHERE log_id = ? AND message_type = ?
			ORDER BY timestamp DESC LIMIT ?`
		args = []interface{}{logID, p.MessageType,
			clampLimit(p.Limit, limits.Type, limits.Max)}

	case QueryByPhase:
		if p.PhaseTag == "" {
			return nil, errors.Wrap(errors.ErrInvalidQuery, "phase tag required")
		}
		// phase_tags is a JSON array; membership is a substring match on
		// the quoted tag.
		query = `SELECT ` + recordColumns + `
			FROM telemetry
			WHERE log_id = ? AND contains(phase_tags, ?)
			ORDER BY timestamp DESC LIMIT ?`
		args = []interface{}{logID, `"` + p.PhaseTag + `"`,
			clampLimit(p.Limit, limits.Phase, limits.Max)}

	case QueryRecent:
		query = `SELECT ` + recordColumns + `
			FROM telemetry
			WHERE log_id = ?
			ORDER BY timestamp DESC LIMIT ?`
		args = []interface{}{logID, clampLimit(p.Limit, limits.Recent, limits.Max)}

	default:
		return nil, errors.Wrapf(errors.ErrInvalidQuery, "unknown query type %q", string(qt))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDatabase("query records", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// CountRecords returns the number of stored rows for a log, optionally
// restricted to one tier.
func (s *Store) CountRecords(ctx context.Context, logID int64, tier *telemetry.Tier) (int64, error) {
	var (
		count int64
		err   error
	)
	if tier != nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM telemetry WHERE log_id = ? AND tier = ?`,
			logID, tier.String()).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM telemetry WHERE log_id = ?`, logID).Scan(&count)
	}
	if err != nil {
		return 0, errors.NewDatabase("count records", err)
	}
	return count, nil
}

// clampLimit applies the per-shape default and the configured cap.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
