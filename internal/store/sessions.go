package store

import (
	"context"
	"database/sql"

	"github.com/xtxerr/skylog/internal/errors"
)

// CreateSession links a session ID to a log so queries can be addressed by
// session instead of log ID.
func (s *Store) CreateSession(ctx context.Context, sessionID string, logID int64) error {
	if s.isClosed() {
		return errors.ErrClosed
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, log_id) VALUES (?, ?)`,
		sessionID, logID)
	if err != nil {
		return errors.NewDatabase("create session", err)
	}
	return nil
}

// ResolveSession returns the log ID linked to a session.
// Returns ErrSessionNotFound for unknown sessions.
func (s *Store) ResolveSession(ctx context.Context, sessionID string) (int64, error) {
	var logID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT log_id FROM sessions WHERE session_id = ?`, sessionID).Scan(&logID)
	if err == sql.ErrNoRows {
		return 0, errors.ErrSessionNotFound
	}
	if err != nil {
		return 0, errors.NewDatabase("resolve session", err)
	}
	return logID, nil
}

// TouchSession updates the session's last-active timestamp.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_active = current_timestamp WHERE session_id = ?`,
		sessionID)
	if err != nil {
		return errors.NewDatabase("touch session", err)
	}
	return nil
}

// DeleteSession removes one session link.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return errors.NewDatabase("delete session", err)
	}
	return nil
}
