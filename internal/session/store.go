package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/elitedev/sdr-agent/internal/observability"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_transcripts (
	id SERIAL PRIMARY KEY,
	session_id VARCHAR(255) NOT NULL,
	role VARCHAR(16) NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transcripts_session
	ON conversation_transcripts(session_id, created_at);
`

// Turn is one stored transcript entry.
type Turn struct {
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists conversation transcripts in Postgres. It is optional
// infrastructure: turn handling never depends on a write succeeding.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open connects to Postgres and ensures the transcript schema exists.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure transcript schema: %w", err)
	}

	return &Store{db: db, logger: observability.GetLogger()}, nil
}

// RecordTurn appends one transcript entry. Failures are logged and
// swallowed so a broken store never fails a conversation turn.
func (s *Store) RecordTurn(ctx context.Context, sessionID, role, message string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_transcripts (session_id, role, message)
		VALUES ($1, $2, $3)
	`, sessionID, role, message)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).
			Msg("Failed to record transcript turn")
	}
}

// RecentTurns loads the most recent transcript entries for a session, in
// chronological order.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, message, created_at
		FROM (
			SELECT role, message, created_at
			FROM conversation_transcripts
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Message, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Ping reports store health, for the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
