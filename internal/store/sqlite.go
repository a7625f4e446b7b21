// ABOUTME: SQLite-backed Store implementation using modernc.org/sqlite
// ABOUTME: Handles schema creation, state persistence and the audit trail

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createSchema = `
CREATE TABLE IF NOT EXISTS user_states (
	user_id TEXT PRIMARY KEY,
	step TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT '{}',
	mode TEXT NOT NULL DEFAULT 'bot',
	attendant TEXT NOT NULL DEFAULT '',
	last_interaction TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	conversation TEXT NOT NULL,
	attendant TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_states_last_interaction ON user_states(last_interaction);
`

// SQLiteStore implements Store backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists. A nil logger falls back to slog.Default.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps readers unblocked while the bot pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(createSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.With("component", "store")}, nil
}

func (s *SQLiteStore) LoadState(ctx context.Context, userID, startStep string) (*ConversationState, error) {
	var (
		st      ConversationState
		rawData string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT step, data, mode, attendant, last_interaction FROM user_states WHERE user_id = ?`,
		userID,
	).Scan(&st.Step, &rawData, &st.Mode, &st.Attendant, &st.LastInteraction)
	if errors.Is(err, sql.ErrNoRows) {
		return Fresh(startStep), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading state for %s: %w", userID, err)
	}

	if err := json.Unmarshal([]byte(rawData), &st.Data); err != nil {
		// A corrupt row must not strand the conversation; restart it.
		s.logger.Warn("state data corrupt, starting fresh", "user", userID, "error", err)
		return Fresh(startStep), nil
	}
	return &st, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, userID string, state *ConversationState) error {
	rawData, err := json.Marshal(state.Data)
	if err != nil {
		return fmt.Errorf("encoding state data: %w", err)
	}

	mode := state.Mode
	if mode == "" {
		mode = ModeBot
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_states (user_id, step, data, mode, attendant, last_interaction)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			step = excluded.step,
			data = excluded.data,
			mode = excluded.mode,
			attendant = excluded.attendant,
			last_interaction = excluded.last_interaction`,
		userID, state.Step, string(rawData), mode, state.Attendant, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving state for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) TouchState(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_states SET last_interaction = ? WHERE user_id = ?`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("touching state for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) ListStates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM user_states`)
	if err != nil {
		return nil, fmt.Errorf("listing states: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning state row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) ResetState(ctx context.Context, userID, startStep string) error {
	return s.SaveState(ctx, userID, Fresh(startStep))
}

func (s *SQLiteStore) DeleteState(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_states WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting state for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, conversation, attendant, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Action), entry.Conversation, entry.Attendant, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, conversation, attendant, timestamp FROM audit_log ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Conversation, &e.Attendant, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
