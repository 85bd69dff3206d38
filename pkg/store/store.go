package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fika-labs/agentrelay/internal/observability"
	"github.com/fika-labs/agentrelay/internal/tracing"
	"github.com/fika-labs/agentrelay/pkg/session"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// timeLayout keeps stored timestamps lexicographically sortable
const timeLayout = time.RFC3339Nano

// Session is one durable session row
type Session struct {
	ID                 string    `json:"id"`
	Model              string    `json:"model"`
	ToolVersion        string    `json:"tool_version"`
	SystemPromptSuffix string    `json:"system_prompt_suffix"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Store persists sessions and their message logs in SQLite
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds store configuration
type Config struct {
	DBPath string
	Logger zerolog.Logger
}

// New opens (creating if necessary) the session database
func New(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	// Must be set before the first table is created to take effect
	if _, err := db.Exec("PRAGMA auto_vacuum=INCREMENTAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set auto_vacuum: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.DBPath).Msg("Session store initialized")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			tool_version TEXT NOT NULL DEFAULT '',
			system_prompt_suffix TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session_created
			ON messages(session_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession inserts a new session row. Timestamps are assigned
// here if the caller left them zero.
func (s *Store) CreateSession(ctx context.Context, sess Session) (Session, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"agentrelay.store",
		"store.create_session",
		attribute.String("session_id", sess.ID),
	)
	defer span.End()

	if sess.ID == "" {
		return Session{}, errors.New("session id is required")
	}
	if sess.Model == "" {
		return Session{}, errors.New("model is required")
	}

	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, model, tool_version, system_prompt_suffix, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.Model, sess.ToolVersion, sess.SystemPromptSuffix,
		sess.CreatedAt.Format(timeLayout), sess.UpdatedAt.Format(timeLayout))
	observability.RecordStoreWrite(time.Since(start))

	if err != nil {
		observability.RecordStoreError("create_session")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Session{}, fmt.Errorf("failed to insert session: %w", err)
	}

	observability.RecordSessionCreated()
	log := tracing.LoggerFromContext(ctx, s.logger)
	log.Info().
		Str("session_id", sess.ID).
		Str("model", sess.Model).
		Msg("Session created")
	return sess, nil
}

// GetSession returns the session row for id
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, tool_version, system_prompt_suffix, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	sess, err := scanSession(row)
	observability.RecordStoreRead(time.Since(start))

	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, session.ErrNotFound)
	}
	if err != nil {
		observability.RecordStoreError("get_session")
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, most recently updated first
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, tool_version, system_prompt_suffix, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC
	`)
	observability.RecordStoreRead(time.Since(start))
	if err != nil {
		observability.RecordStoreError("list_sessions")
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// UpsertMessage writes one message and bumps the owning session's
// updated_at in the same transaction. Implements the coordinator's
// store contract.
func (s *Store) UpsertMessage(ctx context.Context, sessionID string, msg session.Message) error {
	ctx, span := tracing.StartSpan(
		ctx,
		"agentrelay.store",
		"store.upsert_message",
		attribute.String("session_id", sessionID),
		attribute.String("role", msg.Role),
	)
	defer span.End()

	content, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}

	start := time.Now()
	defer func() { observability.RecordStoreWrite(time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		observability.RecordStoreError("upsert_message")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, sessionID, msg.Role, string(content), msg.CreatedAt.UTC().Format(timeLayout)); err != nil {
		observability.RecordStoreError("upsert_message")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to write message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(timeLayout), sessionID); err != nil {
		observability.RecordStoreError("upsert_message")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to bump session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		observability.RecordStoreError("upsert_message")
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// GetMessages returns a session's messages ordered by creation time ascending
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	observability.RecordStoreRead(time.Since(start))
	if err != nil {
		observability.RecordStoreError("get_messages")
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]session.Message, 0)
	for rows.Next() {
		var msg session.Message
		var content, createdAt string
		if err := rows.Scan(&msg.ID, &msg.Role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to decode content for message %s: %w", msg.ID, err)
		}
		msg.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp for message %s: %w", msg.ID, err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountSessions returns the number of session rows
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		observability.RecordStoreError("count_sessions")
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Maintain compacts the write-ahead log and reclaims free pages.
// Safe to run while the store is serving traffic; intended for a
// periodic job.
func (s *Store) Maintain(ctx context.Context) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err == nil {
		_, err = s.db.ExecContext(ctx, "PRAGMA incremental_vacuum")
	}
	observability.RecordStoreWrite(time.Since(start))
	if err != nil {
		observability.RecordStoreError("maintain")
		return fmt.Errorf("failed to checkpoint: %w", err)
	}

	s.logger.Debug().Msg("Store maintenance completed")
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	s.logger.Info().Msg("Closing session store")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var createdAt, updatedAt string
	if err := row.Scan(&sess.ID, &sess.Model, &sess.ToolVersion,
		&sess.SystemPromptSuffix, &createdAt, &updatedAt); err != nil {
		return Session{}, err
	}

	var err error
	if sess.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Session{}, fmt.Errorf("bad created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return Session{}, fmt.Errorf("bad updated_at: %w", err)
	}
	return sess, nil
}
