package task

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rgoodwin/taskmate/pkg/types"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed migrations/001_initial_schema.sql
var initialSchema string

// dueDateLayout is how due dates are stored. Day resolution only.
const dueDateLayout = "2006-01-02"

// SQLiteStore is the durable Store backed by modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database under dataDir and runs
// the schema migration. The directory must be on a local filesystem.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "taskmate.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{db: db}

	if err := store.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// initPragmas configures SQLite for safety and concurrent reads.
func (s *SQLiteStore) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// migrate applies the embedded schema. Idempotent.
func (s *SQLiteStore) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, stmt := range strings.Split(initialSchema, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Close flushes the WAL and closes the connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Warn().Err(err).Msg("wal checkpoint failed on close")
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Health verifies the connection is alive.
func (s *SQLiteStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// Users
// ══════════════════════════════════════════════════════════════════════════════

// EnsureUser inserts the user row if it does not exist yet.
func (s *SQLiteStore) EnsureUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// Tasks
// ══════════════════════════════════════════════════════════════════════════════

const taskColumns = `id, description, priority, tags, due_date, is_completed, is_daily, version, created_at, updated_at`

// CreateTask inserts a new task row.
func (s *SQLiteStore) CreateTask(ctx context.Context, userID string, t *types.Task) error {
	query := `
		INSERT INTO tasks (
			id, user_id, description, priority, tags,
			due_date, is_completed, is_daily, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, userID, t.Description, string(t.Priority), t.Tags,
		dueDateToText(t.DueDate), t.IsCompleted, t.IsDaily, t.Version,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, scoped to the user.
func (s *SQLiteStore) GetTask(ctx context.Context, userID, taskID string) (*types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? AND id = ?`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, userID, taskID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query task: %w", err)
	}
	return t, nil
}

// FindTaskByDescription loads the user's tasks in creation order and runs
// the shared three-tier matcher, so resolution behaves identically across
// store implementations.
func (s *SQLiteStore) FindTaskByDescription(ctx context.Context, userID, text string) (*types.Task, error) {
	tasks, err := s.allTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if match := matchByDescription(tasks, text); match != nil {
		return match, nil
	}
	return nil, ErrNotFound
}

// ListTasks returns the filtered page, newest first, plus the total count.
// Structured filters run in SQL; the free-text search is applied in Go so
// it shares matching semantics with the in-memory store.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID string, f Filter, p Page) ([]types.Task, int, error) {
	p = p.normalize()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	if f.IsCompleted != nil {
		query += ` AND is_completed = ?`
		args = append(args, *f.IsCompleted)
	}
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(f.Priority))
	}
	if f.IsDaily != nil {
		query += ` AND is_daily = ?`
		args = append(args, *f.IsDaily)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var filtered []types.Task
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		filtered = append(filtered, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tasks: %w", err)
	}

	total := len(filtered)
	if p.Skip >= total {
		return nil, total, nil
	}
	end := p.Skip + p.Limit
	if end > total {
		end = total
	}
	return filtered[p.Skip:end], total, nil
}

// UpdateTask replaces the stored task when the version predicate holds.
func (s *SQLiteStore) UpdateTask(ctx context.Context, userID string, t *types.Task, expectedVersion int) error {
	query := `
		UPDATE tasks SET
			description = ?, priority = ?, tags = ?, due_date = ?,
			is_completed = ?, is_daily = ?, version = ?, updated_at = ?
		WHERE user_id = ? AND id = ? AND version = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		t.Description, string(t.Priority), t.Tags, dueDateToText(t.DueDate),
		t.IsCompleted, t.IsDaily, t.Version, t.UpdatedAt,
		userID, t.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a stale version.
		if _, err := s.GetTask(ctx, userID, t.ID); err != nil {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// DeleteTask removes the task, reporting whether a row was deleted.
func (s *SQLiteStore) DeleteTask(ctx context.Context, userID, taskID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, taskID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task rows affected: %w", err)
	}
	return affected > 0, nil
}

// TaskStats aggregates the user's full task list with the shared computation.
func (s *SQLiteStore) TaskStats(ctx context.Context, userID string, now time.Time) (*types.TaskStats, error) {
	tasks, err := s.allTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ComputeStats(tasks, now), nil
}

// allTasks loads every task for the user in creation order.
func (s *SQLiteStore) allTasks(ctx context.Context, userID string) ([]types.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*types.Task, error) {
	var t types.Task
	var priority string
	var dueDate sql.NullString

	err := row.Scan(
		&t.ID, &t.Description, &priority, &t.Tags, &dueDate,
		&t.IsCompleted, &t.IsDaily, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = types.Priority(priority)
	if dueDate.Valid && dueDate.String != "" {
		parsed, err := time.Parse(dueDateLayout, dueDate.String)
		if err != nil {
			// A malformed row should not take the whole list down.
			log.Warn().Str("task_id", t.ID).Str("due_date", dueDate.String).
				Msg("skipping malformed due date")
		} else {
			t.DueDate = &parsed
		}
	}
	return &t, nil
}

func dueDateToText(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.UTC().Format(dueDateLayout)
}

// ══════════════════════════════════════════════════════════════════════════════
// Chat history
// ══════════════════════════════════════════════════════════════════════════════

// AppendChatMessage persists a turn and trims the history beyond limit.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, userID string, msg types.ChatMessage, limit int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			userID, string(msg.Role), msg.Content, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}

		if limit <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM chat_messages
			WHERE user_id = ? AND id NOT IN (
				SELECT id FROM chat_messages WHERE user_id = ? ORDER BY id DESC LIMIT ?
			)`, userID, userID, limit)
		if err != nil {
			return fmt.Errorf("trim chat history: %w", err)
		}
		return nil
	})
}

// ChatHistory returns the persisted turns, oldest first.
func (s *SQLiteStore) ChatHistory(ctx context.Context, userID string) ([]types.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM chat_messages WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var msgs []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		var role string
		if err := rows.Scan(&role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Role = types.ChatRole(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat history: %w", err)
	}
	return msgs, nil
}

// ClearChatHistory drops the user's turns, returning how many were removed.
func (s *SQLiteStore) ClearChatHistory(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear chat history rows affected: %w", err)
	}
	return int(affected), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// API keys
// ══════════════════════════════════════════════════════════════════════════════

// SetAPIKeyBlob upserts the user's encrypted key material.
func (s *SQLiteStore) SetAPIKeyBlob(ctx context.Context, userID string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (user_id, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		userID, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store api keys: %w", err)
	}
	return nil
}

// GetAPIKeyBlob returns the stored key material, nil if none.
func (s *SQLiteStore) GetAPIKeyBlob(ctx context.Context, userID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM api_keys WHERE user_id = ?`, userID).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	return blob, nil
}
