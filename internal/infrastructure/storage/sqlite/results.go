package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"turn-annotator/internal/application/port/output"
	"turn-annotator/internal/domain/entity"
)

var _ output.ResultPersister = (*ResultStore)(nil)

// ResultStore keeps one JSON document of results per chat.
type ResultStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

func NewResultStore(path string) (*ResultStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &ResultStore{db: db, path: path, now: time.Now}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ResultStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_results (
		chat_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *ResultStore) Save(ctx context.Context, chatID string, results entity.PersistedResults) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_results (chat_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		chatID, string(payload), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save results for %s: %w", chatID, err)
	}
	return nil
}

// Load returns the stored results for chatID, or an empty set when nothing was saved yet.
func (s *ResultStore) Load(ctx context.Context, chatID string) (entity.PersistedResults, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM chat_results WHERE chat_id = ?`, chatID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.PersistedResults{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load results for %s: %w", chatID, err)
	}

	results := entity.PersistedResults{}
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		return nil, fmt.Errorf("decode results for %s: %w", chatID, err)
	}
	return results, nil
}

// Delete removes everything stored for chatID.
func (s *ResultStore) Delete(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_results WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete results for %s: %w", chatID, err)
	}
	return nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}
