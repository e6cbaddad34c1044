// Package journal keeps a local SQLite history of finished sessions.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/repquest/internal/progress"
	"github.com/claude/repquest/internal/session"
)

// Entry is one recorded session.
type Entry struct {
	ID          uuid.UUID           `json:"id"`
	UserID      string              `json:"userId"`
	LevelNumber int                 `json:"levelNumber"`
	Outcome     string              `json:"outcome"`
	StartedAt   time.Time           `json:"startedAt"`
	Duration    time.Duration       `json:"duration"`
	Progress    []progress.Exercise `json:"progress"`
	TotalXP     int                 `json:"totalXP"`
	TotalCoins  int                 `json:"totalCoins"`
	Error       string              `json:"error,omitempty"`
}

// Journal stores session entries.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		level_number INTEGER NOT NULL,
		outcome      TEXT NOT NULL,
		started_at   TIMESTAMP NOT NULL,
		duration_ms  INTEGER NOT NULL,
		progress     TEXT NOT NULL,
		total_xp     INTEGER NOT NULL DEFAULT 0,
		total_coins  INTEGER NOT NULL DEFAULT 0,
		error        TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores a finished session for userID and returns the new entry.
func (j *Journal) Record(ctx context.Context, userID string, res session.Result) (Entry, error) {
	e := Entry{
		ID:          uuid.New(),
		UserID:      userID,
		LevelNumber: res.Level.LevelNumber,
		Outcome:     res.Outcome.String(),
		StartedAt:   res.StartedAt.UTC(),
		Duration:    res.Duration,
		Progress:    res.Progress,
	}
	if e.Progress == nil {
		e.Progress = []progress.Exercise{}
	}
	if res.UserProgress != nil {
		e.TotalXP = res.UserProgress.Stats.TotalXP
		e.TotalCoins = res.UserProgress.Stats.TotalCoins
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}

	raw, err := json.Marshal(e.Progress)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding progress: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, level_number, outcome, started_at, duration_ms, progress, total_xp, total_coins, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID, e.LevelNumber, e.Outcome, e.StartedAt,
		e.Duration.Milliseconds(), string(raw), e.TotalXP, e.TotalCoins, e.Error,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("recording session: %w", err)
	}
	return e, nil
}

// List returns up to limit entries for userID, most recent first. An empty
// userID lists every user.
func (j *Journal) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, user_id, level_number, outcome, started_at, duration_ms, progress, total_xp, total_coins, error
		 FROM sessions
		 WHERE ? = '' OR user_id = ?
		 ORDER BY started_at DESC, rowid DESC
		 LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			id         string
			durationMS int64
			raw        string
		)
		if err := rows.Scan(&id, &e.UserID, &e.LevelNumber, &e.Outcome, &e.StartedAt,
			&durationMS, &raw, &e.TotalXP, &e.TotalCoins, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("session id %q: %w", id, err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(raw), &e.Progress); err != nil {
			return nil, fmt.Errorf("decoding progress of %s: %w", id, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
