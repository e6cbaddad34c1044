package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/repquest/internal/models"
)

const progressColumns = `user_id, cleared_levels, total_xp, total_coins, current_streak, highest_streak`

func scanProgress(row rowScanner) (models.UserProgress, error) {
	var (
		p       models.UserProgress
		cleared []int32
	)
	if err := row.Scan(&p.UserID, &cleared, &p.Stats.TotalXP, &p.Stats.TotalCoins,
		&p.Stats.CurrentStreak, &p.Stats.HighestStreak); err != nil {
		return models.UserProgress{}, err
	}
	p.ClearedLevels = make([]int, len(cleared))
	for i, n := range cleared {
		p.ClearedLevels[i] = int(n)
	}
	return p, nil
}

// GetOrCreateUserProgress returns the progress record of a user, creating an
// empty one on first use. The user row must already exist.
func (db *DB) GetOrCreateUserProgress(ctx context.Context, userID uuid.UUID) (models.UserProgress, error) {
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO user_progress (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return models.UserProgress{}, fmt.Errorf("creating progress: %w", err)
	}
	p, err := scanProgress(db.Pool.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1`, userID))
	if err != nil {
		return models.UserProgress{}, fmt.Errorf("reading progress: %w", err)
	}
	return p, nil
}

// CompleteLevel marks a level cleared for a user and credits its rewards.
// Repeating the call for a cleared level changes nothing; the returned bool
// reports whether rewards were paid. Returns ErrNotFound for unknown levels.
func (db *DB) CompleteLevel(ctx context.Context, userID uuid.UUID, levelNumber int) (models.UserProgress, bool, error) {
	level, err := db.GetLevel(ctx, levelNumber)
	if err != nil {
		return models.UserProgress{}, false, err
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return models.UserProgress{}, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_progress (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return models.UserProgress{}, false, fmt.Errorf("creating progress: %w", err)
	}

	p, err := scanProgress(tx.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return models.UserProgress{}, false, fmt.Errorf("locking progress: %w", err)
	}

	if !p.Clear(levelNumber, level.Rewards) {
		return p, false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE user_progress SET
			cleared_levels = $2, total_xp = $3, total_coins = $4,
			current_streak = $5, highest_streak = $6, updated_at = NOW()
		WHERE user_id = $1
	`, userID, p.ClearedLevels, p.Stats.TotalXP, p.Stats.TotalCoins,
		p.Stats.CurrentStreak, p.Stats.HighestStreak); err != nil {
		return models.UserProgress{}, false, fmt.Errorf("updating progress: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO level_completions (user_id, level_number) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, levelNumber); err != nil {
		return models.UserProgress{}, false, fmt.Errorf("recording completion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.UserProgress{}, false, fmt.Errorf("committing: %w", err)
	}
	return p, true, nil
}

// Completion is one cleared level with the time it was first cleared.
type Completion struct {
	LevelNumber int       `json:"levelNumber"`
	CompletedAt time.Time `json:"completedAt"`
}

// ListCompletions returns a user's cleared levels, most recent first.
func (db *DB) ListCompletions(ctx context.Context, userID uuid.UUID) ([]Completion, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT level_number, completed_at FROM level_completions
		WHERE user_id = $1 ORDER BY completed_at DESC, level_number DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying completions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Completion, error) {
		var c Completion
		err := row.Scan(&c.LevelNumber, &c.CompletedAt)
		return c, err
	})
}
