package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/claude/repquest/internal/models"
)

// LevelFilter narrows a level listing. Zero values mean no filter.
type LevelFilter struct {
	Status     string
	Difficulty string
	Limit      int
	Offset     int
}

const levelColumns = `level_number, aim, exercises, difficulty, coins, xp, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLevel(row rowScanner) (models.Level, error) {
	var (
		l   models.Level
		raw []byte
	)
	if err := row.Scan(&l.LevelNumber, &l.Aim, &raw, &l.Difficulty,
		&l.Rewards.Coins, &l.Rewards.XP, &l.Status); err != nil {
		return models.Level{}, err
	}
	if err := json.Unmarshal(raw, &l.Exercises); err != nil {
		return models.Level{}, fmt.Errorf("decoding exercises of level %d: %w", l.LevelNumber, err)
	}
	if l.Exercises == nil {
		l.Exercises = []models.Exercise{}
	}
	return l, nil
}

// ListLevels returns one page of levels ordered by number, plus the total
// count matching the filter.
func (db *DB) ListLevels(ctx context.Context, f LevelFilter) ([]models.Level, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Difficulty != "" {
		args = append(args, f.Difficulty)
		where = append(where, fmt.Sprintf("difficulty = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM levels`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting levels: %w", err)
	}

	q := `SELECT ` + levelColumns + ` FROM levels` + clause + ` ORDER BY level_number`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying levels: %w", err)
	}
	defer rows.Close()

	levels := []models.Level{}
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, 0, err
		}
		levels = append(levels, l)
	}
	return levels, total, rows.Err()
}

// GetLevel returns a level by number, or ErrNotFound.
func (db *DB) GetLevel(ctx context.Context, levelNumber int) (models.Level, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+levelColumns+` FROM levels WHERE level_number = $1`, levelNumber)
	l, err := scanLevel(row)
	if err != nil {
		return models.Level{}, notFound(err)
	}
	return l, nil
}

// UpsertLevel creates or replaces a level. Missing fields get the usual
// defaults and the status follows whether the level has exercises.
func (db *DB) UpsertLevel(ctx context.Context, l models.Level) error {
	l = l.WithDefaults()
	raw, err := json.Marshal(l.Exercises)
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO levels (`+levelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (level_number) DO UPDATE SET
			aim = EXCLUDED.aim,
			exercises = EXCLUDED.exercises,
			difficulty = EXCLUDED.difficulty,
			coins = EXCLUDED.coins,
			xp = EXCLUDED.xp,
			status = EXCLUDED.status
	`, l.LevelNumber, l.Aim, raw, l.Difficulty, l.Rewards.Coins, l.Rewards.XP, l.Status)
	return err
}
