package mcp

import (
	"context"

	"github.com/google/uuid"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListLevels(ctx context.Context, f storage.LevelFilter) ([]models.Level, int, error)
	GetLevel(ctx context.Context, levelNumber int) (models.Level, error)
	GetOrCreateUserProgress(ctx context.Context, userID uuid.UUID) (models.UserProgress, error)
	ListCompletions(ctx context.Context, userID uuid.UUID) ([]storage.Completion, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
