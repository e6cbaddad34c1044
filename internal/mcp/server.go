package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/repquest/internal/auth"
)

var errNoUser = errors.New("no authenticated user")

// Option configures the MCP server.
type Option func(*handlers)

// WithDefaultUser answers for userID when the request context carries no
// identity, as in stdio mode where the REST token already names the user.
func WithDefaultUser(userID uuid.UUID) Option {
	return func(h *handlers) { h.defaultUser = userID }
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger, opts ...Option) *server.MCPServer {
	s := server.NewMCPServer("RepQuest", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepQuest level server. List training levels, inspect a level's exercises and rewards, and read the caller's cleared levels and reward totals."),
	)

	h := &handlers{ds: ds, log: log}
	for _, opt := range opts {
		opt(h)
	}

	s.AddTools(
		server.ServerTool{Tool: toolListLevels, Handler: h.listLevels},
		server.ServerTool{Tool: toolGetLevel, Handler: h.getLevel},
		server.ServerTool{Tool: toolGetUserProgress, Handler: h.getUserProgress},
		server.ServerTool{Tool: toolGetCompletions, Handler: h.getCompletions},
	)

	s.AddResources(
		server.ServerResource{Resource: resLevelCatalog, Handler: h.levelCatalog},
		server.ServerResource{Resource: resProgressSummary, Handler: h.progressSummary},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds          DataSource
	defaultUser uuid.UUID
	log         *slog.Logger
}

func (h *handlers) userID(ctx context.Context) (uuid.UUID, error) {
	if id, ok := auth.IdentityFromContext(ctx); ok {
		return id.UserID, nil
	}
	if h.defaultUser != uuid.Nil {
		return h.defaultUser, nil
	}
	return uuid.Nil, errNoUser
}

// --- Resource definitions ---

var resLevelCatalog = mcp.NewResource(
	"repquest://level_catalog",
	"Level Catalog",
	mcp.WithResourceDescription("Every playable level with its exercises, targets and rewards"),
	mcp.WithMIMEType("application/json"),
)

var resProgressSummary = mcp.NewResource(
	"repquest://progress_summary",
	"Progress Summary",
	mcp.WithResourceDescription("The caller's cleared levels, reward totals, streaks and the next unlocked level"),
	mcp.WithMIMEType("application/json"),
)
