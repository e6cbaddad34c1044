package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/claude/repquest/internal/logging"
	"github.com/claude/repquest/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve RepQuest data over MCP stdio",
	Long: `Runs an MCP server on stdin/stdout that answers level and progress
questions by calling the RepQuest API with the configured token.

Logs go to stderr so they do not corrupt the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, closer := logging.New(cfg.Log, cmd.ErrOrStderr())
		defer closer.Close()

		ds := mcp.NewHTTPClient(cfg.APIURL, cfg.Token)
		s := mcp.New(ds, Version, logger, mcp.WithDefaultUser(cfg.UserUUID()))
		logger.Info("serving MCP over stdio", "api", cfg.APIURL)
		return server.ServeStdio(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
