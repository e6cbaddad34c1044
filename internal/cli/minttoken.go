package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/claude/repquest/internal/auth"
)

var (
	mintSecret string
	mintUserID string
	mintName   string
	mintTTL    time.Duration
)

var mintTokenCmd = &cobra.Command{
	Use:   "mint-token",
	Short: "Issue a bearer token for a user",
	Long: `Signs a token with the server's JWT secret. Useful for local development
and for configuring a session client.

The secret defaults to $REPQUEST_AUTH_JWT_SECRET. A random user id is
generated when --user-id is not given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		secret := mintSecret
		if secret == "" {
			secret = os.Getenv("REPQUEST_AUTH_JWT_SECRET")
		}
		return mintToken(cmd.OutOrStdout(), secret, mintUserID, mintName, mintTTL)
	},
}

func init() {
	mintTokenCmd.Flags().StringVar(&mintSecret, "secret", "", "JWT signing secret")
	mintTokenCmd.Flags().StringVar(&mintUserID, "user-id", "", "user id (uuid)")
	mintTokenCmd.Flags().StringVar(&mintName, "name", "", "display name")
	mintTokenCmd.Flags().DurationVar(&mintTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(mintTokenCmd)
}

func mintToken(out io.Writer, secret, userID, name string, ttl time.Duration) error {
	id := uuid.New()
	if userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
		id = parsed
	}

	mgr, err := auth.NewManager(secret, ttl)
	if err != nil {
		return err
	}
	token, exp, err := mgr.Issue(id, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "user_id: %s\n", id)
	fmt.Fprintf(out, "expires: %s\n", exp.Format(time.RFC3339))
	fmt.Fprintf(out, "token: %s\n", token)
	return nil
}
