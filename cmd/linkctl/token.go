package main

import (
	"fmt"
	"time"

	httpHandler "shortlinks/internal/handler/http"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	Long: `Signs a token with JWT_SECRET whose subject is the given user id.
Intended for local development and smoke tests.

Example:
  linkctl token --user alice --ttl 1h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}

		token, err := httpHandler.NewAuthenticator(cfg.Auth.JWTSecret).IssueToken(user, ttl)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringP("user", "u", "", "user id to put in the token subject")
	tokenCmd.Flags().Duration("ttl", time.Duration(0), "token lifetime (defaults to JWT_TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(tokenCmd)
}
