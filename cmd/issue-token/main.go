package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		externalID string
		name       string
		ttlMinutes int
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a bearer token for the staff API",
		Long: `issue-token signs a bearer token for a chat identity using AUTH_JWT_SECRET.
Privileges are not encoded in the token; the server checks ACCESS_ADMIN_IDS and
ACCESS_STAFF_IDS on every request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ttl := cfg.Auth.AccessTokenTTLMinutes
			if cmd.Flags().Changed("ttl") {
				ttl = ttlMinutes
			}
			token, expires, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(externalID, name)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&externalID, "external-id", "", "chat identity of the token holder")
	cmd.Flags().StringVar(&name, "name", "", "display name embedded in the token")
	cmd.Flags().IntVar(&ttlMinutes, "ttl", 0, "lifetime in minutes (default AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("external-id")
	return cmd
}
