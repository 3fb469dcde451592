package main

import (
	"fmt"
	"time"

	"davietech/config"
	"davietech/middleware"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		sub string
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.New())
			if err != nil {
				return err
			}
			tok, err := middleware.IssueToken(cfg.Auth.JWTSecret, sub, middleware.RoleAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
