package main

import (
	"context"
	"fmt"
	"time"

	"davietech/config"
	"davietech/mpesa"

	"github.com/spf13/cobra"
)

func registerC2BCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "register-c2b",
		Short: "Register the C2B validation and confirmation URLs with M-Pesa",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			v := config.New()
			if err := config.Read(v); err != nil {
				return err
			}
			client := mpesa.NewClient(v, nil)
			raw, err := client.RegisterC2BURLs(ctx)
			if err != nil {
				return fmt.Errorf("register c2b urls: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}
