package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"encounter-recs/internal/service"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a development access token",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", 15*time.Minute, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	token, err := service.NewJWTService(cfg.JWTSecret, ttl).IssueAccessToken(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
