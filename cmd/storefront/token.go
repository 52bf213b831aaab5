package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/spf13/cobra"
)

var (
	tokenCustomer string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed customer token for local testing",
	Long: `Signs a token with JWT_SECRET for the given customer id. Send it as
"Authorization: Bearer <token>" or in the ` + auth.CookieName + ` cookie.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenCustomer, "customer", "C-1001", "customer id to sign for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if tokenCustomer == "" {
		return errors.New("--customer is required")
	}

	token, err := auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer).Issue(tokenCustomer, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
