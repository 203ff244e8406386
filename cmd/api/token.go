package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/main-feed/backend/internal/config"
)

var (
	tokenScopes  []string
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a security token for local testing",
	Long: `Signs an HS256 token with SECURITY_TOKEN_SECRET, resolved the same way
the server resolves it, and prints it for use in the X-Security-Token header.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	provider, closeProvider, err := config.ProviderFromEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer closeProvider()

	key, err := provider.Secret(cmd.Context(), config.SecretSigningKey)
	if err != nil {
		return fmt.Errorf("resolve signing key: %w", err)
	}

	signed, err := mintToken([]byte(key), tokenSubject, tokenScopes, tokenTTL, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}

func mintToken(key []byte, subject string, scopes []string, ttl time.Duration, now time.Time) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"scope": strings.Join(scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	return token.SignedString(key)
}
