package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/main-feed/backend/internal/middleware"
)

var rootCmd = &cobra.Command{
	Use:   "main-feed",
	Short: "Main feed aggregation gateway",
	Long: `Serves the main feed: posts from the post service joined with their
comment trees from the comment service, behind security-token checks.`,
	SilenceUsage: true,
}

func init() {
	slog.SetDefault(slog.New(middleware.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", []string{"feed:read"}, "scopes to grant (repeatable)")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "local-dev", "subject claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
