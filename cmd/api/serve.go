package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/main-feed/backend/internal/config"
	"github.com/emilythestrangee/main-feed/backend/internal/feed"
	"github.com/emilythestrangee/main-feed/backend/internal/ingest"
	"github.com/emilythestrangee/main-feed/backend/internal/middleware"
	"github.com/emilythestrangee/main-feed/backend/internal/moderation"
	"github.com/emilythestrangee/main-feed/backend/internal/observability"
	"github.com/emilythestrangee/main-feed/backend/internal/server"
	"github.com/emilythestrangee/main-feed/backend/internal/upstream"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	Args:  cobra.NoArgs,
	Run:   runServe,
}

func runServe(cmd *cobra.Command, _ []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, closeProvider, err := config.ProviderFromEnv(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize secret provider: %v", err)
	}
	defer closeProvider()

	cfg, err := config.Load(ctx, provider)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	slog.SetDefault(slog.New(middleware.NewContextHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))))

	shutdownTracer, err := observability.InitTracer(ctx, server.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracer(sctx)
	}()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	client := upstream.NewHTTPClient(cfg.UpstreamTimeout)

	postService := upstream.NewPostService(cfg.PostServiceURL, client, metrics)
	commentService := upstream.NewCommentService(cfg.CommentServiceURL, client, metrics)
	storageService := upstream.NewStorageService(cfg.StorageServiceURL, client, metrics)

	var reviewer ingest.Reviewer
	if cfg.ModerationEnabled() {
		reviewer = moderation.NewOpenAIReviewer(moderation.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
	}

	srv := server.NewServer(cfg, server.Deps{
		Feeds:    feed.NewAggregator(postService, commentService),
		Posts:    ingest.NewPipeline(reviewer, storageService, postService, cfg.MaxImageBytes),
		Metrics:  metrics,
		Gatherer: prometheus.DefaultGatherer,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down server")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
