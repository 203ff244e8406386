package server

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/emilythestrangee/main-feed/backend/internal/config"
	"github.com/emilythestrangee/main-feed/backend/internal/handlers"
	"github.com/emilythestrangee/main-feed/backend/internal/middleware"
	"github.com/emilythestrangee/main-feed/backend/internal/observability"
)

const ServiceName = "main-feed"

// Deps are the collaborators the routes are served from.
type Deps struct {
	Feeds    handlers.FeedService
	Posts    handlers.PostCreator
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg      *config.Config
	handler  *handlers.Handler
	verifier *middleware.Verifier
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
}

// NewServer creates and configures a new server
func NewServer(cfg *config.Config, deps Deps) *http.Server {
	newServer := New(cfg, deps)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           newServer.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2*cfg.UpstreamTimeout + 10*time.Second,
	}

	slog.Info("Server configured", "addr", server.Addr, "moderation", cfg.ModerationEnabled())
	return server
}

func New(cfg *config.Config, deps Deps) *Server {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		handler:  handlers.NewHandler(deps.Feeds, deps.Posts),
		verifier: middleware.NewVerifier(cfg.SigningKey),
		metrics:  deps.Metrics,
		gatherer: gatherer,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName))
	r.Use(cors.New(corsConfig(s.cfg.AllowedOrigins)))
	r.Use(middleware.RequestLogger(s.metrics))

	r.GET("/", handlers.Root)
	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	r.GET("/main_feed",
		middleware.Auth(s.verifier, s.cfg.FeedScope, s.metrics),
		s.handler.Feed.GetMainFeed)
	r.POST("/user_post",
		middleware.Auth(s.verifier, s.cfg.PostScope, s.metrics),
		s.handler.Post.CreateUserPost)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Accept", "Content-Type", "X-Requested-With", middleware.TokenHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
