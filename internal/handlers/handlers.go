package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
	"github.com/emilythestrangee/main-feed/backend/internal/feed"
	"github.com/emilythestrangee/main-feed/backend/internal/ingest"
	"github.com/emilythestrangee/main-feed/backend/internal/middleware"
	"github.com/emilythestrangee/main-feed/backend/internal/models"
)

const WelcomeMessage = "Welcome to the main feed service!"

type FeedService interface {
	MainFeed(ctx context.Context, req feed.PageRequest) (feed.Page[models.Post], error)
}

type PostCreator interface {
	CreatePost(ctx context.Context, sub ingest.Submission) (ingest.Result, error)
	MaxImageBytes() int64
}

// Handler combines all handler types
type Handler struct {
	Feed *FeedHandler
	Post *PostHandler
}

func NewHandler(feeds FeedService, posts PostCreator) *Handler {
	return &Handler{
		Feed: NewFeedHandler(feeds),
		Post: NewPostHandler(posts),
	}
}

func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": WelcomeMessage})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError logs err with the request's correlation id and writes the
// client-safe message with the mapped status.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	logger := middleware.Logger(c)
	attrs := []any{"error", err, "status", status, "kind", string(apperr.KindOf(err))}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}
