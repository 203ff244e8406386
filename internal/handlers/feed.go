package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/main-feed/backend/internal/feed"
)

type FeedHandler struct {
	feeds FeedService
}

func NewFeedHandler(feeds FeedService) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// GetMainFeed returns one page of posts with their comment trees attached.
func (h *FeedHandler) GetMainFeed(c *gin.Context) {
	req, err := feed.ParsePageRequest(c.Query("page"), c.Query("size"))
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.feeds.MainFeed(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
