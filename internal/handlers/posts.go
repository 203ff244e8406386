package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
	"github.com/emilythestrangee/main-feed/backend/internal/ingest"
	"github.com/emilythestrangee/main-feed/backend/internal/middleware"
)

// formOverhead is the room left for the text fields and multipart framing on
// top of the image size limit.
const formOverhead = 1 << 20

type PostHandler struct {
	posts PostCreator
}

func NewPostHandler(posts PostCreator) *PostHandler {
	return &PostHandler{posts: posts}
}

type userPostForm struct {
	Title   string                `form:"title" binding:"required"`
	Content string                `form:"content" binding:"required"`
	Image   *multipart.FileHeader `form:"image"`
}

// CreateUserPost accepts a multipart post submission and runs it through the
// ingest pipeline.
func (h *PostHandler) CreateUserPost(c *gin.Context) {
	limit := h.posts.MaxImageBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	var input userPostForm
	if err := c.ShouldBind(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperr.Wrap(apperr.InvalidAttachment,
				fmt.Sprintf("image exceeds %d bytes", limit), err))
			return
		}
		var missing validator.ValidationErrors
		if errors.As(err, &missing) {
			respondError(c, apperr.Wrap(apperr.InvalidRequest, "title and content are required", err))
			return
		}
		respondError(c, apperr.Wrap(apperr.InvalidRequest, "invalid form submission", err))
		return
	}

	sub := ingest.Submission{Title: input.Title, Content: input.Content}
	if input.Image != nil {
		att, err := readAttachment(input.Image, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		sub.Image = att
	}

	result, err := h.posts.CreatePost(c.Request.Context(), sub)
	if err != nil {
		respondError(c, err)
		return
	}

	subject, _ := middleware.GetClaims(c)["sub"].(string)
	middleware.Logger(c).Info("user post created",
		"subject", subject,
		"with_image", result.ImageObjectKey != nil)

	c.JSON(http.StatusCreated, result)
}

func readAttachment(fh *multipart.FileHeader, limit int64) (*ingest.Attachment, error) {
	if fh.Size > limit {
		return nil, apperr.New(apperr.InvalidAttachment, fmt.Sprintf("image exceeds %d bytes", limit))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidAttachment, "image could not be read", err)
	}
	defer f.Close()

	// one extra byte so the pipeline can tell an oversized image apart
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidAttachment, "image could not be read", err)
	}
	return &ingest.Attachment{Filename: fh.Filename, Data: data}, nil
}
