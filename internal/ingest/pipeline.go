// Package ingest validates user post submissions and forwards them to the
// post service.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
	"github.com/emilythestrangee/main-feed/backend/internal/models"
	"github.com/emilythestrangee/main-feed/backend/internal/moderation"
	"github.com/emilythestrangee/main-feed/backend/internal/upstream"
)

const DefaultMaxImageBytes = 10 << 20

// allowedImageTypes is matched against the type detected from the image
// bytes, not the type the client declared.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type Reviewer interface {
	Review(ctx context.Context, content string) (moderation.Review, error)
}

type ImageStore interface {
	UploadImage(ctx context.Context, img upstream.Image) (string, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, post models.NewPost) (json.RawMessage, error)
}

// Attachment is an uploaded image as received from the client.
type Attachment struct {
	Filename string
	Data     []byte
}

// Submission is a user post as received from the client.
type Submission struct {
	Title   string
	Content string
	Image   *Attachment
}

// Result is returned to the client after the post was created.
type Result struct {
	Message          string          `json:"message"`
	ImageObjectKey   *string         `json:"image_object_key"`
	PostData         json.RawMessage `json:"post_data"`
	CorrectedContent *string         `json:"corrected_content,omitempty"`
}

// Pipeline runs a submission through validation, review, image upload and
// persistence. Reviewer may be nil, in which case content is forwarded as is.
type Pipeline struct {
	reviewer      Reviewer
	images        ImageStore
	posts         PostStore
	maxImageBytes int64
}

func NewPipeline(reviewer Reviewer, images ImageStore, posts PostStore, maxImageBytes int64) *Pipeline {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &Pipeline{
		reviewer:      reviewer,
		images:        images,
		posts:         posts,
		maxImageBytes: maxImageBytes,
	}
}

func (p *Pipeline) MaxImageBytes() int64 {
	return p.maxImageBytes
}

// CreatePost runs the pipeline. Any failing step aborts the submission; a
// failed upload never produces a post without its image.
func (p *Pipeline) CreatePost(ctx context.Context, sub Submission) (Result, error) {
	if strings.TrimSpace(sub.Title) == "" || strings.TrimSpace(sub.Content) == "" {
		return Result{}, apperr.New(apperr.InvalidRequest, "title and content are required")
	}

	var image *upstream.Image
	if sub.Image != nil {
		img, err := p.checkImage(*sub.Image)
		if err != nil {
			return Result{}, err
		}
		image = &img
	}

	content := sub.Content
	var corrected *string
	if p.reviewer != nil {
		review, err := p.reviewer.Review(ctx, sub.Content)
		if err != nil {
			return Result{}, err
		}
		if review.Rejected {
			slog.InfoContext(ctx, "post content rejected", "reason", review.Reason)
			return Result{}, apperr.New(apperr.ContentRejected, "Content was rejected by moderation")
		}
		content = review.Corrected
		corrected = &review.Corrected
	}

	var imageKey *string
	if image != nil {
		key, err := p.images.UploadImage(ctx, *image)
		if err != nil {
			return Result{}, err
		}
		imageKey = &key
	}

	created, err := p.posts.CreatePost(ctx, models.NewPost{
		Title:           sub.Title,
		Content:         content,
		ImageObjectName: imageKey,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Message:          "Post created successfully",
		ImageObjectKey:   imageKey,
		PostData:         created,
		CorrectedContent: corrected,
	}, nil
}

func (p *Pipeline) checkImage(att Attachment) (upstream.Image, error) {
	if len(att.Data) == 0 {
		return upstream.Image{}, apperr.New(apperr.InvalidAttachment, "image is empty")
	}
	if int64(len(att.Data)) > p.maxImageBytes {
		return upstream.Image{}, apperr.New(apperr.InvalidAttachment,
			fmt.Sprintf("image exceeds %d bytes", p.maxImageBytes))
	}

	mt := mimetype.Detect(att.Data)
	// strip parameters such as "; charset=utf-8"
	detected, _, _ := strings.Cut(mt.String(), ";")
	if !allowedImageTypes[detected] {
		return upstream.Image{}, apperr.New(apperr.InvalidAttachment,
			fmt.Sprintf("unsupported image type %s, only JPEG and PNG are allowed", detected))
	}

	filename := att.Filename
	if filename == "" {
		filename = "upload" + mt.Extension()
	}
	return upstream.Image{Filename: filename, ContentType: detected, Data: att.Data}, nil
}
