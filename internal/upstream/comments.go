package upstream

import (
	"context"
	"net/http"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
	"github.com/emilythestrangee/main-feed/backend/internal/models"
	"github.com/emilythestrangee/main-feed/backend/internal/observability"
)

// CommentService talks to the comment collaborator.
type CommentService struct {
	caller
}

func NewCommentService(baseURL string, client *http.Client, metrics *observability.Metrics) *CommentService {
	return &CommentService{caller: newCaller(CollaboratorComments, baseURL, client, metrics)}
}

// AllComments fetches GET {base}/get_all_comments/ and decodes the flat
// comment1/comment2 payload.
func (s *CommentService) AllComments(ctx context.Context) (models.CommentPayload, error) {
	body, err := s.get(ctx, "/get_all_comments/")
	if err != nil {
		return models.CommentPayload{}, apperr.Upstream(apperr.UpstreamUnavailable, s.name, upstreamStatus(err), "Error fetching comments.", err)
	}

	payload, err := models.DecodeCommentPayload(body)
	if err != nil {
		return models.CommentPayload{}, apperr.Upstream(apperr.MalformedUpstreamData, s.name, http.StatusOK, "Comment service returned malformed data.", err)
	}
	return payload, nil
}
