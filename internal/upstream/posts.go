package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
	"github.com/emilythestrangee/main-feed/backend/internal/models"
	"github.com/emilythestrangee/main-feed/backend/internal/observability"
)

// PostService talks to the post-storage collaborator.
type PostService struct {
	caller
}

func NewPostService(baseURL string, client *http.Client, metrics *observability.Metrics) *PostService {
	return &PostService{caller: newCaller(CollaboratorPosts, baseURL, client, metrics)}
}

// AllPosts fetches GET {base}/all_posts/.
func (s *PostService) AllPosts(ctx context.Context) ([]models.Post, error) {
	body, err := s.get(ctx, "/all_posts/")
	if err != nil {
		return nil, apperr.Upstream(apperr.UpstreamUnavailable, s.name, upstreamStatus(err), "Error fetching posts.", err)
	}

	posts, err := models.DecodePosts(body)
	if err != nil {
		return nil, apperr.Upstream(apperr.MalformedUpstreamData, s.name, http.StatusOK, "Post service returned malformed data.", err)
	}
	return posts, nil
}

// CreatePost forwards a new post to POST {base}/posts/ and returns the
// created post exactly as the post service rendered it.
func (s *PostService) CreatePost(ctx context.Context, post models.NewPost) (json.RawMessage, error) {
	payload, err := json.Marshal(post)
	if err != nil {
		return nil, apperr.Wrap(apperr.PostPersistFailed, "Failed to create post", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url("/posts/"), bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.PostPersistFailed, "Failed to create post", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := s.do(req)
	if err != nil {
		return nil, apperr.Upstream(apperr.PostPersistFailed, s.name, upstreamStatus(err), "Failed to create post", err)
	}
	if !json.Valid(body) {
		return nil, apperr.Upstream(apperr.PostPersistFailed, s.name, http.StatusOK, "Failed to create post", fmt.Errorf("post service returned invalid JSON"))
	}
	return json.RawMessage(body), nil
}
