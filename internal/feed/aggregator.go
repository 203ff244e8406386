package feed

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/main-feed/backend/internal/models"
)

// PostSource lists every post known to the post service.
type PostSource interface {
	AllPosts(ctx context.Context) ([]models.Post, error)
}

// CommentSource returns the full, flat comment payload of the comment service.
type CommentSource interface {
	AllComments(ctx context.Context) (models.CommentPayload, error)
}

// Aggregator builds the main feed out of the post and comment services.
type Aggregator struct {
	posts    PostSource
	comments CommentSource
}

func NewAggregator(posts PostSource, comments CommentSource) *Aggregator {
	return &Aggregator{posts: posts, comments: comments}
}

// MainFeed fetches posts and comments concurrently, joins them and returns
// the requested page. If either call fails the whole feed fails; a feed with
// missing comments is never returned.
func (a *Aggregator) MainFeed(ctx context.Context, req PageRequest) (Page[models.Post], error) {
	if err := req.Validate(); err != nil {
		return Page[models.Post]{}, err
	}

	var (
		posts   []models.Post
		payload models.CommentPayload
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = a.posts.AllPosts(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		payload, err = a.comments.AllComments(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page[models.Post]{}, err
	}

	tree := BuildCommentTree(payload)
	joined := AttachComments(posts, tree)

	slog.DebugContext(ctx, "main feed assembled",
		"posts", len(posts),
		"comments", len(payload.Comments),
		"replies", len(payload.Replies))

	return Paginate(joined, req), nil
}
