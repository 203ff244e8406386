package feed

import "github.com/emilythestrangee/main-feed/backend/internal/models"

// BuildCommentTree nests each reply under its parent comment.
//
// The output has one element per top-level comment, in input order. Replies
// keep their relative order; replies whose parent is not a top-level comment
// are dropped.
func BuildCommentTree(payload models.CommentPayload) []models.CommentWithReplies {
	repliesByParent := make(map[int64][]models.Reply)
	for _, reply := range payload.Replies {
		repliesByParent[reply.ParentID] = append(repliesByParent[reply.ParentID], reply)
	}

	tree := make([]models.CommentWithReplies, 0, len(payload.Comments))
	for _, comment := range payload.Comments {
		replies := repliesByParent[comment.ID]
		if replies == nil {
			replies = []models.Reply{}
		}
		tree = append(tree, models.CommentWithReplies{
			Comment: comment,
			Replies: replies,
		})
	}
	return tree
}
