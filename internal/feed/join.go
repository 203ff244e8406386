package feed

import "github.com/emilythestrangee/main-feed/backend/internal/models"

// AttachComments returns copies of posts with the comments whose post_id
// matches each post's pid. Posts without a pid are returned with Comments
// left nil. The inputs are not modified.
func AttachComments(posts []models.Post, comments []models.CommentWithReplies) []models.Post {
	byPost := make(map[int64][]models.CommentWithReplies)
	for _, c := range comments {
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}

	joined := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if post.ID == nil {
			joined = append(joined, post)
			continue
		}
		matched := byPost[*post.ID]
		if matched == nil {
			matched = []models.CommentWithReplies{}
		}
		joined = append(joined, post.WithComments(matched))
	}
	return joined
}
