package models

// Comment is a top-level comment attached directly to a post.
type Comment struct {
	ID        int64  `json:"id"`
	PostID    int64  `json:"post_id"`
	Content   string `json:"content"`
	WriterUni string `json:"writer_uni"`
	Likes     int64  `json:"likes"`
}

// Reply is a flat reply record pointing at its parent comment.
type Reply struct {
	ID        int64  `json:"id"`
	ParentID  int64  `json:"comment1_id"`
	Content   string `json:"content"`
	WriterUni string `json:"writer_uni"`
	Likes     int64  `json:"likes"`
}

// CommentWithReplies is a top-level comment with its replies nested under it.
// Replies is never nil once built.
type CommentWithReplies struct {
	Comment
	Replies []Reply `json:"replies"`
}

// CommentPayload is the decoded response of the comment service.
type CommentPayload struct {
	Comments []Comment
	Replies  []Reply
}
