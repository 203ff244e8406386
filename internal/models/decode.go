package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Pointer fields let the validator tell a missing key from a zero value.
type commentRecord struct {
	ID         *int64  `json:"id" validate:"required"`
	PostID     *int64  `json:"post_id" validate:"required"`
	Content    *string `json:"content" validate:"required"`
	Writer     *string `json:"writer_uni" validate:"required_without=WriterTypo"`
	WriterTypo *string `json:"writter_uni"`
	Likes      *int64  `json:"likes" validate:"required"`
}

type replyRecord struct {
	ID         *int64  `json:"id" validate:"required"`
	ParentID   *int64  `json:"comment1_id" validate:"required"`
	Content    *string `json:"content" validate:"required"`
	Writer     *string `json:"writer_uni" validate:"required_without=WriterTypo"`
	WriterTypo *string `json:"writter_uni"`
	Likes      *int64  `json:"likes" validate:"required"`
}

func writer(canonical, typo *string) string {
	if canonical != nil {
		return *canonical
	}
	return *typo
}

// DecodeCommentPayload decodes the comment service response. Absent
// comment1/comment2 keys decode as empty lists; records missing a required
// field are rejected.
func DecodeCommentPayload(data []byte) (CommentPayload, error) {
	var envelope struct {
		Comment1 []commentRecord `json:"comment1"`
		Comment2 []replyRecord   `json:"comment2"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return CommentPayload{}, fmt.Errorf("decode comments: %w", err)
	}

	payload := CommentPayload{
		Comments: make([]Comment, 0, len(envelope.Comment1)),
		Replies:  make([]Reply, 0, len(envelope.Comment2)),
	}

	for i, rec := range envelope.Comment1 {
		if err := validate.Struct(rec); err != nil {
			return CommentPayload{}, recordError("comment1", i, err)
		}
		payload.Comments = append(payload.Comments, Comment{
			ID:        *rec.ID,
			PostID:    *rec.PostID,
			Content:   *rec.Content,
			WriterUni: writer(rec.Writer, rec.WriterTypo),
			Likes:     *rec.Likes,
		})
	}

	for i, rec := range envelope.Comment2 {
		if err := validate.Struct(rec); err != nil {
			return CommentPayload{}, recordError("comment2", i, err)
		}
		payload.Replies = append(payload.Replies, Reply{
			ID:        *rec.ID,
			ParentID:  *rec.ParentID,
			Content:   *rec.Content,
			WriterUni: writer(rec.Writer, rec.WriterTypo),
			Likes:     *rec.Likes,
		})
	}

	return payload, nil
}

// DecodePosts decodes the post service's list of posts.
func DecodePosts(data []byte) ([]Post, error) {
	var posts []Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	if posts == nil {
		return nil, errors.New("decode posts: expected a JSON array")
	}
	return posts, nil
}

func recordError(list string, index int, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			name := fe.Field()
			if name == "writer_uni" {
				name = "writer_uni/writter_uni"
			}
			missing = append(missing, name)
		}
		return fmt.Errorf("%s[%d]: missing required field(s) %s", list, index, strings.Join(missing, ", "))
	}
	return fmt.Errorf("%s[%d]: %w", list, index, err)
}
