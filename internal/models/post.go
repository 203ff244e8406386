package models

import (
	"encoding/json"
	"fmt"
)

// Post is a transient copy of a post owned by the post service.
//
// Fields the gateway does not know about are kept in raw and re-emitted
// unchanged, so the feed never strips data the post service adds.
type Post struct {
	ID              *int64
	Title           string
	Content         string
	ImageObjectName string
	WriterUni       string

	// Comments is attached at aggregation time. It stays nil for posts
	// without a pid, in which case the key is omitted from the output.
	Comments []CommentWithReplies

	raw map[string]json.RawMessage
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("post is not a JSON object: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("post is null")
	}

	var decoded Post
	if v, ok := raw["pid"]; ok && string(v) != "null" {
		var id int64
		if err := json.Unmarshal(v, &id); err != nil {
			return fmt.Errorf("post pid must be an integer: %w", err)
		}
		decoded.ID = &id
	}

	fields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"title"}, &decoded.Title},
		{[]string{"content"}, &decoded.Content},
		{[]string{"image_object_name"}, &decoded.ImageObjectName},
		{[]string{"writer_uni", "writter_uni"}, &decoded.WriterUni},
	}
	for _, f := range fields {
		for _, key := range f.keys {
			v, ok := raw[key]
			if !ok || string(v) == "null" {
				continue
			}
			if err := json.Unmarshal(v, f.dst); err != nil {
				return fmt.Errorf("post %s must be a string: %w", key, err)
			}
			break
		}
	}

	// the comment service spells it writter_uni; emit the canonical name
	if v, ok := raw["writter_uni"]; ok {
		if c, canonical := raw["writer_uni"]; !canonical || string(c) == "null" {
			raw["writer_uni"] = v
		}
		delete(raw, "writter_uni")
	}

	decoded.raw = raw
	*p = decoded
	return nil
}

func (p Post) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.raw)+1)
	if p.raw != nil {
		for k, v := range p.raw {
			out[k] = v
		}
	} else {
		if p.ID != nil {
			out["pid"] = *p.ID
		}
		out["title"] = p.Title
		out["content"] = p.Content
		out["image_object_name"] = p.ImageObjectName
		if p.WriterUni != "" {
			out["writer_uni"] = p.WriterUni
		}
	}

	if p.Comments != nil {
		out["comments"] = p.Comments
	}
	return json.Marshal(out)
}

// WithComments returns a copy of p with comments attached.
func (p Post) WithComments(comments []CommentWithReplies) Post {
	p.Comments = comments
	return p
}

// NewPost is the body forwarded to the post service when a user submits a post.
type NewPost struct {
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	ImageObjectName *string `json:"image_object_name"`
}
