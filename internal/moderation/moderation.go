// Package moderation reviews user content with an OpenAI-compatible API:
// a moderation check for unsafe content followed by a grammar correction.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/emilythestrangee/main-feed/backend/internal/apperr"
)

const (
	Collaborator = "moderation"

	// RejectionMarker is what the model answers instead of corrected text
	// when it refuses the content.
	RejectionMarker = "REJECTED"

	DefaultModel = "gpt-4o-mini"

	systemPrompt = "You proofread posts for a student community feed. " +
		"Correct grammar and spelling in the user's text without changing its meaning, tone or language. " +
		"Reply with the corrected text only. " +
		"If the text is hateful, harassing, sexual or violent, reply with exactly " + RejectionMarker + "."
)

// Review is the outcome of reviewing a piece of content.
type Review struct {
	Corrected string
	Rejected  bool
	Reason    string
}

// Config configures the OpenAI reviewer.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIReviewer reviews content with the moderation and chat completion
// endpoints.
type OpenAIReviewer struct {
	client *openai.Client
	model  string
}

func NewOpenAIReviewer(cfg Config) *OpenAIReviewer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	slog.Info("Initializing OpenAI moderation client", "model", model)
	return &OpenAIReviewer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Review flags unsafe content and otherwise returns the grammar-corrected
// text. Failures to reach the API are reported as UpstreamUnavailable; the
// API's own status codes are never passed through to clients.
func (o *OpenAIReviewer) Review(ctx context.Context, content string) (Review, error) {
	mod, err := o.client.Moderations(ctx, openai.ModerationRequest{Input: content})
	if err != nil {
		return Review{}, apperr.Upstream(apperr.UpstreamUnavailable, Collaborator, 0, "Content review is unavailable", err)
	}
	for _, result := range mod.Results {
		if result.Flagged {
			return Review{Rejected: true, Reason: "flagged by moderation"}, nil
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
	})
	if err != nil {
		return Review{}, apperr.Upstream(apperr.UpstreamUnavailable, Collaborator, 0, "Content review is unavailable", err)
	}
	if len(resp.Choices) == 0 {
		return Review{}, apperr.Upstream(apperr.UpstreamUnavailable, Collaborator, 0, "Content review is unavailable", fmt.Errorf("no choices returned"))
	}

	corrected := strings.TrimSpace(resp.Choices[0].Message.Content)
	if corrected == RejectionMarker {
		return Review{Rejected: true, Reason: "rejected by reviewer"}, nil
	}
	if corrected == "" {
		corrected = content
	}
	return Review{Corrected: corrected}, nil
}
