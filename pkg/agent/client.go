package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mentara/mentara/pkg/conversation"
	"github.com/rs/zerolog"
)

// Config configures the simulated participants.
type Config struct {
	StudentModel  string
	EducatorModel string
	FeedbackModel string
	MaxTokens     int
	Temperature   float64
}

// Client implements conversation.Agent on top of a chat Provider. One client
// serves both simulated roles plus the feedback analyst, each with its own
// model from the configuration.
type Client struct {
	provider Provider
	cfg      Config
	logger   zerolog.Logger
}

// NewClient builds an agent client over the given provider.
func NewClient(provider Provider, cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With().Str("provider", provider.Name()).Logger(),
	}
}

// Utterance produces the next line for the given role. The feedback argument
// is only consulted for the educator.
func (c *Client) Utterance(ctx context.Context, role conversation.Role, history []conversation.Turn, feedback *conversation.Feedback) (string, error) {
	var req CompletionRequest
	switch role {
	case conversation.RoleStudent:
		req = CompletionRequest{
			Model:       c.cfg.StudentModel,
			Prompt:      studentPrompt(history),
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: c.cfg.Temperature,
		}
	case conversation.RoleEducator:
		req = CompletionRequest{
			Model:       c.cfg.EducatorModel,
			Prompt:      educatorPrompt(history, feedback),
			MaxTokens:   c.cfg.MaxTokens,
			Temperature: c.cfg.Temperature,
		}
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}

	out, err := c.provider.Complete(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Str("role", string(role)).Msg("Completion failed")
		return "", fmt.Errorf("%s utterance: %w", role, err)
	}

	text := strings.TrimSpace(out)
	if text == "" {
		return "", fmt.Errorf("%s utterance: provider returned empty completion", role)
	}
	return text, nil
}

// Feedback analyzes the conversation so far.
func (c *Client) Feedback(ctx context.Context, history []conversation.Turn) (conversation.Feedback, error) {
	out, err := c.provider.Complete(ctx, CompletionRequest{
		Model:       c.cfg.FeedbackModel,
		Prompt:      feedbackPrompt(history),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Feedback completion failed")
		return conversation.Feedback{}, fmt.Errorf("feedback: %w", err)
	}

	fb := parseFeedback(out)
	if fb.Analysis == "" {
		return conversation.Feedback{}, fmt.Errorf("feedback: provider returned empty analysis")
	}
	return fb, nil
}
