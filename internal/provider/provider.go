// Package provider is the text-generation boundary. The engine hands it a
// rendered prompt and expects either text or a typed error classified as
// retryable or terminal.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	// ErrMissingCredentials indicates no API key was configured.
	ErrMissingCredentials = errors.New("provider: api key is required")
	// ErrMissingModel indicates no model was configured.
	ErrMissingModel = errors.New("provider: model is required")
	// ErrMissingPrompt indicates an empty rendered prompt.
	ErrMissingPrompt = errors.New("provider: prompt is required")
)

// Request is one generation call.
type Request struct {
	Model  string
	Prompt string
}

// Response is a successful generation.
type Response struct {
	Text       string
	TokensUsed int64
}

// Error wraps an upstream failure with its HTTP status and a retryability
// classification: rate-limit and server-error statuses retry, everything
// else is terminal for the attempt. Transport failures have Status zero and
// retry. Malformed (empty) payloads retry.
type Error struct {
	Status    int
	Retryable bool
	Err       error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider: upstream status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("provider: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is a provider error worth retrying.
func Retryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

// Generator is the narrow contract the turn executor depends on.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Config configures the OpenAI-compatible client. BaseURL may point at any
// compatible endpoint; APIKey normally arrives via the environment.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client calls an OpenAI-compatible chat-completion endpoint.
type Client struct {
	api   openai.Client
	model string
}

// NewClient validates the config and builds the client. Missing credentials
// or model surface immediately; no call is attempted.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, ErrMissingModel
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{api: openai.NewClient(opts...), model: cfg.Model}, nil
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Response{}, ErrMissingPrompt
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	})
	if err != nil {
		return Response{}, classify(err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return Response{}, &Error{Retryable: true, Err: errors.New("empty completion")}
	}
	return Response{
		Text:       completion.Choices[0].Message.Content,
		TokensUsed: completion.Usage.TotalTokens,
	}, nil
}

func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		status := apierr.StatusCode
		retryable := status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
		return &Error{Status: status, Retryable: retryable, Err: err}
	}
	// No HTTP status means the request never completed: a transport failure.
	return &Error{Retryable: true, Err: err}
}
