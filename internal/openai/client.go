package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/clinsim-ai/clinsim/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultCompletionModel is the OpenAI model used for question generation and scoring
	DefaultCompletionModel = openai.GPT4o
	// EmbeddingDimensions is the system-wide embedding dimension, validated on every response
	EmbeddingDimensions = 1536

	maxAttempts    = 3
	initialBackoff = 2 * time.Second
	completionTemp = 0.3
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionAPI defines the interface for structured text completion
type CompletionAPI interface {
	CreateCompletion(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error)
}

// Client wraps the OpenAI API for embeddings and chat completions
type Client struct {
	embeddings  EmbeddingAPI
	completions CompletionAPI
	dimensions  int
	backoff     time.Duration
}

// APIAdapter implements EmbeddingAPI and CompletionAPI against the real API.
type APIAdapter struct {
	client          *openai.Client
	embeddingModel  openai.EmbeddingModel
	completionModel string
}

func NewAPIAdapter(apiKey string, embeddingModel openai.EmbeddingModel, completionModel string) *APIAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if completionModel == "" {
		completionModel = DefaultCompletionModel
	}
	return &APIAdapter{
		client:          openai.NewClient(apiKey),
		embeddingModel:  embeddingModel,
		completionModel: completionModel,
	}
}

// CreateEmbeddings calls the OpenAI API to embed a batch of texts
func (a *APIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// CreateCompletion calls the OpenAI chat API, optionally constrained to JSON output
func (a *APIAdapter) CreateCompletion(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.completionModel,
		Temperature: completionTemp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey          string
	EmbeddingModel  openai.EmbeddingModel
	CompletionModel string
	Dimensions      int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = EmbeddingDimensions
	}
	adapter := NewAPIAdapter(cfg.APIKey, cfg.EmbeddingModel, cfg.CompletionModel)
	return &Client{
		embeddings:  adapter,
		completions: adapter,
		dimensions:  dimensions,
		backoff:     initialBackoff,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for a single text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// GenerateEmbeddings embeds a batch of texts, retrying transient failures
// with exponential backoff. The configured dimension is validated on every
// returned vector.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	var embeddings [][]float32
	err := c.retryWithBackoff(ctx, func() error {
		var callErr error
		embeddings, callErr = c.embeddings.CreateEmbeddings(ctx, texts)
		return callErr
	})
	if err != nil {
		return nil, oracleError(err, domain.ErrEmbeddingUnavailable)
	}

	for i, e := range embeddings {
		if len(e) != c.dimensions {
			return nil, domain.NewDomainErrorWithCause(
				domain.ErrCodeEmbeddingUnavailable,
				"embedding oracle unavailable",
				fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(e), c.dimensions),
			)
		}
	}

	return embeddings, nil
}

// Complete runs a chat completion, retrying transient failures.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonOutput bool) (string, error) {
	if userPrompt == "" {
		return "", ErrEmptyText
	}

	var out string
	err := c.retryWithBackoff(ctx, func() error {
		var callErr error
		out, callErr = c.completions.CreateCompletion(ctx, systemPrompt, userPrompt, jsonOutput)
		return callErr
	})
	if err != nil {
		return "", oracleError(err, nil)
	}

	return out, nil
}

// retryWithBackoff runs fn up to maxAttempts times, doubling the wait between
// attempts. Context cancellation aborts immediately.
func (c *Client) retryWithBackoff(ctx context.Context, fn func() error) error {
	backoff := c.backoff
	if backoff <= 0 {
		backoff = initialBackoff
	}
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}

// oracleError maps a raw API error to the domain taxonomy. Deadline errors
// become OracleTimeout; everything else wraps the given sentinel when one is
// provided.
func oracleError(err error, sentinel *domain.DomainError) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeOracleTimeout, "oracle call timed out", err)
	}
	if sentinel != nil {
		return domain.NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
	}
	return err
}
