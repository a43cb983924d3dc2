package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrDependencyUnavailable marks request-time failures of the embedding or
// completion capability (network/service errors). Callers decide whether to
// surface or retry; the pipeline never retries on its own.
var ErrDependencyUnavailable = errors.New("ai dependency unavailable")

// Client provides the two model capabilities the pipeline needs: text
// embedding and raw prompt completion.
type Client interface {
	Embed(text string) ([]float32, error)
	Complete(ctx context.Context, prompt string) (string, error)
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
	ProjectID  string
	Provider   Provider
	Location   string
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	ctx := context.Background()
	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(ctx, config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a stub implementation of the Client interface for testing
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	return &StubClient{dim: dim}
}

// Embed implements the embedding functionality
func (s *StubClient) Embed(text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

// Complete echoes a canned answer so local runs work without credentials.
func (s *StubClient) Complete(ctx context.Context, prompt string) (string, error) {
	return fmt.Sprintf("[stub completion for %d-char prompt]", len(prompt)), nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
