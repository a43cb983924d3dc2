package ai

import (
	"context"
	"errors"
	"testing"
)

func TestNewOpenAIClientDefaults(t *testing.T) {
	tests := []struct {
		name       string
		embedModel string
		wantDim    int
	}{
		{name: "default model", embedModel: "", wantDim: 1536},
		{name: "3-small", embedModel: "text-embedding-3-small", wantDim: 1536},
		{name: "3-large", embedModel: "text-embedding-3-large", wantDim: 3072},
		{name: "ada-002", embedModel: "text-embedding-ada-002", wantDim: 1536},
		{name: "unknown model", embedModel: "some-future-model", wantDim: 1536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &ClientConfig{Provider: ProviderOpenAI, EmbedModel: tt.embedModel}
			c := NewOpenAIClient(cfg)
			if c.Dim() != tt.wantDim {
				t.Errorf("Dim() = %d, want %d", c.Dim(), tt.wantDim)
			}
			if cfg.ChatModel == "" {
				t.Error("expected a default chat model to be set")
			}
		})
	}
}

func TestNewOpenAIClientPreservesExplicitDim(t *testing.T) {
	c := NewOpenAIClient(&ClientConfig{Provider: ProviderOpenAI, Dim: 256})
	if c.Dim() != 256 {
		t.Errorf("Dim() = %d, want 256", c.Dim())
	}
}

func TestOpenAIClientRequiresAPIKey(t *testing.T) {
	c := NewOpenAIClient(&ClientConfig{Provider: ProviderOpenAI})

	if _, err := c.Embed("text"); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("Embed with no API key: error = %v, want ErrDependencyUnavailable", err)
	}
	if _, err := c.Complete(context.Background(), "prompt"); !errors.Is(err, ErrDependencyUnavailable) {
		t.Errorf("Complete with no API key: error = %v, want ErrDependencyUnavailable", err)
	}
}
