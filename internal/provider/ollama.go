package provider

import (
	"context"
	"fmt"

	"github.com/hireloop/jobrag/internal/ollama"
)

// Ollama adapts an ollama.Client to the EmbeddingProvider and Completer
// interfaces. Chat and embedding may use different local models.
type Ollama struct {
	client     *ollama.Client
	chatModel  string
	embedModel string
}

// NewOllama creates an Ollama provider using the given client and model names.
func NewOllama(client *ollama.Client, chatModel, embedModel string) *Ollama {
	return &Ollama{client: client, chatModel: chatModel, embedModel: embedModel}
}

// Embed returns the embedding vector for the given text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := o.client.Embed(ctx, o.embedModel, text)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embed: %v", ErrProviderUnavailable, err)
	}
	return vec, nil
}

// Complete sends the prompt as a single user message and returns the response.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat(ctx, o.chatModel, []ollama.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat: %v", ErrProviderUnavailable, err)
	}
	return resp, nil
}
