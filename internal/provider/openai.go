package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements EmbeddingProvider and Completer against the OpenAI API.
type OpenAI struct {
	client     *openai.Client
	chatModel  string
	embedModel string
}

// NewOpenAI creates an OpenAI provider. Model names default to
// gpt-4o-mini / text-embedding-3-small when empty.
func NewOpenAI(apiKey, chatModel, embedModel string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	if embedModel == "" {
		embedModel = string(openai.SmallEmbedding3)
	}
	return &OpenAI{
		client:     openai.NewClient(apiKey),
		chatModel:  chatModel,
		embedModel: embedModel,
	}, nil
}

// Embed returns the embedding vector for the given text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, classify("embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embeddings: empty response", ErrProviderUnavailable)
	}
	return resp.Data[0].Embedding, nil
}

// Complete sends the prompt as a single user message and returns the response.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classify("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat: empty response", ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps OpenAI API failures onto the provider error taxonomy so
// callers can distinguish rate limiting from plain unavailability.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: openai %s: %v", ErrRateLimited, op, err)
	}
	return fmt.Errorf("%w: openai %s: %v", ErrProviderUnavailable, op, err)
}
