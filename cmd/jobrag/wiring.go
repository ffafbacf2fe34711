package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hireloop/jobrag/internal/agent"
	"github.com/hireloop/jobrag/internal/chunker"
	"github.com/hireloop/jobrag/internal/config"
	"github.com/hireloop/jobrag/internal/grader"
	"github.com/hireloop/jobrag/internal/hyde"
	"github.com/hireloop/jobrag/internal/index"
	"github.com/hireloop/jobrag/internal/indexer"
	"github.com/hireloop/jobrag/internal/ollama"
	"github.com/hireloop/jobrag/internal/provider"
	"github.com/hireloop/jobrag/internal/retrieval"
	"github.com/hireloop/jobrag/internal/service"
)

// app holds the wired pipelines for one command invocation.
type app struct {
	cfg config.Config
	svc *service.Service
	idx index.VectorIndex
}

func (a *app) Close() error {
	return a.idx.Close()
}

func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)

	idx, err := openIndex(cfg)
	if err != nil {
		return nil, err
	}

	embedder, llm, err := buildProviders(cfg)
	if err != nil {
		idx.Close()
		return nil, err
	}

	ch := chunker.New(embedder, chunker.Config{
		ChunkSize:           cfg.Chunking.Size,
		ChunkOverlap:        cfg.Chunking.Overlap,
		MinChunkSize:        cfg.Chunking.MinSize,
		SimilarityThreshold: cfg.Chunking.Threshold,
	})
	ix := indexer.New(ch, embedder, idx, 0)

	// Cross-encoder stage, optional; the LLM scorer always backs it up.
	var crossEncoder provider.PairScorer
	if cfg.Rerank.URL != "" {
		crossEncoder = provider.WithScoreRetry(
			provider.NewRerankClient(cfg.Rerank.URL, cfg.Rerank.Model), provider.Retry{})
	}
	retriever := retrieval.New(embedder, idx, crossEncoder, retrieval.NewLLMScorer(llm), retrieval.Config{
		Stage1K:   cfg.Retrieval.Stage1K,
		Stage2K:   cfg.Retrieval.Stage2K,
		Threshold: cfg.Retrieval.Threshold,
	})

	var transformer agent.Transformer
	if cfg.HyDE.Enabled {
		transformer = hyde.New(llm)
	}
	ag := agent.New(retriever, transformer, grader.New(llm), llm, agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		MinRelevance:  cfg.Agent.MinRelevance,
		HyDE:          cfg.HyDE.Enabled,
	})

	return &app{
		cfg: cfg,
		svc: service.New(ix, ag, retriever, idx),
		idx: idx,
	}, nil
}

func openIndex(cfg config.Config) (index.VectorIndex, error) {
	if cfg.Index.Backend == "memory" {
		return index.NewChromem()
	}
	idx, err := index.OpenSQLite(cfg.Index.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", cfg.Index.DataDir, err)
	}
	return idx, nil
}

// buildProviders wires the chat completer from llm.provider and the
// embedder from embeddings.provider, which may differ.
func buildProviders(cfg config.Config) (provider.EmbeddingProvider, provider.Completer, error) {
	var (
		openaiP *provider.OpenAI
		ollamaP *provider.Ollama
	)
	build := func(name string) (provider.EmbeddingProvider, provider.Completer, error) {
		switch name {
		case "openai":
			if openaiP == nil {
				oa, err := provider.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, cfg.OpenAI.EmbedModel)
				if err != nil {
					return nil, nil, err
				}
				openaiP = oa
			}
			return openaiP, openaiP, nil
		default:
			if ollamaP == nil {
				client := ollama.New(cfg.Ollama.BaseURL)
				checkOllamaReady(client, cfg)
				ollamaP = provider.NewOllama(client, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel)
			}
			return ollamaP, ollamaP, nil
		}
	}

	_, llm, err := build(cfg.LLM.Provider)
	if err != nil {
		return nil, nil, err
	}
	embedder, _, err := build(cfg.EmbeddingsProvider())
	if err != nil {
		return nil, nil, err
	}
	return provider.WithRetry(embedder, provider.Retry{}), provider.WithCompleteRetry(llm, provider.Retry{}), nil
}

// checkOllamaReady warns early about a missing daemon or models instead of
// letting the first embedding call fail with a less helpful error.
func checkOllamaReady(client *ollama.Client, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if !client.IsRunning(ctx) {
		slog.Warn("ollama is not reachable; provider calls will fail", "base_url", cfg.Ollama.BaseURL)
		return
	}
	for _, model := range []string{cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel} {
		if !client.HasModel(ctx, model) {
			slog.Warn("model not pulled in ollama", "model", model)
		}
	}
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch {
	case strings.EqualFold(level, "debug"):
		logLevel = slog.LevelDebug
	case strings.EqualFold(level, "warn"):
		logLevel = slog.LevelWarn
	case strings.EqualFold(level, "error"):
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
