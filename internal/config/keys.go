package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "llm.provider", typ: kString, env: "JOBRAG_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "embeddings.provider", typ: kString, env: "JOBRAG_EMBEDDINGS_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Embeddings.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Embeddings.Provider },
	},
	{
		key: "ollama.base_url", typ: kString, env: "JOBRAG_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "JOBRAG_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "JOBRAG_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "openai.api_key", typ: kString, env: "JOBRAG_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.chat_model", typ: kString, env: "JOBRAG_OPENAI_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ChatModel },
	},
	{
		key: "openai.embed_model", typ: kString, env: "JOBRAG_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "rerank.base_url", typ: kString, env: "JOBRAG_RERANK_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Rerank.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Rerank.URL },
	},
	{
		key: "rerank.model", typ: kString, env: "JOBRAG_RERANK_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Rerank.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Rerank.Model },
	},
	{
		key: "index.backend", typ: kString, env: "JOBRAG_INDEX_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Index.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.Backend },
	},
	{
		key: "index.data_dir", typ: kString, env: "JOBRAG_INDEX_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Index.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Index.DataDir },
	},
	{
		key: "chunking.chunk_size", typ: kInt, env: "JOBRAG_CHUNKING_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Chunking.Size = v.(int) },
		extract: func(cfg Config) any { return cfg.Chunking.Size },
	},
	{
		key: "chunking.chunk_overlap", typ: kInt, env: "JOBRAG_CHUNKING_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Chunking.Overlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Chunking.Overlap },
	},
	{
		key: "chunking.min_chunk_size", typ: kInt, env: "JOBRAG_CHUNKING_MIN_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Chunking.MinSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Chunking.MinSize },
	},
	{
		key: "chunking.similarity_threshold", typ: kFloat, env: "JOBRAG_CHUNKING_SIMILARITY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Chunking.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Chunking.Threshold },
	},
	{
		key: "retrieval.stage1_k", typ: kInt, env: "JOBRAG_RETRIEVAL_STAGE1_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.Stage1K = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.Stage1K },
	},
	{
		key: "retrieval.stage2_k", typ: kInt, env: "JOBRAG_RETRIEVAL_STAGE2_K",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.Stage2K = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.Stage2K },
	},
	{
		key: "retrieval.rerank_threshold", typ: kFloat, env: "JOBRAG_RETRIEVAL_RERANK_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retrieval.Threshold },
	},
	{
		key: "hyde.enabled", typ: kBool, env: "JOBRAG_HYDE_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.HyDE.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.HyDE.Enabled },
	},
	{
		key: "agent.max_iterations", typ: kInt, env: "JOBRAG_AGENT_MAX_ITERATIONS",
		apply:   func(cfg *Config, v any) { cfg.Agent.MaxIterations = v.(int) },
		extract: func(cfg Config) any { return cfg.Agent.MaxIterations },
	},
	{
		key: "agent.min_relevance_score", typ: kFloat, env: "JOBRAG_AGENT_MIN_RELEVANCE_SCORE",
		apply:   func(cfg *Config, v any) { cfg.Agent.MinRelevance = v.(float64) },
		extract: func(cfg Config) any { return cfg.Agent.MinRelevance },
	},
	{
		key: "log.level", typ: kString, env: "JOBRAG_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
