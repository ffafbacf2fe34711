package config

import (
	"fmt"
	"strings"
)

type Config struct {
	LLM        LLMConfig
	Embeddings EmbeddingsConfig
	Ollama     OllamaConfig
	OpenAI     OpenAIConfig
	Rerank     RerankConfig
	Index      IndexConfig
	Chunking   ChunkingConfig
	Retrieval  RetrievalConfig
	HyDE       HyDEConfig
	Agent      AgentConfig
	Log        LogConfig
}

// LLMConfig selects which provider backs chat completions, and embeddings
// unless embeddings.provider overrides it.
type LLMConfig struct {
	Provider string // "ollama" or "openai"
}

// EmbeddingsConfig optionally routes embeddings to a different provider
// than chat. Empty means "same as llm.provider".
type EmbeddingsConfig struct {
	Provider string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type OpenAIConfig struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

// RerankConfig points at a cross-encoder reranking service. An empty URL
// disables the cross-encoder stage; the LLM scorer takes over.
type RerankConfig struct {
	URL   string
	Model string
}

type IndexConfig struct {
	Backend string // "sqlite" or "memory"
	DataDir string
}

type ChunkingConfig struct {
	Size      int
	Overlap   int
	MinSize   int
	Threshold float64
}

type RetrievalConfig struct {
	Stage1K   int
	Stage2K   int
	Threshold float64
}

type HyDEConfig struct {
	Enabled bool
}

type AgentConfig struct {
	MaxIterations int
	MinRelevance  float64
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{Provider: "ollama"},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "nomic-embed-text",
		},
		OpenAI: OpenAIConfig{
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Index: IndexConfig{
			Backend: "sqlite",
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			Size:      1000,
			Overlap:   200,
			MinSize:   250,
			Threshold: 0.7,
		},
		Retrieval: RetrievalConfig{
			Stage1K: 50,
			Stage2K: 5,
		},
		HyDE: HyDEConfig{Enabled: true},
		Agent: AgentConfig{
			MaxIterations: 3,
			MinRelevance:  0.7,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.hireloop.jobrag) and the
// OpenAI key falls back to macOS Keychain. On Linux the backend is a JSON
// file at $XDG_CONFIG_HOME/jobrag/config.json and secrets come from
// environment variables.
//
// Environment variables (JOBRAG_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		if key, err := kc.Get("jobrag", "openai_api_key"); err == nil && key != "" {
			cfg.OpenAI.APIKey = key
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.LLM.Provider {
	case "ollama":
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key. "+
				"Set it via environment variable JOBRAG_OPENAI_API_KEY%s", apiKeyHint())
		}
	default:
		return fmt.Errorf("unknown llm.provider %q (want ollama or openai)", cfg.LLM.Provider)
	}

	switch cfg.Embeddings.Provider {
	case "", "ollama":
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key. "+
				"Set it via environment variable JOBRAG_OPENAI_API_KEY%s", apiKeyHint())
		}
	default:
		return fmt.Errorf("unknown embeddings.provider %q (want ollama or openai)", cfg.Embeddings.Provider)
	}

	switch cfg.Index.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown index.backend %q (want sqlite or memory)", cfg.Index.Backend)
	}
	return nil
}

// EmbeddingsProvider resolves the provider used for embeddings, falling
// back to the chat provider when none is set.
func (c Config) EmbeddingsProvider() string {
	if c.Embeddings.Provider != "" {
		return c.Embeddings.Provider
	}
	return c.LLM.Provider
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
