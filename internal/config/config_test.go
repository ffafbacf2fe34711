package config

import (
	"strconv"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]string
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	return i, true, err
}

func (m *mapBackend) SetString(key, val string) error { m.data[key] = val; return nil }
func (m *mapBackend) SetInt(key string, val int) error {
	m.data[key] = strconv.Itoa(val)
	return nil
}
func (m *mapBackend) Delete(key string) error { delete(m.data, key); return nil }

type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(&mapBackend{data: map[string]string{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("LLM.Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 || cfg.Chunking.MinSize != 250 {
		t.Errorf("chunking defaults = %+v", cfg.Chunking)
	}
	if cfg.Chunking.Threshold != 0.7 {
		t.Errorf("Chunking.Threshold = %v, want 0.7", cfg.Chunking.Threshold)
	}
	if cfg.Retrieval.Stage1K != 50 || cfg.Retrieval.Stage2K != 5 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
	if cfg.Agent.MaxIterations != 3 || cfg.Agent.MinRelevance != 0.7 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if !cfg.HyDE.Enabled {
		t.Error("HyDE.Enabled = false, want true")
	}
	if cfg.Index.Backend != "sqlite" {
		t.Errorf("Index.Backend = %q, want sqlite", cfg.Index.Backend)
	}
}

func TestBackendValuesApply(t *testing.T) {
	b := &mapBackend{data: map[string]string{
		"ollama.chat_model":             "mistral-nemo",
		"chunking.chunk_size":           "800",
		"chunking.similarity_threshold": "0.55",
		"hyde.enabled":                  "false",
		"agent.max_iterations":          "5",
	}}
	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Ollama.ChatModel != "mistral-nemo" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Chunking.Size != 800 {
		t.Errorf("Chunking.Size = %d, want 800", cfg.Chunking.Size)
	}
	if cfg.Chunking.Threshold != 0.55 {
		t.Errorf("Chunking.Threshold = %v, want 0.55", cfg.Chunking.Threshold)
	}
	if cfg.HyDE.Enabled {
		t.Error("HyDE.Enabled = true, want false")
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("Agent.MaxIterations = %d, want 5", cfg.Agent.MaxIterations)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("JOBRAG_OLLAMA_CHAT_MODEL", "llama3.2")
	t.Setenv("JOBRAG_RETRIEVAL_STAGE2_K", "8")

	b := &mapBackend{data: map[string]string{
		"ollama.chat_model":  "mistral-nemo",
		"retrieval.stage2_k": "3",
	}}
	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Ollama.ChatModel != "llama3.2" {
		t.Errorf("Ollama.ChatModel = %q, want env override", cfg.Ollama.ChatModel)
	}
	if cfg.Retrieval.Stage2K != 8 {
		t.Errorf("Retrieval.Stage2K = %d, want 8", cfg.Retrieval.Stage2K)
	}
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	b := &mapBackend{data: map[string]string{"llm.provider": "openai"}}

	if _, err := loadWith(b, mockKeychain{}); err == nil {
		t.Fatal("expected error for openai provider without key")
	}

	t.Setenv("JOBRAG_OPENAI_API_KEY", "sk-test")
	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith with key: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("OpenAI.APIKey = %q", cfg.OpenAI.APIKey)
	}
}

func TestOpenAIKeyFromKeychain(t *testing.T) {
	b := &mapBackend{data: map[string]string{"llm.provider": "openai"}}
	cfg, err := loadWith(b, mockKeychain{value: "sk-chain"})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-chain" {
		t.Errorf("OpenAI.APIKey = %q, want keychain value", cfg.OpenAI.APIKey)
	}
}

func TestInvalidProviderRejected(t *testing.T) {
	b := &mapBackend{data: map[string]string{"llm.provider": "bard"}}
	if _, err := loadWith(b, mockKeychain{}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestEmbeddingsProviderFollowsLLM(t *testing.T) {
	cfg, err := loadWith(&mapBackend{data: map[string]string{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if got := cfg.EmbeddingsProvider(); got != "ollama" {
		t.Errorf("EmbeddingsProvider() = %q, want ollama", got)
	}

	b := &mapBackend{data: map[string]string{"embeddings.provider": "openai"}}
	cfg, err = loadWith(b, mockKeychain{value: "sk-chain"})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if got := cfg.EmbeddingsProvider(); got != "openai" {
		t.Errorf("EmbeddingsProvider() = %q, want openai", got)
	}
}

func TestInvalidEmbeddingsProviderRejected(t *testing.T) {
	b := &mapBackend{data: map[string]string{"embeddings.provider": "cohere"}}
	if _, err := loadWith(b, mockKeychain{}); err == nil {
		t.Fatal("expected error for unknown embeddings provider")
	}
}

func TestInvalidIndexBackendRejected(t *testing.T) {
	b := &mapBackend{data: map[string]string{"index.backend": "redis"}}
	if _, err := loadWith(b, mockKeychain{}); err == nil {
		t.Fatal("expected error for unknown index backend")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg, err := loadWith(&mapBackend{data: map[string]string{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	for _, info := range ShowAll(cfg) {
		if info.Key == "openai.api_key" {
			t.Error("ShowAll exposed a secret key")
		}
	}
}
