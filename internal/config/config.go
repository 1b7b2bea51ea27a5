package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"subject-rag/internal/chunker"
)

// ErrInvalid marks configuration that must abort startup.
var ErrInvalid = errors.New("config: invalid")

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Embedding LLMConfig      `yaml:"embedding"`
	Inference LLMConfig      `yaml:"inference"`
	RAG       RAGConfig      `yaml:"rag"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	UploadDir string `yaml:"upload_dir"`
}

// DatabaseConfig points at the Postgres metadata store. An empty DSN means
// the service runs without subject/document bookkeeping.
type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	PasswordEnv string `yaml:"password_env"`
	Debug       bool   `yaml:"debug"`
}

// LLMConfig describes one model endpoint. Credentials are never stored in the
// file, only the name of the environment variable carrying them.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "ollama"
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the credential from the environment. Empty when unset.
func (l LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

type RAGConfig struct {
	PersistDir   string `yaml:"persist_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	// MinSimilarity filters retrieved fragments below this cosine similarity
	// before they reach the generator. 0 disables filtering; all top-k hits
	// are forwarded and the model judges relevance.
	MinSimilarity float32 `yaml:"min_similarity"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8000",
			UploadDir: "./uploads",
		},
		Database: DatabaseConfig{
			PasswordEnv: "DATABASE_PASSWORD",
		},
		Embedding: LLMConfig{
			Provider:  "ollama",
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			APIKeyEnv: "EMBEDDING_API_KEY",
		},
		Inference: LLMConfig{
			Provider:  "openai",
			BaseURL:   "https://openrouter.ai/api",
			Model:     "google/gemini-2.5-flash",
			APIKeyEnv: "OPENROUTER_API_KEY",
		},
		RAG: RAGConfig{
			PersistDir:   "./chromem",
			ChunkSize:    chunker.DefaultChunkSize,
			ChunkOverlap: chunker.DefaultChunkOverlap,
			TopK:         5,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; the defaults are used as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings that would corrupt the pipeline at runtime,
// most importantly a chunk window that can never advance.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be non-negative and smaller than chunk_size (%d)",
			ErrInvalid, c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalid, c.RAG.TopK)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding model must be set", ErrInvalid)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalid, c.Embedding.Provider)
	}
	if c.RAG.PersistDir == "" {
		return fmt.Errorf("%w: rag persist_dir must be set", ErrInvalid)
	}
	return nil
}
