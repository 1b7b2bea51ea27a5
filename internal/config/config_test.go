package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.RAG.ChunkSize != 500 {
		t.Errorf("expected chunk_size=500, got %d", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ChunkOverlap != 50 {
		t.Errorf("expected chunk_overlap=50, got %d", cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK != 5 {
		t.Errorf("expected top_k=5, got %d", cfg.RAG.TopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("rag:\n  chunk_size: 300\n  chunk_overlap: 30\n  top_k: 3\n  persist_dir: /tmp/vec\nserver:\n  addr: \":9090\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RAG.ChunkSize != 300 || cfg.RAG.ChunkOverlap != 30 || cfg.RAG.TopK != 3 {
		t.Errorf("file values not applied: %+v", cfg.RAG)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %q", cfg.Server.Addr)
	}
	// Untouched sections keep defaults.
	if cfg.Embedding.Model == "" {
		t.Errorf("expected default embedding model to survive overlay")
	}
}

func TestValidate_RejectsBadWindow(t *testing.T) {
	cfg := Default()
	cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize

	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for overlap >= chunk_size, got %v", err)
	}
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "voodoo"

	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown provider, got %v", err)
	}
}

func TestAPIKey_ResolvesFromEnv(t *testing.T) {
	t.Setenv("TEST_RAG_KEY", "sk-test")
	l := LLMConfig{APIKeyEnv: "TEST_RAG_KEY"}
	if l.APIKey() != "sk-test" {
		t.Errorf("expected key from env, got %q", l.APIKey())
	}
	if (LLMConfig{}).APIKey() != "" {
		t.Errorf("expected empty key when env name unset")
	}
}
