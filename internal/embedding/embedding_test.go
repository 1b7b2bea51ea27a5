package embedding

import (
	"context"
	"testing"

	"subject-rag/internal/config"
)

func TestNew_OllamaEmbedder(t *testing.T) {
	cfg := &config.LLMConfig{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "nomic-embed-text",
	}

	e, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Model() != "nomic-embed-text" {
		t.Errorf("expected Model() to report the configured model, got %q", e.Model())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := &config.LLMConfig{Provider: "voodoo", Model: "m"}

	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestEmbedTexts_EmptyInput(t *testing.T) {
	cfg := &config.LLMConfig{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "nomic-embed-text",
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vectors, err := e.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty input must not call the provider, got %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors for empty input, got %v", vectors)
	}
}
