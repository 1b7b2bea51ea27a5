package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"subject-rag/internal/config"
)

// ErrEmbedding marks a provider-side failure. It is never retried here; the
// caller aborts the current ingest or query.
var ErrEmbedding = errors.New("embedding: provider request failed")

// Embedder wraps a langchaingo embedder behind one batch code path, so
// vectors produced at ingestion time and at query time come from the same
// model call and share a vector space. One Embedder instance serves an index
// for the whole process lifetime.
type Embedder struct {
	impl  *embeddings.EmbedderImpl
	model string
}

// New builds an embedder for the configured backend.
func New(cfg *config.LLMConfig) (*Embedder, error) {
	impl, err := newEmbedderImpl(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("provider", cfg.Provider).
		Str("base_url", cfg.BaseURL).
		Str("model", cfg.Model).
		Msg("Initialized embedder")
	return &Embedder{impl: impl, model: cfg.Model}, nil
}

func newEmbedderImpl(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama embedding model: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey(), "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing openai embedding model: %w", err)
		}
		return embeddings.NewEmbedder(llm)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// Model reports the configured model identifier.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedTexts returns one vector per input string, order preserved.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string through the same batch path used
// for ingestion.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
