package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"subject-rag/internal/chunker"
	"subject-rag/internal/config"
	"subject-rag/internal/models"
	"subject-rag/internal/vectordb"
)

// Embedder turns text into vectors. Indexing and querying must go through
// the same instance so both sides live in one vector space.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Outcome tags what retrieval found for a question.
type Outcome int

const (
	// OutcomeNoIndex: the subject has no ingested documents yet.
	OutcomeNoIndex Outcome = iota
	// OutcomeNoMatch: an index exists but retrieval produced no fragments.
	OutcomeNoMatch
	// OutcomeMatches: top-k fragments were retrieved.
	OutcomeMatches
)

// Retrieval is the result of the retrieve step. Fragments are ordered most
// similar first; Sources holds the distinct filenames in first-seen order.
type Retrieval struct {
	Outcome   Outcome
	Fragments []models.Fragment
	Sources   []string
}

// Service is the retrieval-augmented answering pipeline for subject-scoped
// document collections.
type Service struct {
	store     *vectordb.Store
	embedder  Embedder
	generator Generator // nil when no inference credentials are configured

	chunkSize     int
	chunkOverlap  int
	topK          int
	minSimilarity float32
}

func New(store *vectordb.Store, embedder Embedder, generator Generator, cfg config.RAGConfig) *Service {
	return &Service{
		store:         store,
		embedder:      embedder,
		generator:     generator,
		chunkSize:     cfg.ChunkSize,
		chunkOverlap:  cfg.ChunkOverlap,
		topK:          cfg.TopK,
		minSimilarity: cfg.MinSimilarity,
	}
}

// Ingest chunks rawText, embeds the chunks in one batch and inserts them into
// the subject's collection. Returns the number of fragments indexed. An empty
// document indexes nothing and is not an error.
func (s *Service) Ingest(ctx context.Context, subjectID, rawText, sourceFilename string) (int, error) {
	chunks, err := chunker.Chunk(rawText, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		log.Info().Str("subject", subjectID).Str("file", sourceFilename).Msg("No chunks generated from document")
		return 0, nil
	}

	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks of %s: %w", len(chunks), sourceFilename, err)
	}

	metadatas := make([]map[string]string, len(chunks))
	for i := range chunks {
		metadatas[i] = map[string]string{
			"filename":   sourceFilename,
			"subject_id": subjectID,
		}
	}

	if err := s.store.Insert(ctx, subjectID, chunks, vectors, metadatas); err != nil {
		return 0, err
	}
	log.Info().Str("subject", subjectID).Str("file", sourceFilename).Int("fragments", len(chunks)).Msg("Ingested document")
	return len(chunks), nil
}

// Retrieve embeds the question and fetches the top-k fragments from the
// subject's collection. All retrieved fragments are forwarded regardless of
// distance unless a minimum similarity is configured; a cutoff that filters
// everything still reports OutcomeNoMatch, never an error.
func (s *Service) Retrieve(ctx context.Context, subjectID, question string, k int) (Retrieval, error) {
	queryVector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return Retrieval{}, fmt.Errorf("embedding question for subject %s: %w", subjectID, err)
	}

	hits, err := s.store.Search(ctx, subjectID, queryVector, k)
	if errors.Is(err, vectordb.ErrCollectionNotFound) {
		log.Warn().Str("subject", subjectID).Msg("No collection found for subject")
		return Retrieval{Outcome: OutcomeNoIndex}, nil
	}
	if err != nil {
		return Retrieval{}, err
	}

	if s.minSimilarity > 0 {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Similarity >= s.minSimilarity {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	if len(hits) == 0 {
		log.Info().Str("subject", subjectID).Str("question", question).Msg("No matching fragments found")
		return Retrieval{Outcome: OutcomeNoMatch}, nil
	}

	fragments := make([]models.Fragment, len(hits))
	seen := make(map[string]bool)
	var sources []string
	for i, h := range hits {
		filename := h.Metadata["filename"]
		if filename == "" {
			filename = "unknown"
		}
		fragments[i] = models.Fragment{Text: h.Content, SourceFilename: filename}
		if !seen[filename] {
			seen[filename] = true
			sources = append(sources, filename)
		}
	}
	return Retrieval{Outcome: OutcomeMatches, Fragments: fragments, Sources: sources}, nil
}

// Answer runs the full query pipeline and always returns a well-formed
// Answer for content-related outcomes. NoIndex and NoMatch short-circuit
// with canned answers and never invoke the generator; generation failures
// are downgraded into the answer text rather than propagated. Only
// embedding and index infrastructure failures surface as errors.
func (s *Service) Answer(ctx context.Context, subjectID, question string) (models.Answer, error) {
	retrieval, err := s.Retrieve(ctx, subjectID, question, s.topK)
	if err != nil {
		return models.Answer{}, err
	}

	switch retrieval.Outcome {
	case OutcomeNoIndex:
		return models.Answer{Text: models.NoDocumentsMessage, Sources: []string{}}, nil
	case OutcomeNoMatch:
		return models.Answer{Text: models.NoInformationMessage, Sources: []string{}}, nil
	}

	if s.generator == nil {
		return models.Answer{Text: models.LLMNotConfiguredMessage, Sources: retrieval.Sources}, nil
	}

	prompt := buildPrompt(question, retrieval.Fragments)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Str("subject", subjectID).Msg("Error generating response from LLM")
		return models.Answer{
			Text:    fmt.Sprintf("Error generating response from LLM: %v", err),
			Sources: retrieval.Sources,
		}, nil
	}

	text = strings.TrimSpace(text)
	if text == models.NoInformationMessage {
		// The context contributed nothing to the answer, so no file is a source.
		return models.Answer{Text: text, Sources: []string{}}, nil
	}
	return models.Answer{Text: text, Sources: retrieval.Sources}, nil
}

// buildPrompt joins the fragment texts in retrieval order, blank-line
// separated, into the grounding template.
func buildPrompt(question string, fragments []models.Fragment) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return fmt.Sprintf(models.GroundedPromptTemplate, strings.Join(texts, "\n\n"), question)
}
