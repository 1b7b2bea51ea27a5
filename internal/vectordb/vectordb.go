package vectordb

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCollectionNotFound means no documents were ever ingested for the
	// subject. It is an expected business outcome, not a system error.
	ErrCollectionNotFound = errors.New("vectordb: no collection for subject")

	// ErrLengthMismatch is a call-site bug: texts, vectors and metadatas must
	// line up one to one.
	ErrLengthMismatch = errors.New("vectordb: texts, vectors and metadatas must have equal length")
)

// Hit is one retrieved fragment, ordered by descending cosine similarity.
type Hit struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// Store keeps one chromem-go collection per subject. Collections are created
// lazily on first insert and persist across restarts. All vectors in a
// collection must come from one embedding model; the caller guarantees that
// by holding a single embedder for the store's lifetime.
type Store struct {
	db *chromem.DB

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewPersistent opens (or creates) a store rooted at path.
func NewPersistent(path string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	return &Store{db: db, locks: map[string]*sync.RWMutex{}}, nil
}

// NewInMemory returns a non-persistent store, used in tests.
func NewInMemory() *Store {
	return &Store{db: chromem.NewDB(), locks: map[string]*sync.RWMutex{}}
}

// CollectionName maps a subject id to its collection. The mapping is
// deterministic and collision-free for opaque ids, which is all that keeps
// one subject's fragments out of another subject's results.
func CollectionName(subjectID string) string {
	return "subject_" + subjectID
}

// collectionLock hands out one RWMutex per collection. chromem adds batch
// documents one at a time, so the lock is what makes a batch atomically
// visible: Insert holds it for writing across the whole batch, Search for
// reading.
func (s *Store) collectionLock(name string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[name] = l
	}
	return l
}

// Insert adds a batch of (text, vector, metadata) triples to the subject's
// collection, creating it if this is the subject's first ingestion. Each item
// gets an id derived from the subject, its position in the batch and a hash
// of its content, so re-ingesting identical content collides onto the same id
// (best-effort dedup) while distinct content never does.
func (s *Store) Insert(ctx context.Context, subjectID string, texts []string, vectors [][]float32, metadatas []map[string]string) error {
	if len(texts) != len(vectors) || len(texts) != len(metadatas) {
		return fmt.Errorf("%w: %d texts, %d vectors, %d metadatas",
			ErrLengthMismatch, len(texts), len(vectors), len(metadatas))
	}
	if len(texts) == 0 {
		return nil
	}

	name := CollectionName(subjectID)
	lock := s.collectionLock(name)
	lock.Lock()
	defer lock.Unlock()

	collection, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection %s: %w", name, err)
	}

	docs := make([]chromem.Document, len(texts))
	for i := range texts {
		docs[i] = chromem.Document{
			ID:        fragmentID(subjectID, i, texts[i]),
			Content:   texts[i],
			Metadata:  metadatas[i],
			Embedding: vectors[i],
		}
	}

	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents to %s: %w", name, err)
	}
	log.Info().Str("collection", name).Int("count", len(docs)).Msg("Added fragments to vector database")
	return nil
}

// Search returns up to k hits for the query vector, most similar first. A
// subject without a collection yields ErrCollectionNotFound; the caller maps
// that to a "no documents yet" answer.
func (s *Store) Search(ctx context.Context, subjectID string, queryVector []float32, k int) ([]Hit, error) {
	name := CollectionName(subjectID)
	lock := s.collectionLock(name)
	lock.RLock()
	defer lock.RUnlock()

	collection := s.db.GetCollection(name, nil)
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, subjectID)
	}

	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryVector,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", name, err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		}
	}
	return hits, nil
}

// HasSubject reports whether the subject has a collection yet.
func (s *Store) HasSubject(subjectID string) bool {
	return s.db.GetCollection(CollectionName(subjectID), nil) != nil
}

func fragmentID(subjectID string, index int, content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s-%d-%x", subjectID, index, sum[:6])
}
