package vectordb

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// Orthogonal unit vectors make similarity ranking exact: a query equal to an
// inserted vector has similarity 1 with it and 0 with everything else.
var (
	vecA = []float32{1, 0, 0, 0}
	vecB = []float32{0, 1, 0, 0}
	vecC = []float32{0, 0, 1, 0}
)

func meta(filename string) map[string]string {
	return map[string]string{"filename": filename}
}

func TestInsertAndSelfRetrieval(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	err := store.Insert(ctx, "1",
		[]string{"alpha text", "beta text", "gamma text"},
		[][]float32{vecA, vecB, vecC},
		[]map[string]string{meta("a.txt"), meta("b.txt"), meta("c.txt")},
	)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	hits, err := store.Search(ctx, "1", vecB, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].Content != "beta text" {
		t.Errorf("expected self-retrieval to rank the matching fragment first, got %q", hits[0].Content)
	}
	if hits[0].Similarity < 0.99 {
		t.Errorf("expected similarity ~1 for exact vector, got %f", hits[0].Similarity)
	}
	if hits[0].Metadata["filename"] != "b.txt" {
		t.Errorf("metadata not preserved: %v", hits[0].Metadata)
	}
}

func TestSearch_ClampsKToCollectionSize(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	if err := store.Insert(ctx, "1",
		[]string{"only one"},
		[][]float32{vecA},
		[]map[string]string{meta("a.txt")},
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	hits, err := store.Search(ctx, "1", vecA, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit with k clamped, got %d", len(hits))
	}
}

func TestSearch_UnknownSubject(t *testing.T) {
	store := NewInMemory()

	_, err := store.Search(context.Background(), "404", vecA, 5)
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestInsert_LengthMismatch(t *testing.T) {
	store := NewInMemory()

	err := store.Insert(context.Background(), "1",
		[]string{"a", "b"},
		[][]float32{vecA},
		[]map[string]string{meta("a.txt"), meta("b.txt")},
	)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestInsert_EmptyBatchIsNoop(t *testing.T) {
	store := NewInMemory()

	if err := store.Insert(context.Background(), "1", nil, nil, nil); err != nil {
		t.Fatalf("empty insert must be a no-op, got %v", err)
	}
	if store.HasSubject("1") {
		t.Errorf("empty insert must not create a collection")
	}
}

func TestSubjectIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	if err := store.Insert(ctx, "1",
		[]string{"subject one fragment"},
		[][]float32{vecA},
		[]map[string]string{meta("one.txt")},
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.Insert(ctx, "2",
		[]string{"subject two fragment"},
		[][]float32{vecA},
		[]map[string]string{meta("two.txt")},
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	hits, err := store.Search(ctx, "1", vecA, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for _, h := range hits {
		if h.Metadata["filename"] != "one.txt" {
			t.Fatalf("subject 1 search leaked fragment from %q", h.Metadata["filename"])
		}
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly subject 1's fragment, got %d hits", len(hits))
	}
}

func TestInsert_BatchIsAtomicallyVisible(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	// Seed the collection so concurrent searches have something to hit
	// before the batch lands.
	if err := store.Insert(ctx, "1",
		[]string{"seed fragment"},
		[][]float32{vecA},
		[]map[string]string{meta("seed.txt")},
	); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	const batchSize = 50
	texts := make([]string, batchSize)
	vectors := make([][]float32, batchSize)
	metadatas := make([]map[string]string, batchSize)
	for i := range texts {
		texts[i] = fmt.Sprintf("batch fragment %d", i)
		vectors[i] = vecA
		metadatas[i] = meta("batch.txt")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := store.Insert(ctx, "1", texts, vectors, metadatas); err != nil {
			t.Errorf("batch insert failed: %v", err)
		}
	}()

	// Every search racing the insert must see either only the seed or the
	// seed plus the whole batch, never a partially written batch.
	for inserted := false; !inserted; {
		select {
		case <-done:
			inserted = true
		default:
		}
		hits, err := store.Search(ctx, "1", vecA, batchSize+1)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if n := len(hits); n != 1 && n != batchSize+1 {
			t.Fatalf("search observed a partially visible batch: %d hits", n)
		}
	}

	hits, err := store.Search(ctx, "1", vecA, batchSize+1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != batchSize+1 {
		t.Fatalf("expected full batch after insert, got %d hits", len(hits))
	}
}

func TestFragmentIDDeterminism(t *testing.T) {
	a := fragmentID("7", 3, "same content")
	b := fragmentID("7", 3, "same content")
	if a != b {
		t.Errorf("identical inputs must derive identical ids: %s vs %s", a, b)
	}
	if fragmentID("7", 3, "other content") == a {
		t.Errorf("distinct content must derive distinct ids")
	}
	if fragmentID("8", 3, "same content") == a {
		t.Errorf("distinct subjects must derive distinct ids")
	}
}
