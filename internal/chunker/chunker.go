package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned when the window configuration could never
// advance through the text.
var ErrInvalidWindow = errors.New("chunker: overlap must be non-negative and smaller than chunk size")

const (
	DefaultChunkSize    = 500 // characters
	DefaultChunkOverlap = 50  // characters
)

// Chunk splits text into fixed-width windows of size characters, each window
// starting size-overlap after the previous one. The last chunk may be shorter
// than size. Empty text yields no chunks and no error so a degenerate
// document does not abort ingestion.
//
// Windowing is rune-indexed, so a multibyte character is never split across
// a chunk boundary, and has no sentence or paragraph awareness: chunk
// boundaries must be reproducible across runs for the derived fragment ids
// to stay stable.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w (size=%d, overlap=%d)", ErrInvalidWindow, size, overlap)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
