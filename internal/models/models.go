package models

// Fragment is a chunked slice of document text, the unit of embedding and
// retrieval. Fragments are immutable once indexed.
type Fragment struct {
	Text           string
	SourceFilename string
}

// Answer is what the pipeline always returns for a question, even when the
// subject has no documents or the generator is unavailable.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}
