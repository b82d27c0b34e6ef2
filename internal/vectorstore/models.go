package vectorstore

import "regexp"

// Document represents a document to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the text content of the document.
	Content string

	// Vector is the pre-computed embedding. May be nil for documents
	// that are only ever read back by metadata filter (session log).
	Vector []float32

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]string
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text content.
	Content string

	// Score is the channel score. For vector search it is cosine
	// similarity (higher = closer); for lexical search it is the term
	// overlap ratio in [0,1].
	Score float32

	// Metadata contains the document metadata.
	Metadata map[string]string
}

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName checks a collection name against the naming rules.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return ErrInvalidCollectionName
	}
	return nil
}
