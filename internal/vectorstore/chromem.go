package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

var chromemTracer = otel.Tracer("chatbotd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ChromemStore implements Store using chromem-go, an embeddable vector
// database with persistence to gob files. No external service needed,
// which makes it the default provider for local development.
//
// chromem has no lexical index and no way to enumerate documents by
// metadata, so the store keeps an in-process registry of everything
// added through it: an insertion-ordered slice per collection. The
// registry backs SearchByText (term-overlap scoring) and
// ListDocuments (session logs). It is not rebuilt from disk on
// restart; collections that need durable listing should use the
// qdrant provider.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *logging.Logger

	mu       sync.RWMutex
	registry map[string][]registryEntry
}

type registryEntry struct {
	id       string
	content  string
	tokens   []string
	metadata map[string]string
}

// NewChromemStore creates a ChromemStore persisting to config.Path.
func NewChromemStore(config ChromemConfig, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("%w: chromem path is required", ErrInvalidConfig)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: creating chromem DB: %v", ErrConnectionFailed, err)
	}

	store := &ChromemStore{
		db:       db,
		config:   config,
		logger:   logger,
		registry: make(map[string][]registryEntry),
	}

	logger.Info(context.Background(), "chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// noEmbedFunc is installed on every collection. Vectors are always
// computed by the caller, so chromem must never embed on its own.
func noEmbedFunc(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("embedding must be precomputed by the caller")
}

func (s *ChromemStore) getOrCreateCollection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	collection, err := s.db.GetOrCreateCollection(name, nil, noEmbedFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", name, err)
	}
	return collection, nil
}

// AddDocuments stores docs in the named collection and returns their
// IDs, generating one for each doc without an explicit ID. Documents
// without a vector are recorded in the registry only: they remain
// listable and text-searchable but never appear in vector results.
func (s *ChromemStore) AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	col, err := s.getOrCreateCollection(collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ids := make([]string, len(docs))
	entries := make([]registryEntry, len(docs))
	var chromemDocs []chromem.Document

	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}

		metadata := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		entries[i] = registryEntry{
			id:       ids[i],
			content:  doc.Content,
			tokens:   tokenize(doc.Content),
			metadata: metadata,
		}

		if len(doc.Vector) > 0 {
			chromemDocs = append(chromemDocs, chromem.Document{
				ID:        ids[i],
				Content:   doc.Content,
				Metadata:  metadata,
				Embedding: doc.Vector,
			})
		}
	}

	if len(chromemDocs) > 0 {
		if err := col.AddDocuments(ctx, chromemDocs, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("adding documents to %s: %w", collection, err)
		}
	}

	s.mu.Lock()
	s.registry[collection] = append(s.registry[collection], entries...)
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug(ctx, "added documents to chromem",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
		zap.Int("with_vectors", len(chromemDocs)),
	)

	return ids, nil
}

// SearchByVector returns up to k nearest neighbors of vector, ordered
// by descending cosine similarity.
func (s *ChromemStore) SearchByVector(ctx context.Context, collection string, vector []float32, k int, filters map[string]string) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SearchByVector")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	col := s.db.GetCollection(collection, noEmbedFunc)
	if col == nil {
		if !s.knownCollection(collection) {
			err := fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
			span.RecordError(err)
			return nil, err
		}
		return nil, nil
	}

	// chromem rejects n > collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.QueryEmbedding(ctx, vector, k, filters, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	span.SetStatus(codes.Ok, "success")

	return out, nil
}

// SearchByText scores documents by the fraction of query terms they
// contain and returns up to k matches with a positive score, ordered
// by descending score with insertion order breaking ties.
func (s *ChromemStore) SearchByText(ctx context.Context, collection string, query string, k int, filters map[string]string) ([]SearchResult, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.SearchByText")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	entries, ok := s.registry[collection]
	if !ok {
		s.mu.RUnlock()
		if s.db.GetCollection(collection, noEmbedFunc) == nil {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return nil, nil
	}

	type scored struct {
		entry registryEntry
		score float32
		pos   int
	}
	var matches []scored
	for i, entry := range entries {
		if !matchesFilters(entry.metadata, filters) {
			continue
		}
		score := termOverlap(queryTokens, entry.tokens)
		if score > 0 {
			matches = append(matches, scored{entry: entry, score: score, pos: i})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].pos < matches[j].pos
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	out := make([]SearchResult, len(matches))
	for i, m := range matches {
		out[i] = SearchResult{
			ID:       m.entry.id,
			Content:  m.entry.content,
			Score:    m.score,
			Metadata: m.entry.metadata,
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	span.SetStatus(codes.Ok, "success")

	return out, nil
}

// ListDocuments returns documents matching filters in insertion order.
// limit <= 0 means no limit.
func (s *ChromemStore) ListDocuments(ctx context.Context, collection string, filters map[string]string, limit int) ([]SearchResult, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ListDocuments")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.registry[collection]
	if !ok {
		if s.db.GetCollection(collection, noEmbedFunc) == nil {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return nil, nil
	}

	var out []SearchResult
	for _, entry := range entries {
		if !matchesFilters(entry.metadata, filters) {
			continue
		}
		out = append(out, SearchResult{
			ID:       entry.id,
			Content:  entry.content,
			Metadata: entry.metadata,
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))

	return out, nil
}

// CollectionExists reports whether the collection has been created.
func (s *ChromemStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return false, err
	}
	if s.knownCollection(collection) {
		return true, nil
	}
	return s.db.GetCollection(collection, noEmbedFunc) != nil, nil
}

// Count returns the number of documents in the collection.
func (s *ChromemStore) Count(ctx context.Context, collection string) (int, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	s.mu.RLock()
	entries, ok := s.registry[collection]
	s.mu.RUnlock()
	if ok {
		return len(entries), nil
	}

	col := s.db.GetCollection(collection, noEmbedFunc)
	if col == nil {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return col.Count(), nil
}

// Close releases resources. chromem persists synchronously, so this is
// a no-op kept for Store symmetry.
func (s *ChromemStore) Close() error {
	return nil
}

func (s *ChromemStore) knownCollection(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[name]
	return ok
}

// matchesFilters reports whether metadata satisfies every filter
// entry by exact equality.
func matchesFilters(metadata, filters map[string]string) bool {
	for k, v := range filters {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
