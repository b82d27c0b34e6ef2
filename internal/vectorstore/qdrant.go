package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/tungtran1995/chatbot-server-test/internal/logging"
)

var qdrantTracer = otel.Tracer("chatbotd.vectorstore.qdrant")

// payloadContentKey holds the document text inside a point payload.
// All other payload entries are document metadata.
const payloadContentKey = "content"

// QdrantConfig holds configuration for the Qdrant gRPC store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default "localhost".
	Host string

	// Port is the gRPC port (6334), not the HTTP REST port (6333).
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey authenticates against Qdrant Cloud. Empty for local.
	APIKey string

	// VectorSize is the embedding dimension used when the store has
	// to create a missing collection.
	VectorSize int

	// RequestTimeout bounds individual requests. Default 30s.
	RequestTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// QdrantStore implements Store against a Qdrant server over gRPC.
//
// Qdrant has no lexical text index in this deployment, so SearchByText
// returns ErrTextSearchUnsupported and callers fall back to
// vector-only retrieval. Listing is durable: ListDocuments scrolls the
// collection and orders by the seq payload field.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *logging.Logger
}

// NewQdrantStore connects to Qdrant and verifies the connection with a
// health check.
func NewQdrantStore(config QdrantConfig, logger *logging.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	config.ApplyDefaults()

	qdrantConfig := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
	}
	if !config.UseTLS {
		qdrantConfig.GrpcOptions = append(qdrantConfig.GrpcOptions,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
	}

	client, err := qdrant.NewClient(qdrantConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: qdrant health check: %v", ErrConnectionFailed, err)
	}

	logger.Info(ctx, "qdrant connection established",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
	)

	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.config.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// AddDocuments upserts docs as points and returns their IDs. Qdrant
// requires UUID point IDs, so documents without an ID get a fresh
// UUID and documents with non-UUID IDs keep the original value in the
// doc_id payload field.
func (s *QdrantStore) AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	if err := s.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	ids := make([]string, len(docs))
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		pointID := ids[i]
		if _, err := uuid.Parse(pointID); err != nil {
			pointID = uuid.NewString()
		}

		payload := map[string]*qdrant.Value{
			payloadContentKey: qdrant.NewValueString(doc.Content),
			"doc_id":          qdrant.NewValueString(ids[i]),
		}
		for k, v := range doc.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}

		if len(doc.Vector) == 0 {
			// Points need a vector; zero-fill so metadata-only
			// documents (chat turns without embeddings) still land.
			doc.Vector = make([]float32, s.config.VectorSize)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("upserting into %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(otelcodes.Ok, "success")

	s.logger.Debug(ctx, "upserted documents to qdrant",
		zap.String("collection", collection),
		zap.Int("count", len(ids)),
	)

	return ids, nil
}

// SearchByVector returns up to k nearest neighbors of vector, ordered
// by descending cosine similarity.
func (s *QdrantStore) SearchByVector(ctx context.Context, collection string, vector []float32, k int, filters map[string]string) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.SearchByVector")
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

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildQdrantFilter(filters),
	})
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		} else {
			err = fmt.Errorf("querying %s: %w", collection, err)
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = resultFromPayload(r.GetId(), r.GetScore(), r.GetPayload())
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	span.SetStatus(otelcodes.Ok, "success")

	return out, nil
}

// SearchByText is not supported by this deployment; callers should
// fall back to vector-only retrieval.
func (s *QdrantStore) SearchByText(ctx context.Context, collection string, query string, k int, filters map[string]string) ([]SearchResult, error) {
	return nil, ErrTextSearchUnsupported
}

// ListDocuments scrolls the collection for points matching filters and
// returns them ordered by the seq payload field, oldest first. limit
// <= 0 means no limit; with a limit, the most recent entries win.
func (s *QdrantStore) ListDocuments(ctx context.Context, collection string, filters map[string]string, limit int) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.ListDocuments")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	const scrollPage = 256

	var (
		out    []SearchResult
		offset *qdrant.PointId
	)
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Filter:         buildQdrantFilter(filters),
			Limit:          qdrant.PtrOf(uint32(scrollPage)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			if isNotFound(err) {
				err = fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
			} else {
				err = fmt.Errorf("scrolling %s: %w", collection, err)
			}
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		for _, p := range points {
			out = append(out, resultFromPayload(p.GetId(), 0, p.GetPayload()))
		}
		if len(points) < scrollPage {
			break
		}
		offset = points[len(points)-1].GetId()
	}

	sort.SliceStable(out, func(i, j int) bool {
		return seqOf(out[i]) < seqOf(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	span.SetStatus(otelcodes.Ok, "success")

	return out, nil
}

// CollectionExists checks whether the collection exists on the server.
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()
	return s.client.CollectionExists(ctx, collection)
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return int(count), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func buildQdrantFilter(filters map[string]string) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		conditions = append(conditions, qdrant.NewMatch(k, filters[k]))
	}
	return &qdrant.Filter{Must: conditions}
}

func resultFromPayload(id *qdrant.PointId, score float32, payload map[string]*qdrant.Value) SearchResult {
	result := SearchResult{
		ID:       id.GetUuid(),
		Score:    score,
		Metadata: make(map[string]string, len(payload)),
	}
	for k, v := range payload {
		switch k {
		case payloadContentKey:
			result.Content = v.GetStringValue()
		case "doc_id":
			if docID := v.GetStringValue(); docID != "" {
				result.ID = docID
			}
		default:
			result.Metadata[k] = v.GetStringValue()
		}
	}
	return result
}

func seqOf(r SearchResult) int64 {
	n, err := strconv.ParseInt(r.Metadata["seq"], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}
