package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/embeddings"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

var tracer = otel.Tracer("chatbotd.catalog")

// ItemResult is the outcome for one product in a batch.
type ItemResult struct {
	ID    string
	Title string
	Err   error
}

// Report summarizes an ingestion batch.
type Report struct {
	Results []ItemResult
}

// Succeeded returns the number of products stored.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of products rejected or errored.
func (r Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Ingestor embeds and stores catalog products.
type Ingestor struct {
	store      vectorstore.Store
	provider   embeddings.Provider
	collection string
	logger     *logging.Logger
}

// NewIngestor creates an Ingestor writing to the given collection.
func NewIngestor(store vectorstore.Store, provider embeddings.Provider, collection string, logger *logging.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{
		store:      store,
		provider:   provider,
		collection: collection,
		logger:     logger,
	}, nil
}

// IngestAll processes every product, one at a time. A bad record never
// aborts the batch: each failure is captured in the report instead.
func (i *Ingestor) IngestAll(ctx context.Context, products []Product) Report {
	ctx, span := tracer.Start(ctx, "Ingestor.IngestAll")
	defer span.End()

	report := Report{Results: make([]ItemResult, 0, len(products))}
	for _, product := range products {
		result := i.ingestOne(ctx, product)
		if result.Err != nil {
			i.logger.Warn(ctx, "product rejected",
				zap.String("id", result.ID),
				zap.String("title", result.Title),
				zap.Error(result.Err),
			)
		}
		report.Results = append(report.Results, result)
	}

	span.SetAttributes(
		attribute.Int("succeeded", report.Succeeded()),
		attribute.Int("failed", report.Failed()),
	)

	i.logger.Info(ctx, "catalog ingestion finished",
		zap.Int("total", len(products)),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()),
	)

	return report
}

func (i *Ingestor) ingestOne(ctx context.Context, product Product) ItemResult {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	result := ItemResult{ID: product.ID, Title: product.Title}

	if err := product.Validate(); err != nil {
		result.Err = err
		return result
	}

	text := product.EmbeddingText()
	vector, err := i.provider.EmbedQuery(ctx, text)
	if err != nil {
		result.Err = fmt.Errorf("embedding product: %w", err)
		return result
	}

	_, err = i.store.AddDocuments(ctx, i.collection, []vectorstore.Document{{
		ID:       product.ID,
		Content:  text,
		Vector:   vector,
		Metadata: product.Metadata(),
	}})
	if err != nil {
		result.Err = fmt.Errorf("storing product: %w", err)
	}
	return result
}

// LoadProducts decodes a product JSON array in the export format the
// shop uses (name, Description, price, picture, category).
func LoadProducts(r io.Reader) ([]Product, error) {
	var products []Product
	dec := json.NewDecoder(r)
	if err := dec.Decode(&products); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}
	return products, nil
}
