package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

func TestPreprocessText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and strips symbols",
			input: "iPhone 15 Pro (256GB) - Chính hãng!",
			want:  "iphone 15 pro 256gb chính hãng",
		},
		{
			name:  "keeps commas and periods",
			input: "Màn hình 6.1 inch, chip A16",
			want:  "màn hình 6.1 inch, chip a16",
		},
		{
			name:  "collapses whitespace",
			input: "  nhiều   khoảng \t trắng  ",
			want:  "nhiều khoảng trắng",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreprocessText(tt.input))
		})
	}
}

func TestProductValidate(t *testing.T) {
	valid := Product{Title: "iPhone 15", Price: "20000000"}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, Product{Price: "1"}.Validate(), ErrInvalidProduct)
	assert.ErrorIs(t, Product{Title: "x"}.Validate(), ErrInvalidProduct)
	assert.ErrorIs(t, Product{Title: "  ", Price: "1"}.Validate(), ErrInvalidProduct)
}

func TestEffectiveDescription(t *testing.T) {
	assert.Equal(t, "mô tả", Product{Title: "t", Description: "mô tả", Category: "c"}.EffectiveDescription())
	assert.Equal(t, "điện thoại", Product{Title: "t", Category: "điện thoại"}.EffectiveDescription())
	assert.Equal(t, "iPhone 15", Product{Title: "iPhone 15"}.EffectiveDescription())
}

func TestMetadataRoundTrip(t *testing.T) {
	p := Product{
		ID:          "p1",
		Title:       "iPhone 15",
		Description: "Điện thoại Apple",
		Price:       "20000000",
		Brand:       "Apple",
		Category:    "điện thoại",
		ImageURL:    "https://example.com/iphone15.jpg",
	}
	got := FromMetadata("p1", p.Metadata())
	assert.Equal(t, p, got)
}

// ingestEmbedder fails for texts containing a marker.
type ingestEmbedder struct{}

func (ingestEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (ingestEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "hỏng") {
		return nil, errors.New("embedding service down")
	}
	return []float32{1, 0}, nil
}

func (ingestEmbedder) Dimension() int { return 2 }
func (ingestEmbedder) Close() error   { return nil }

func TestIngestAll(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, logging.NewNop())
	require.NoError(t, err)

	ingestor, err := NewIngestor(store, ingestEmbedder{}, "products", logging.NewNop())
	require.NoError(t, err)

	report := ingestor.IngestAll(ctx, []Product{
		{ID: "p1", Title: "iPhone 15", Price: "20000000"},
		{Title: "", Price: "1"},
		{ID: "p3", Title: "Máy hỏng", Price: "5"},
		{ID: "p4", Title: "Galaxy S24", Price: "18000000"},
	})

	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 2, report.Failed())
	require.Len(t, report.Results, 4)

	// One bad record never aborts the batch.
	assert.NoError(t, report.Results[0].Err)
	assert.ErrorIs(t, report.Results[1].Err, ErrInvalidProduct)
	assert.Error(t, report.Results[2].Err)
	assert.NoError(t, report.Results[3].Err)

	// Generated ID for the record that had none.
	assert.NotEmpty(t, report.Results[1].ID)

	count, err := store.Count(ctx, "products")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLoadProducts(t *testing.T) {
	data := `[
		{"name": "iPhone 15", "Description": "Điện thoại Apple", "price": "20000000", "picture": "u", "category": "điện thoại"},
		{"name": "Galaxy S24", "price": "18000000"}
	]`
	products, err := LoadProducts(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "iPhone 15", products[0].Title)
	assert.Equal(t, "Điện thoại Apple", products[0].Description)
	assert.Equal(t, "Galaxy S24", products[1].Title)

	_, err = LoadProducts(strings.NewReader("{not json"))
	assert.Error(t, err)
}
