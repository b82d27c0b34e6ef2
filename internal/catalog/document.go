// Package catalog defines the typed product model and the ingestion
// pipeline that populates the product collection.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Metadata keys for stored products.
const (
	metaTitle       = "title"
	metaDescription = "description"
	metaPrice       = "price"
	metaBrand       = "brand"
	metaCategory    = "category"
	metaImageURL    = "image_url"
)

// ErrInvalidProduct indicates a product record missing required fields.
var ErrInvalidProduct = errors.New("invalid product")

// Product is one catalog entry. Immutable once indexed; the serving
// path only reads.
type Product struct {
	ID          string `json:"id"`
	Title       string `json:"name"`
	Description string `json:"Description"`
	Price       string `json:"price"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	ImageURL    string `json:"picture"`
}

// Validate checks required fields up front so bad records fail at
// ingestion, not at read time.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Price) == "" {
		return fmt.Errorf("%w: price required", ErrInvalidProduct)
	}
	return nil
}

// EffectiveDescription falls back to category, then title, when the
// description is empty, so every product has embeddable text.
func (p Product) EffectiveDescription() string {
	if p.Description != "" {
		return p.Description
	}
	if p.Category != "" {
		return p.Category
	}
	return p.Title
}

// EmbeddingText is the normalized text that gets embedded: the title
// and description combined and preprocessed.
func (p Product) EmbeddingText() string {
	return PreprocessText(p.Title + " " + p.EffectiveDescription())
}

// Metadata encodes the product fields for storage.
func (p Product) Metadata() map[string]string {
	return map[string]string{
		metaTitle:       p.Title,
		metaDescription: p.EffectiveDescription(),
		metaPrice:       p.Price,
		metaBrand:       p.Brand,
		metaCategory:    p.Category,
		metaImageURL:    p.ImageURL,
	}
}

// FromMetadata rebuilds a product from stored metadata.
func FromMetadata(id string, metadata map[string]string) Product {
	return Product{
		ID:          id,
		Title:       metadata[metaTitle],
		Description: metadata[metaDescription],
		Price:       metadata[metaPrice],
		Brand:       metadata[metaBrand],
		Category:    metadata[metaCategory],
		ImageURL:    metadata[metaImageURL],
	}
}

// PreprocessText lowercases, strips everything but letters, digits,
// underscores, whitespace, commas and periods, and collapses runs of
// whitespace. Unicode-aware so Vietnamese text survives intact.
func PreprocessText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == ',', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
