package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "ascii with punctuation",
			input: "iPhone 15 Pro, 256GB!",
			want:  []string{"iphone", "15", "pro", "256gb"},
		},
		{
			name:  "vietnamese diacritics preserved",
			input: "Điện thoại Samsung",
			want:  []string{"điện", "thoại", "samsung"},
		},
		{
			name:  "only separators",
			input: " ,.!? ",
			want:  nil,
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTermOverlap(t *testing.T) {
	doc := tokenize("điện thoại iphone 15 pro max")

	assert.Equal(t, float32(1), termOverlap(tokenize("điện thoại"), doc))
	assert.Equal(t, float32(0.5), termOverlap(tokenize("iphone android"), doc))
	assert.Equal(t, float32(0), termOverlap(tokenize("laptop"), doc))
	assert.Equal(t, float32(0), termOverlap(nil, doc))

	// Repeated query terms count once.
	assert.Equal(t, float32(0.5), termOverlap(tokenize("iphone iphone android"), doc))
}

func TestValidateCollectionName(t *testing.T) {
	valid := []string{"products", "chat_history", "semantic_cache", "a", "c0llection_1"}
	for _, name := range valid {
		assert.NoError(t, ValidateCollectionName(name), name)
	}

	invalid := []string{"", "Products", "has space", "has-dash", "über", string(make([]byte, 65))}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, name)
	}
}
