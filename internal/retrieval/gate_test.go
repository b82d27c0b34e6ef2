package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatePass(t *testing.T) {
	tests := []struct {
		name      string
		order     ScoreOrder
		threshold float32
		score     float32
		want      bool
	}{
		{"similarity above passes", OrderSimilarity, 0.75, 0.9, true},
		{"similarity below fails", OrderSimilarity, 0.75, 0.5, false},
		{"similarity exactly at threshold passes", OrderSimilarity, 0.75, 0.75, true},
		{"distance below passes", OrderDistance, 0.75, 0.3, true},
		{"distance above fails", OrderDistance, 0.75, 0.9, false},
		{"distance exactly at threshold passes", OrderDistance, 0.75, 0.75, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, err := NewGate(tt.threshold, tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.want, gate.Pass(tt.score))
		})
	}
}

func TestGateFilter(t *testing.T) {
	gate, err := NewGate(0.75, OrderSimilarity)
	require.NoError(t, err)

	results := []RankedResult{
		{ID: "a", StoreScore: 0.9, Rank: 1},
		{ID: "b", StoreScore: 0.5, Rank: 2},
		{ID: "c", StoreScore: 0.75, Rank: 3},
	}

	kept := gate.Filter(results)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, 1, kept[0].Rank)
	assert.Equal(t, "c", kept[1].ID)
	assert.Equal(t, 2, kept[1].Rank)

	assert.Empty(t, gate.Filter(nil))
}

func TestNewGateRejectsUnknownOrder(t *testing.T) {
	_, err := NewGate(0.75, ScoreOrder("cosine"))
	assert.Error(t, err)
}
