package retrieval

import "fmt"

// ScoreOrder declares the polarity of store scores.
type ScoreOrder string

const (
	// OrderSimilarity means higher scores are closer matches. The gate
	// passes scores at or above the threshold.
	OrderSimilarity ScoreOrder = "similarity"

	// OrderDistance means lower scores are closer matches. The gate
	// passes scores at or below the threshold.
	OrderDistance ScoreOrder = "distance"
)

// DefaultThreshold is the relevance gate threshold.
const DefaultThreshold float32 = 0.75

// Gate filters retrieval candidates by closeness to the query. The
// polarity is explicit configuration, never inferred from the scores
// themselves.
type Gate struct {
	threshold float32
	order     ScoreOrder
}

// NewGate creates a gate for the given threshold and score order.
func NewGate(threshold float32, order ScoreOrder) (*Gate, error) {
	switch order {
	case OrderSimilarity, OrderDistance:
	default:
		return nil, fmt.Errorf("unknown score order %q (must be similarity or distance)", order)
	}
	return &Gate{threshold: threshold, order: order}, nil
}

// Pass reports whether a score clears the threshold. A score exactly
// at the threshold passes in both orders.
func (g *Gate) Pass(score float32) bool {
	if g.order == OrderDistance {
		return score <= g.threshold
	}
	return score >= g.threshold
}

// Filter returns the candidates whose store score passes, preserving
// order and re-numbering ranks.
func (g *Gate) Filter(results []RankedResult) []RankedResult {
	var kept []RankedResult
	for _, res := range results {
		if g.Pass(res.StoreScore) {
			res.Rank = len(kept) + 1
			kept = append(kept, res)
		}
	}
	return kept
}

// Threshold returns the configured threshold.
func (g *Gate) Threshold() float32 {
	return g.threshold
}
