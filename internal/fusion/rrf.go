// Package fusion merges ranked result lists with weighted reciprocal
// rank fusion.
package fusion

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultConstant is the standard RRF smoothing constant.
const DefaultConstant = 60

// ErrMismatchedWeights is returned when the number of weights does not
// match the number of ranked lists.
var ErrMismatchedWeights = errors.New("ranked list and weight counts differ")

// Scored is a fused result: a document ID with its accumulated score.
type Scored struct {
	ID    string
	Score float64
}

// ReciprocalRank fuses ranked ID lists into a single ranking.
//
// Each occurrence of an ID at 1-based rank r in list i contributes
// weights[i] / (r + c) to its score. IDs appearing in several lists
// accumulate contributions and collapse to one entry. The output is
// ordered by descending score; ties keep first-seen order, scanning
// lists left to right. Empty input fuses to an empty ranking.
func ReciprocalRank(lists [][]string, weights []float64, c int) ([]Scored, error) {
	if len(lists) != len(weights) {
		return nil, fmt.Errorf("%w: %d lists, %d weights", ErrMismatchedWeights, len(lists), len(weights))
	}
	if c <= 0 {
		c = DefaultConstant
	}

	scores := make(map[string]float64)
	firstSeen := make(map[string]int)
	order := 0

	for i, list := range lists {
		for rank, id := range list {
			if _, seen := scores[id]; !seen {
				firstSeen[id] = order
				order++
			}
			scores[id] += weights[i] / float64(rank+1+c)
		}
	}

	fused := make([]Scored, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Scored{ID: id, Score: score})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return firstSeen[fused[i].ID] < firstSeen[fused[j].ID]
	})

	return fused, nil
}

// EqualWeights returns n weights of 1.0, the default for hybrid
// retrieval where both channels count the same.
func EqualWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}
	return weights
}
