package searcher

import (
	"errors"
	"fmt"
)

// ErrInvalidWeights is returned for negative ranking weights
var ErrInvalidWeights = errors.New("invalid ranking weights")

// Weights combine the ranking signals into a composite score
type Weights struct {
	Semantic   float64
	Keyword    float64
	Topic      float64
	Entity     float64
	Recency    float64
	Popularity float64
}

// DefaultWeights returns the standard signal mix, which sums to 1
func DefaultWeights() Weights {
	return Weights{
		Semantic:   0.4,
		Keyword:    0.3,
		Topic:      0.1,
		Entity:     0.1,
		Recency:    0.05,
		Popularity: 0.05,
	}
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.Semantic + w.Keyword + w.Topic + w.Entity + w.Recency + w.Popularity
}

// Normalize rejects negative weights and scales weights summing above 1
// down to a sum of exactly 1. Sums at or below 1 are kept as given.
func (w Weights) Normalize() (Weights, error) {
	for name, v := range map[string]float64{
		"semantic":   w.Semantic,
		"keyword":    w.Keyword,
		"topic":      w.Topic,
		"entity":     w.Entity,
		"recency":    w.Recency,
		"popularity": w.Popularity,
	} {
		if v < 0 {
			return Weights{}, fmt.Errorf("%w: %s weight %.3f is negative", ErrInvalidWeights, name, v)
		}
	}

	sum := w.Sum()
	if sum == 0 {
		return Weights{}, fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	if sum <= 1 {
		return w, nil
	}

	return Weights{
		Semantic:   w.Semantic / sum,
		Keyword:    w.Keyword / sum,
		Topic:      w.Topic / sum,
		Entity:     w.Entity / sum,
		Recency:    w.Recency / sum,
		Popularity: w.Popularity / sum,
	}, nil
}

// Signals are the per-document inputs to the composite score, each in [0, 1]
type Signals struct {
	Semantic   float64 `json:"semantic"`
	Keyword    float64 `json:"keyword"`
	Topic      float64 `json:"topic"`
	Entity     float64 `json:"entity"`
	Recency    float64 `json:"recency"`
	Popularity float64 `json:"popularity"`
}

// Composite returns the weighted sum of s
func (w Weights) Composite(s Signals) float64 {
	return w.Semantic*s.Semantic +
		w.Keyword*s.Keyword +
		w.Topic*s.Topic +
		w.Entity*s.Entity +
		w.Recency*s.Recency +
		w.Popularity*s.Popularity
}
