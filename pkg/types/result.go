package types

// SearchResult is one hit returned by a store search. Results are transient
// and ordered by Score descending; Rank is filled in by the ranking layer.
type SearchResult struct {
	ID       string
	Rank     int     // 1-based position once ranked, 0 straight from a store
	Score    float64 // Higher is better
	Distance float64 // 1 - Score
	Content  string
	Metadata map[string]string
}
