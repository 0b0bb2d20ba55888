// Package searcher ranks stored documents by a weighted blend of signals.
//
// A Searcher wraps a storage.Store. Every document added through it is
// enriched once with topics, keywords, entities, a sentiment label and a
// short summary. Enrichments live in memory next to access statistics;
// documents that reach the store by other means are enriched on first
// sight, or all at once with Load.
//
// # Candidates
//
// EnrichedSearch gathers candidates from up to three store queries, run
// concurrently:
//
//   - a substring match of the whole query text
//   - one substring match per distinct query term, scored by the mean
//     per-term score
//   - a cosine similarity search when the query carries a vector
//
// Candidates matched only by vector must reach Query.MinSimilarity.
//
// # Scoring
//
// Each candidate gets six signals in [0, 1]:
//
//	semantic    cosine similarity, or the keyword signal without a vector
//	keyword     substring score, else term-overlap score
//	topic       1 if any filter topic is among the document topics or keywords
//	entity      1 if any filter entity is among the document entities
//	recency     1 - days since last access / 30, floored at 0
//	popularity  access count / 100, capped at 1
//
// The composite score is the weighted sum. DefaultWeights sums to 1;
// caller weights summing above 1 are scaled down.
//
//	s := searcher.NewSearcher(storage.NewMemoryStore(0))
//	_ = s.Add(ctx, &storage.Document{ID: "a", Content: "func ParseConfig()"})
//
//	resp, err := s.EnrichedSearch(ctx, searcher.Query{
//	    Text: "parse config",
//	    Mode: searcher.SearchModeKeyword,
//	})
//
// Language, date range, sentiment and metadata filters exclude documents
// outright. The top five results of every search have their access count
// and last access time updated, so popularity and recency follow usage.
package searcher
