package searcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeindex/internal/storage"
	"github.com/dshills/codeindex/pkg/types"
)

// SearchMode defines how candidates are gathered
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Keyword and vector candidates
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // Substring and term matches only
)

// Ranking constants
const (
	DefaultLimit   = 10
	MaxLimit       = 100
	TrackedResults = 5  // Top results whose access stats are bumped per search
	RecencyDays    = 30 // Recency decays to 0 over this many days
	PopularityCap  = 100
)

// ErrVectorRequired is returned for vector-mode queries without a vector
var ErrVectorRequired = errors.New("vector search requires a query vector")

// Enrichment holds the derived fields kept alongside each document
type Enrichment struct {
	Topics       []string
	Keywords     []string
	Entities     []string
	Sentiment    Sentiment
	Summary      string
	Language     string
	CreatedAt    time.Time
	AccessCount  int
	LastAccessed time.Time
}

func (e Enrichment) clone() Enrichment {
	out := e
	out.Topics = append([]string(nil), e.Topics...)
	out.Keywords = append([]string(nil), e.Keywords...)
	out.Entities = append([]string(nil), e.Entities...)
	return out
}

// record is the in-memory state kept per document ID
type record struct {
	enrichment Enrichment
	metadata   map[string]string
}

// DateRange bounds document creation time; a zero bound is open
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Filters narrow and boost results. Topics and Entities add a binary
// signal; Language, DateRange, Sentiment and Metadata exclude documents.
type Filters struct {
	Topics    []string
	Entities  []string
	DateRange *DateRange
	Language  string
	Sentiment string
	Metadata  map[string][]string // key -> accepted values
}

// Query contains parameters for an enriched search
type Query struct {
	Text          string
	Vector        []float32 // Optional query embedding
	Mode          SearchMode
	Filters       Filters
	Weights       *Weights // nil selects DefaultWeights
	Limit         int
	MinSimilarity float64 // Minimum cosine for candidates with no keyword match
}

// Result is one ranked document with the signals behind its score
type Result struct {
	types.SearchResult
	Signals    Signals
	Enrichment Enrichment
}

// Response contains search results and metadata
type Response struct {
	Results      []Result
	TotalResults int
	SearchMode   SearchMode
	Duration     time.Duration
	KeywordHits  int
	VectorHits   int
}

// Option configures a Searcher
type Option func(*Searcher)

// WithTopicExtractor replaces the frequency-based topic extractor
func WithTopicExtractor(e TopicExtractor) Option {
	return func(s *Searcher) { s.topics = e }
}

// WithKeywordExtractor replaces the length-based keyword extractor
func WithKeywordExtractor(e KeywordExtractor) Option {
	return func(s *Searcher) { s.keywords = e }
}

// WithEntityExtractor replaces the pattern-based entity extractor
func WithEntityExtractor(e EntityExtractor) Option {
	return func(s *Searcher) { s.entities = e }
}

// WithSentimentAnalyzer replaces the lexicon sentiment analyzer
func WithSentimentAnalyzer(a SentimentAnalyzer) Option {
	return func(s *Searcher) { s.sentiment = a }
}

// WithSummarizer replaces the leading-lines summarizer
func WithSummarizer(sum Summarizer) Option {
	return func(s *Searcher) { s.summarizer = sum }
}

// WithLogger sets the searcher logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for recency and access tracking
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// Searcher wraps a Store with per-document enrichment, composite ranking
// and access tracking
type Searcher struct {
	store      storage.Store
	topics     TopicExtractor
	keywords   KeywordExtractor
	entities   EntityExtractor
	sentiment  SentimentAnalyzer
	summarizer Summarizer
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.RWMutex
	records map[string]*record
}

// NewSearcher creates a Searcher over store
func NewSearcher(store storage.Store, opts ...Option) *Searcher {
	s := &Searcher{
		store:      store,
		topics:     FrequencyTopics{N: 5},
		keywords:   LengthKeywords{},
		entities:   PatternEntities{},
		sentiment:  LexiconSentiment{},
		summarizer: LeadSummarizer{},
		logger:     zap.NewNop(),
		now:        time.Now,
		records:    make(map[string]*record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the wrapped store
func (s *Searcher) Store() storage.Store {
	return s.store
}

// enrich runs every extractor over doc
func (s *Searcher) enrich(doc *storage.Document) Enrichment {
	created := doc.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	return Enrichment{
		Topics:       s.topics.Topics(doc.Content),
		Keywords:     s.keywords.Keywords(doc.Content),
		Entities:     s.entities.Entities(doc.Content),
		Sentiment:    s.sentiment.Sentiment(doc.Content),
		Summary:      s.summarizer.Summarize(doc.Content),
		Language:     doc.Metadata["language"],
		CreatedAt:    created,
		LastAccessed: created,
	}
}

// remember stores a fresh enrichment, keeping access stats of a re-added ID
func (s *Searcher) remember(doc *storage.Document, e Enrichment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.records[doc.ID]; ok {
		e.CreatedAt = prev.enrichment.CreatedAt
		e.AccessCount = prev.enrichment.AccessCount
		e.LastAccessed = prev.enrichment.LastAccessed
	}
	meta := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	s.records[doc.ID] = &record{enrichment: e, metadata: meta}
}

// Add stores doc and computes its enrichment once
func (s *Searcher) Add(ctx context.Context, doc *storage.Document) error {
	if err := s.store.Add(ctx, doc); err != nil {
		return err
	}
	s.remember(doc, s.enrich(doc))
	return nil
}

// AddBatch stores docs in one store call, then enriches each
func (s *Searcher) AddBatch(ctx context.Context, docs []*storage.Document) error {
	if err := s.store.AddBatch(ctx, docs); err != nil {
		return err
	}
	for _, doc := range docs {
		s.remember(doc, s.enrich(doc))
	}
	return nil
}

// Load enriches documents already present in the store, such as those
// persisted by a previous process
func (s *Searcher) Load(ctx context.Context) (int, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	loaded := 0
	for _, doc := range docs {
		s.mu.RLock()
		_, known := s.records[doc.ID]
		s.mu.RUnlock()
		if known {
			continue
		}
		s.remember(doc, s.enrich(doc))
		loaded++
	}
	return loaded, nil
}

// Remove deletes a document and its enrichment
func (s *Searcher) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

// RemoveWhere deletes documents whose metadata[key] equals value
func (s *Searcher) RemoveWhere(ctx context.Context, key, value string) (int, error) {
	n, err := s.store.RemoveWhere(ctx, key, value)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	for id, rec := range s.records {
		if v, ok := rec.metadata[key]; ok && v == value {
			delete(s.records, id)
		}
	}
	s.mu.Unlock()
	return n, nil
}

// Clear removes every document and enrichment
func (s *Searcher) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.records = make(map[string]*record)
	s.mu.Unlock()
	return nil
}

// Enrichment returns a copy of the enrichment for id
func (s *Searcher) Enrichment(id string) (Enrichment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Enrichment{}, false
	}
	return rec.enrichment.clone(), true
}

// Access records one access of id
func (s *Searcher) Access(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return false
	}
	rec.enrichment.AccessCount++
	rec.enrichment.LastAccessed = s.now()
	return true
}

// candidate accumulates what is known about one document during a search
type candidate struct {
	result     types.SearchResult
	keyword    float64
	similarity float64
	hasVector  bool
}

// EnrichedSearch gathers keyword and vector candidates, applies filters,
// ranks by composite score and bumps access stats of the top results
func (s *Searcher) EnrichedSearch(ctx context.Context, q Query) (*Response, error) {
	start := s.now()

	if err := s.validateQuery(&q); err != nil {
		return nil, err
	}
	weights := DefaultWeights()
	if q.Weights != nil {
		w, err := q.Weights.Normalize()
		if err != nil {
			return nil, err
		}
		weights = w
	}

	order, byID, kwHits, vecHits, err := s.gather(ctx, q)
	if err != nil {
		return nil, err
	}

	useVector := q.Mode != SearchModeKeyword && len(q.Vector) > 0
	now := s.now()
	results := make([]Result, 0, len(order))

	for _, id := range order {
		c := byID[id]

		enrichment, err := s.enrichmentFor(ctx, id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue // removed between gather and rank
			}
			return nil, err
		}

		if useVector && !c.hasVector {
			doc, err := s.store.Get(ctx, id)
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if len(doc.Vector) == len(q.Vector) {
				c.similarity = storage.CosineSimilarity(q.Vector, doc.Vector)
			}
			c.hasVector = true
		}

		if c.keyword == 0 && c.similarity < q.MinSimilarity {
			continue
		}
		if !passesFilters(q.Filters, enrichment, c.result.Metadata) {
			continue
		}

		signals := Signals{
			Keyword:    c.keyword,
			Topic:      matchAny(q.Filters.Topics, enrichment.Topics, enrichment.Keywords),
			Entity:     matchAny(q.Filters.Entities, enrichment.Entities),
			Recency:    recency(now, enrichment.LastAccessed),
			Popularity: math.Min(1, float64(enrichment.AccessCount)/PopularityCap),
		}
		if useVector {
			signals.Semantic = math.Max(0, c.similarity)
		} else {
			signals.Semantic = c.keyword
		}

		r := Result{SearchResult: c.result, Signals: signals, Enrichment: enrichment}
		r.Score = weights.Composite(signals)
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	for i := range results {
		results[i].Rank = i + 1
		results[i].Distance = 1 - results[i].Score
	}

	s.trackAccess(results)

	s.logger.Debug("enriched search",
		zap.String("mode", string(q.Mode)),
		zap.Int("candidates", len(order)),
		zap.Int("results", len(results)),
		zap.Duration("duration", s.now().Sub(start)))

	return &Response{
		Results:      results,
		TotalResults: len(results),
		SearchMode:   q.Mode,
		Duration:     s.now().Sub(start),
		KeywordHits:  kwHits,
		VectorHits:   vecHits,
	}, nil
}

// validateQuery applies defaults and rejects unusable queries
func (s *Searcher) validateQuery(q *Query) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" && len(q.Vector) == 0 {
		return types.ErrEmptyQuery
	}

	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}

	if q.Mode == "" {
		q.Mode = SearchModeHybrid
	}
	switch q.Mode {
	case SearchModeHybrid:
	case SearchModeVector:
		if len(q.Vector) == 0 {
			return ErrVectorRequired
		}
	case SearchModeKeyword:
		if q.Text == "" {
			return types.ErrEmptyQuery
		}
	default:
		return fmt.Errorf("unsupported search mode: %s", q.Mode)
	}
	return nil
}

// gather runs the keyword and vector candidate searches concurrently and
// merges them in order of first appearance
func (s *Searcher) gather(ctx context.Context, q Query) ([]string, map[string]*candidate, int, int, error) {
	var (
		keywordHits []types.SearchResult
		termScores  map[string]float64
		termHits    []types.SearchResult
		vectorHits  []types.SearchResult
	)

	g, gctx := errgroup.WithContext(ctx)

	if q.Mode != SearchModeVector && q.Text != "" {
		g.Go(func() error {
			var err error
			keywordHits, err = s.store.Search(gctx, q.Text, 0)
			if err != nil {
				return fmt.Errorf("keyword search: %w", err)
			}
			termScores, termHits, err = s.termSearch(gctx, q.Text)
			return err
		})
	}

	if q.Mode != SearchModeKeyword && len(q.Vector) > 0 {
		g.Go(func() error {
			var err error
			vectorHits, err = s.store.SearchByVector(gctx, q.Vector, 0)
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, 0, 0, err
	}

	order := make([]string, 0, len(keywordHits)+len(termHits)+len(vectorHits))
	byID := make(map[string]*candidate)
	get := func(r types.SearchResult) *candidate {
		if c, ok := byID[r.ID]; ok {
			return c
		}
		c := &candidate{result: r}
		byID[r.ID] = c
		order = append(order, r.ID)
		return c
	}

	for _, r := range keywordHits {
		get(r).keyword = r.Score
	}
	for _, r := range termHits {
		c := get(r)
		if c.keyword == 0 {
			c.keyword = termScores[r.ID]
		}
	}
	for _, r := range vectorHits {
		c := get(r)
		c.similarity = r.Score
		c.hasVector = true
	}

	return order, byID, len(keywordHits), len(vectorHits), nil
}

// termSearch scores documents by the mean per-term store score, which is
// 0.7 x (fraction of terms in content) + 0.3 x (fraction in metadata)
func (s *Searcher) termSearch(ctx context.Context, text string) (map[string]float64, []types.SearchResult, error) {
	terms := queryTerms(text)
	scores := make(map[string]float64)
	hits := make([]types.SearchResult, 0)
	if len(terms) < 2 {
		return scores, hits, nil
	}

	for _, term := range terms {
		results, err := s.store.Search(ctx, term, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("term search %q: %w", term, err)
		}
		for _, r := range results {
			if _, seen := scores[r.ID]; !seen {
				hits = append(hits, r)
			}
			scores[r.ID] += r.Score / float64(len(terms))
		}
	}
	return scores, hits, nil
}

// queryTerms returns the distinct tokens of text with at least two characters
func queryTerms(text string) []string {
	seen := make(map[string]bool)
	terms := make([]string, 0)
	for _, t := range tokenize(text) {
		if len([]rune(t)) < 2 || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

// enrichmentFor returns the stored enrichment, computing it on first sight
// for documents added to the store directly
func (s *Searcher) enrichmentFor(ctx context.Context, id string) (Enrichment, error) {
	if e, ok := s.Enrichment(id); ok {
		return e, nil
	}

	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return Enrichment{}, err
	}
	s.remember(doc, s.enrich(doc))
	e, _ := s.Enrichment(id)
	return e, nil
}

// trackAccess bumps access count and time for the top results
func (s *Searcher) trackAccess(results []Result) {
	n := len(results)
	if n > TrackedResults {
		n = TrackedResults
	}
	if n == 0 {
		return
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results[:n] {
		if rec, ok := s.records[r.ID]; ok {
			rec.enrichment.AccessCount++
			rec.enrichment.LastAccessed = now
		}
	}
}

func passesFilters(f Filters, e Enrichment, metadata map[string]string) bool {
	if f.Language != "" && !strings.EqualFold(f.Language, e.Language) {
		return false
	}
	if f.Sentiment != "" && !strings.EqualFold(f.Sentiment, e.Sentiment.Label) {
		return false
	}
	if f.DateRange != nil && !f.DateRange.Contains(e.CreatedAt) {
		return false
	}
	for key, accepted := range f.Metadata {
		if len(accepted) == 0 {
			continue
		}
		value, ok := metadata[key]
		if !ok || !containsFold(accepted, value) {
			return false
		}
	}
	return true
}

// matchAny is 1 when any wanted value appears in any of the lists
func matchAny(wanted []string, lists ...[]string) float64 {
	for _, w := range wanted {
		for _, list := range lists {
			if containsFold(list, w) {
				return 1
			}
		}
	}
	return 0
}

func containsFold(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// recency decays linearly from 1 to 0 over RecencyDays since last access
func recency(now, lastAccessed time.Time) float64 {
	days := now.Sub(lastAccessed).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Max(0, 1-days/RecencyDays)
}
