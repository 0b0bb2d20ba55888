package searcher

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TopicExtractor derives topic labels from document text
type TopicExtractor interface {
	Topics(text string) []string
}

// KeywordExtractor derives salient keywords from document text
type KeywordExtractor interface {
	Keywords(text string) []string
}

// EntityExtractor derives named entities from document text
type EntityExtractor interface {
	Entities(text string) []string
}

// SentimentAnalyzer classifies document text
type SentimentAnalyzer interface {
	Sentiment(text string) Sentiment
}

// Summarizer produces a short summary of document text
type Summarizer interface {
	Summarize(text string) string
}

// Sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Sentiment is a label plus a score in [-1, 1]
type Sentiment struct {
	Label string
	Score float64
}

// tokenize lowercases text and splits it on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// FrequencyTopics picks the N most frequent words longer than three characters
type FrequencyTopics struct {
	N int
}

func (f FrequencyTopics) Topics(text string) []string {
	n := f.N
	if n <= 0 {
		n = 5
	}

	counts := make(map[string]int)
	first := make(map[string]int)
	for i, word := range tokenize(text) {
		if utf8.RuneCountInString(word) <= 3 || stopWords[word] {
			continue
		}
		if _, seen := first[word]; !seen {
			first[word] = i
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}

// LengthKeywords keeps distinct words longer than four characters, in
// order of first appearance
type LengthKeywords struct {
	Max int
}

func (l LengthKeywords) Keywords(text string) []string {
	limit := l.Max
	if limit <= 0 {
		limit = 20
	}

	seen := make(map[string]bool)
	keywords := make([]string, 0)
	for _, word := range tokenize(text) {
		if utf8.RuneCountInString(word) <= 4 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == limit {
			break
		}
	}
	return keywords
}

var (
	urlPattern         = regexp.MustCompile(`https?://[^\s"'<>()]+`)
	quotedPattern      = regexp.MustCompile(`"([A-Za-z][\w .-]{1,40})"|'([A-Za-z][\w .-]{1,40})'`)
	capitalizedPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*[a-z][A-Za-z0-9_]*\b`)
)

// PatternEntities finds URLs, quoted names and capitalized identifiers
type PatternEntities struct {
	Max int
}

func (p PatternEntities) Entities(text string) []string {
	limit := p.Max
	if limit <= 0 {
		limit = 20
	}

	seen := make(map[string]bool)
	entities := make([]string, 0)
	add := func(e string) bool {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] || reservedEntities[e] {
			return len(entities) < limit
		}
		seen[e] = true
		entities = append(entities, e)
		return len(entities) < limit
	}

	for _, u := range urlPattern.FindAllString(text, -1) {
		if !add(u) {
			return entities
		}
	}
	// Strip URLs so their path segments are not matched again
	rest := urlPattern.ReplaceAllString(text, " ")

	for _, m := range quotedPattern.FindAllStringSubmatch(rest, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if !add(name) {
			return entities
		}
	}
	for _, ident := range capitalizedPattern.FindAllString(rest, -1) {
		if !add(ident) {
			return entities
		}
	}
	return entities
}

// LexiconSentiment scores text by counting words from small positive and
// negative word lists
type LexiconSentiment struct{}

func (LexiconSentiment) Sentiment(text string) Sentiment {
	var pos, neg int
	for _, word := range tokenize(text) {
		switch {
		case positiveWords[word]:
			pos++
		case negativeWords[word]:
			neg++
		}
	}
	if pos+neg == 0 {
		return Sentiment{Label: SentimentNeutral}
	}

	score := float64(pos-neg) / float64(pos+neg)
	switch {
	case score > 0.2:
		return Sentiment{Label: SentimentPositive, Score: score}
	case score < -0.2:
		return Sentiment{Label: SentimentNegative, Score: score}
	default:
		return Sentiment{Label: SentimentNeutral, Score: score}
	}
}

// LeadSummarizer joins the first non-blank lines, truncated to MaxChars
type LeadSummarizer struct {
	Lines    int
	MaxChars int
}

func (l LeadSummarizer) Summarize(text string) string {
	lines := l.Lines
	if lines <= 0 {
		lines = 3
	}
	maxChars := l.MaxChars
	if maxChars <= 0 {
		maxChars = 200
	}

	parts := make([]string, 0, lines)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts = append(parts, line)
		if len(parts) == lines {
			break
		}
	}

	summary := strings.Join(parts, " ")
	if utf8.RuneCountInString(summary) <= maxChars {
		return summary
	}
	runes := []rune(summary)
	return string(runes[:maxChars-3]) + "..."
}

var stopWords = toSet(
	"this", "that", "with", "from", "have", "will", "would", "there", "their",
	"then", "than", "them", "these", "those", "into", "when", "where", "which",
	"while", "what", "return", "const", "function", "null", "true", "false",
	"void", "else", "import", "export", "public", "private", "static", "class",
)

var reservedEntities = toSet(
	"If", "For", "While", "Return", "True", "False", "None", "Null", "String",
	"Error", "Object", "Array", "Map", "List", "Promise", "Self", "This",
)

var positiveWords = toSet(
	"good", "great", "fast", "faster", "success", "successful", "succeeded",
	"improve", "improved", "improves", "fix", "fixed", "fixes", "clean",
	"stable", "valid", "correct", "efficient", "simple", "safe", "ok", "pass",
	"passed", "works", "better", "best", "optimized", "resolved",
)

var negativeWords = toSet(
	"bad", "slow", "slower", "fail", "failed", "fails", "failure", "error",
	"errors", "bug", "bugs", "broken", "crash", "crashes", "invalid", "wrong",
	"panic", "deprecated", "hack", "leak", "unsafe", "timeout", "problem",
	"worse", "worst", "fixme", "todo",
)

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
