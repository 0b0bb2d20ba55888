package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrequencyTopics(t *testing.T) {
	topics := FrequencyTopics{N: 2}.Topics("parser parser lexer lexer lexer token the of")
	assert.Equal(t, []string{"lexer", "parser"}, topics)

	t.Run("ties keep first appearance", func(t *testing.T) {
		topics := FrequencyTopics{}.Topics("gamma beta alpha")
		assert.Equal(t, []string{"gamma", "beta", "alpha"}, topics)
	})

	t.Run("short and stop words are skipped", func(t *testing.T) {
		assert.Empty(t, FrequencyTopics{}.Topics("a an the this that with"))
	})
}

func TestLengthKeywords(t *testing.T) {
	keywords := LengthKeywords{Max: 3}.Keywords("Parse the configuration files quickly and return errors")
	assert.Equal(t, []string{"parse", "configuration", "files"}, keywords)

	assert.Equal(t, []string{"handler"}, LengthKeywords{}.Keywords("handler Handler HANDLER"))
}

func TestPatternEntities(t *testing.T) {
	text := `see https://example.com/Docs and "Redis Cache" plus HttpClient and If String`
	entities := PatternEntities{}.Entities(text)

	assert.Contains(t, entities, "https://example.com/Docs")
	assert.Contains(t, entities, "Redis Cache")
	assert.Contains(t, entities, "HttpClient")
	assert.NotContains(t, entities, "Docs")
	assert.NotContains(t, entities, "If")
	assert.NotContains(t, entities, "String")
	assert.Equal(t, "https://example.com/Docs", entities[0])

	t.Run("limit", func(t *testing.T) {
		entities := PatternEntities{Max: 2}.Entities("Alpha Beta Gamma Delta")
		assert.Equal(t, []string{"Alpha", "Beta"}, entities)
	})

	t.Run("all caps constants are not entities", func(t *testing.T) {
		assert.Empty(t, PatternEntities{}.Entities("MAX_SIZE and ID"))
	})
}

func TestLexiconSentiment(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		label string
		score float64
	}{
		{"positive", "fixed the bug, tests passed and it works", SentimentPositive, 0.5},
		{"negative", "crash and panic on invalid input", SentimentNegative, -1},
		{"neutral without lexicon words", "plain text", SentimentNeutral, 0},
		{"balanced", "fixed one bug", SentimentNeutral, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LexiconSentiment{}.Sentiment(tt.text)
			assert.Equal(t, tt.label, got.Label)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
		})
	}
}

func TestLeadSummarizer(t *testing.T) {
	assert.Equal(t, "first line second", LeadSummarizer{Lines: 2}.Summarize("\n first line \n\nsecond\nthird"))
	assert.Equal(t, "abcdefg...", LeadSummarizer{MaxChars: 10}.Summarize("abcdefghijklmnop"))
	assert.Equal(t, "", LeadSummarizer{}.Summarize("  \n\n"))
}
