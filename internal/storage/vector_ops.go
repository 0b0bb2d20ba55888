package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/dshills/codeindex/pkg/types"
)

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// CosineSimilarity computes dot(a,b)/(|a|*|b|). It returns 0 when either
// vector has zero magnitude or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeMetadata renders metadata as JSON with sorted keys and no HTML
// escaping. Keyword search matches against this form.
func SerializeMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(metadata); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func deserializeMetadata(raw string) map[string]string {
	metadata := make(map[string]string)
	if raw == "" {
		return metadata
	}
	_ = json.Unmarshal([]byte(raw), &metadata)
	return metadata
}

// KeywordScore is 0.7 when the lowercased query occurs in the lowercased
// content plus 0.3 when it occurs in the lowercased serialized metadata.
// lowerQuery, lowerContent and lowerMetadata must already be lowercased.
func KeywordScore(lowerQuery, lowerContent, lowerMetadata string) float64 {
	var score float64
	if strings.Contains(lowerContent, lowerQuery) {
		score += contentWeight
	}
	if strings.Contains(lowerMetadata, lowerQuery) {
		score += metadataWeight
	}
	return score
}

// candidate is a document with its score, in insertion order
type candidate struct {
	doc   *Document
	score float64
}

// rankCandidates sorts by descending score, keeping insertion order for
// ties, truncates to limit (<= 0 means no limit) and builds results
func rankCandidates(candidates []candidate, limit int) []types.SearchResult {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]types.SearchResult, limit)
	for i := 0; i < limit; i++ {
		c := candidates[i]
		results[i] = types.SearchResult{
			ID:       c.doc.ID,
			Rank:     i + 1,
			Score:    c.score,
			Distance: 1 - c.score,
			Content:  c.doc.Content,
			Metadata: copyMetadata(c.doc.Metadata),
		}
	}
	return results
}

func copyMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func copyDocument(doc *Document) *Document {
	out := *doc
	out.Metadata = copyMetadata(doc.Metadata)
	if doc.Vector != nil {
		out.Vector = append([]float32(nil), doc.Vector...)
	}
	return &out
}
