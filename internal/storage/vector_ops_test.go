package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.9, -0.3},
		{5, -2, 0.25},
		{0, 0, 1},
		{-1, -1, -1},
	}

	for _, a := range vectors {
		assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
		for _, b := range vectors {
			assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a))
		}
	}
}

func TestSerializeVector(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := serializeVector(vec)
	assert.Len(t, blob, 16)
	assert.Equal(t, vec, deserializeVector(blob))
	assert.Nil(t, deserializeVector(nil))
}

func TestSerializeMetadata(t *testing.T) {
	assert.Equal(t, "{}", SerializeMetadata(nil))
	assert.Equal(t, `{"a":"1","b":"<x>"}`, SerializeMetadata(map[string]string{"b": "<x>", "a": "1"}))
	assert.Equal(t, map[string]string{"a": "1"}, deserializeMetadata(`{"a":"1"}`))
	assert.Empty(t, deserializeMetadata(""))
}

func TestKeywordScore(t *testing.T) {
	assert.InDelta(t, 1.0, KeywordScore("add", "add(a, b)", `{"name":"add"}`), 1e-9)
	assert.InDelta(t, 0.7, KeywordScore("add", "add(a, b)", "{}"), 1e-9)
	assert.InDelta(t, 0.3, KeywordScore("add", "sum", `{"name":"add"}`), 1e-9)
	assert.Zero(t, KeywordScore("add", "sum", "{}"))
}
