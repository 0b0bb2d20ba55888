package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/codeindex/pkg/types"
)

func TestFormatChunk(t *testing.T) {
	chunk := &types.Chunk{
		Content:      "  add(a, b) { return a + b }",
		RelativePath: "src/math.ts",
		Language:     "typescript",
		StartLine:    3,
		EndLine:      3,
		Kind:         types.ChunkFunction,
		Symbols:      []types.Symbol{{Name: "add", Kind: types.KindFunction, Line: 3}},
	}

	want := "File: src/math.ts\n" +
		"Language: typescript\n" +
		"Kind: function\n" +
		"Symbols: add\n" +
		"Lines: 3-3\n\n" +
		"  add(a, b) { return a + b }"
	assert.Equal(t, want, FormatChunk(chunk))

	chunk.Symbols = nil
	assert.NotContains(t, FormatChunk(chunk), "Symbols:")
}

func TestFormatSymbol(t *testing.T) {
	sym := &types.Symbol{
		Name:         "add",
		Kind:         types.KindFunction,
		RelativePath: "src/math.ts",
		Language:     "typescript",
		Line:         3,
		EndLine:      3,
		Scope:        "Calculator",
		Signature:    "add(a, b)",
	}

	got := FormatSymbol(sym)
	assert.Contains(t, got, "Symbols: Calculator.add\n")
	assert.Contains(t, got, "Lines: 3-3\n")
	assert.Contains(t, got, "add(a, b)")

	sym.EndLine = 0
	assert.Contains(t, FormatSymbol(sym), "Lines: 3-3\n")
}
