package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/source"
	"github.com/dshills/codeindex/internal/storage"
)

const sampleGo = `package main

// Hello greets the caller
func Hello(name string) string {
	return "hello " + name
}
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(sampleGo), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("plain notes\n"), 0o644))
	return root
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "codeindex dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestIndexCommand_JSON(t *testing.T) {
	t.Setenv("CODEINDEX_LOG_LEVEL", "error")
	root := writeProject(t)

	out := execute(t, "index", root, "--json", "--exclude", "*.txt")

	var stats indexer.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.FilesScanned)
	assert.Equal(t, 1, stats.FilesIndexed)
	require.Len(t, stats.Skipped, 1)
	assert.Equal(t, "notes.txt", stats.Skipped[0].Path)
	assert.Positive(t, stats.SymbolsExtracted)
}

func TestSearchCommand_WithRoot(t *testing.T) {
	t.Setenv("CODEINDEX_LOG_LEVEL", "error")
	root := writeProject(t)

	out := execute(t, "search", "--root", root, "--mode", "keyword", "--json", "Hello")

	var resp indexer.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, "main.go", resp.Hits[0].RelativePath)
	assert.Equal(t, 1, resp.Hits[0].Rank)
}

func TestApplyChange(t *testing.T) {
	ctx := context.Background()
	src := source.NewMemory("mem", map[string]string{"main.go": sampleGo})
	idx := indexer.New(storage.NewMemoryStore(16), embedder.NewEngine(embedder.NewHashProvider(16)),
		indexer.WithSource(src))

	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	applyChange(ctx, idx, logger, source.Change{Op: source.ChangeWrite, RelativePath: "main.go"})
	updated := logs.FilterMessage("updated").All()
	require.Len(t, updated, 1)
	assert.Positive(t, updated[0].ContextMap()["added"])

	stats, err := idx.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)

	applyChange(ctx, idx, logger, source.Change{Op: source.ChangeRemove, RelativePath: "main.go"})
	require.Len(t, logs.FilterMessage("removed").All(), 1)

	stats, err = idx.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDocuments)

	applyChange(ctx, idx, logger, source.Change{Op: source.ChangeWrite, RelativePath: "missing.go"})
	assert.Len(t, logs.FilterMessage("update failed").All(), 1)
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	printHits(&buf, &indexer.SearchResponse{})
	assert.Equal(t, "No results\n", buf.String())

	buf.Reset()
	printHits(&buf, &indexer.SearchResponse{
		Hits:  []indexer.Hit{{Rank: 1, RelativePath: "main.go", StartLine: 3, EndLine: 5, Kind: "function", Name: "Hello", Score: 0.5}},
		Total: 1,
		Mode:  "keyword",
	})
	assert.Contains(t, buf.String(), " 1. main.go:3-5  function Hello  (0.500)")
	assert.Contains(t, buf.String(), "1 results (keyword mode)")

	buf.Reset()
	printCounts(&buf, "Languages", map[string]int{"go": 2, "c": 1})
	assert.Equal(t, "Languages:\n  c            1\n  go           2\n", buf.String())
}
