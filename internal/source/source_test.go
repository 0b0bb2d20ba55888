package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/pkg/types"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFilesystemListSkipsDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/math.ts", "export function add(a, b) { return a + b }\n")
	writeFile(t, dir, "node_modules/lib/index.js", "module.exports = {}\n")
	writeFile(t, dir, ".git/config", "[core]\n")
	writeFile(t, dir, "README.md", "# readme\n")

	src, err := NewFilesystem(dir)
	require.NoError(t, err)

	entries, err := src.List(context.Background())
	require.NoError(t, err)

	var rels []string
	for _, e := range entries {
		rels = append(rels, e.RelativePath)
	}
	assert.ElementsMatch(t, []string{"src/math.ts", "README.md"}, rels)
}

func TestFilesystemListRecordsUnreadablePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "locked/a.go", "package locked\n")

	src, err := NewFilesystem(dir)
	require.NoError(t, err)

	dirEntries, err := os.ReadDir(src.Root())
	require.NoError(t, err)
	require.Len(t, dirEntries, 1)

	var entries []Entry
	walk := src.walkFunc(context.Background(), &entries)

	// A directory that cannot be read is recorded and skipped
	err = walk(filepath.Join(src.Root(), "locked"), dirEntries[0], fs.ErrPermission)
	assert.Equal(t, filepath.SkipDir, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "locked", entries[0].RelativePath)

	var cse *types.ContentSourceError
	require.ErrorAs(t, entries[0].Err, &cse)
	assert.Equal(t, "locked", cse.Path)
	assert.ErrorIs(t, entries[0].Err, fs.ErrPermission)

	// A file-level failure does not stop the walk either
	err = walk(filepath.Join(src.Root(), "locked", "b.go"), nil, fs.ErrPermission)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)

	// The root itself failing is fatal
	err = walk(src.Root(), nil, fs.ErrPermission)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestFilesystemListSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	writeFile(t, dir, "a/b.go", "package a\n")
	writeFile(t, dir, "Z.go", "package z\n")

	src, err := NewFilesystem(dir)
	require.NoError(t, err)

	entries, err := src.List(context.Background())
	require.NoError(t, err)

	var rels []string
	for _, e := range entries {
		assert.NoError(t, e.Err)
		rels = append(rels, e.RelativePath)
	}
	assert.Equal(t, []string{"Z.go", "a.go", "a/b.go"}, rels)
}

func TestFilesystemRead(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "src/math.ts", "const x = 1\n")

	src, err := NewFilesystem(dir)
	require.NoError(t, err)

	t.Run("absolute path", func(t *testing.T) {
		f, err := src.Read(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "src/math.ts", f.RelativePath)
		assert.Equal(t, "typescript", f.Language)
		assert.Equal(t, "const x = 1\n", f.Content)
	})

	t.Run("relative path", func(t *testing.T) {
		f, err := src.Read(context.Background(), "src/math.ts")
		require.NoError(t, err)
		assert.Equal(t, path, f.Path)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := src.Read(context.Background(), "nope.ts")
		var srcErr *types.ContentSourceError
		require.True(t, errors.As(err, &srcErr))
		assert.Equal(t, "nope.ts", srcErr.Path)
	})

	t.Run("binary file", func(t *testing.T) {
		writeFile(t, dir, "blob.bin", string([]byte{0xff, 0xfe, 0x00, 0x01}))
		_, err := src.Read(context.Background(), "blob.bin")
		assert.ErrorIs(t, err, ErrBinaryContent)
	})

	t.Run("outside root", func(t *testing.T) {
		_, err := src.Read(context.Background(), "../escape.ts")
		assert.Error(t, err)
	})
}

func TestNewFilesystemValidation(t *testing.T) {
	_, err := NewFilesystem("")
	assert.Error(t, err)

	_, err = NewFilesystem(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := writeFile(t, t.TempDir(), "a.go", "package a\n")
	_, err = NewFilesystem(file)
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	src := NewMemory("mem", map[string]string{
		"b.py": "def f():\n    pass\n",
		"a.ts": "const a = 1\n",
	})

	entries, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.ts", entries[0].RelativePath)
	assert.Equal(t, "b.py", entries[1].RelativePath)

	f, err := src.Read(context.Background(), "b.py")
	require.NoError(t, err)
	assert.Equal(t, "python", f.Language)

	src.Delete("b.py")
	_, err = src.Read(context.Background(), "b.py")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"src/math.ts":  "typescript",
		"App.JSX":      "javascript",
		"main.go":      "go",
		"lib/x.py":     "python",
		"Dockerfile":   "dockerfile",
		"data.unknown": "unknown",
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectLanguage(path), path)
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		entry   Entry
		matches bool
	}{
		{"no patterns", Filter{}, Entry{RelativePath: "a/b.go"}, true},
		{"include basename", Filter{IncludePatterns: []string{"*.ts"}}, Entry{RelativePath: "src/math.ts"}, true},
		{"include miss", Filter{IncludePatterns: []string{"*.ts"}}, Entry{RelativePath: "src/main.go"}, false},
		{"dir glob", Filter{IncludePatterns: []string{"src/**"}}, Entry{RelativePath: "src/deep/x.go"}, true},
		{"any depth", Filter{ExcludePatterns: []string{"**/testdata/*"}}, Entry{RelativePath: "pkg/testdata/f.txt"}, false},
		{"exclude wins", Filter{IncludePatterns: []string{"*.go"}, ExcludePatterns: []string{"*_test.go"}}, Entry{RelativePath: "a_test.go"}, false},
		{"too large", Filter{MaxFileSizeBytes: 10}, Entry{RelativePath: "a.go", SizeBytes: 11}, false},
		{"mid-path globstar zero dirs", Filter{IncludePatterns: []string{"src/**/*.ts"}}, Entry{RelativePath: "src/a.ts"}, true},
		{"mid-path globstar one dir", Filter{IncludePatterns: []string{"src/**/*.ts"}}, Entry{RelativePath: "src/x/a.ts"}, true},
		{"mid-path globstar nested", Filter{IncludePatterns: []string{"src/**/*.ts"}}, Entry{RelativePath: "src/x/y/a.ts"}, true},
		{"mid-path globstar other root", Filter{IncludePatterns: []string{"src/**/*.ts"}}, Entry{RelativePath: "lib/x/a.ts"}, false},
		{"mid-path globstar exclude", Filter{ExcludePatterns: []string{"pkg/**/gen/*.go"}}, Entry{RelativePath: "pkg/a/b/gen/x.go"}, false},
		{"dir glob matches dir itself", Filter{IncludePatterns: []string{"src/**"}}, Entry{RelativePath: "src/x.go"}, true},
		{"leading globstar top level", Filter{IncludePatterns: []string{"**/*.go"}}, Entry{RelativePath: "main.go"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, tt.filter.Match(tt.entry))
		})
	}
}

func TestFilterValidate(t *testing.T) {
	f := Filter{}
	require.NoError(t, f.Validate())
	assert.Equal(t, int64(DefaultMaxFileSize), f.MaxFileSizeBytes)

	f = Filter{MaxFileSizeBytes: MaxFileSizeLimit + 1}
	assert.Error(t, f.Validate())

	f = Filter{IncludePatterns: []string{"[invalid"}}
	assert.Error(t, f.Validate())

	f = Filter{ExcludePatterns: []string{"src/**/[a-"}}
	assert.Error(t, f.Validate())

	f = Filter{IncludePatterns: []string{"src/**/*.{ts,tsx}"}}
	assert.NoError(t, f.Validate())
}

func TestWatcherDeliversDebouncedChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	path := writeFile(t, dir, "a.ts", "const a = 1\n")
	require.NoError(t, os.WriteFile(path, []byte("const a = 2\n"), 0o644))

	select {
	case c := <-w.Changes():
		assert.Equal(t, ChangeWrite, c.Op)
		assert.Equal(t, "a.ts", c.RelativePath)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	require.NoError(t, os.Remove(path))
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-w.Changes():
			if c.Op == ChangeRemove {
				assert.Equal(t, "a.ts", c.RelativePath)
				return
			}
		case <-deadline:
			t.Fatal("no remove delivered")
		}
	}
}
