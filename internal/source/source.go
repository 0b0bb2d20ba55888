package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dshills/codeindex/pkg/types"
)

// ErrBinaryContent is returned when a file is not valid UTF-8
var ErrBinaryContent = errors.New("binary content")

// defaultSkipDirs are directories that are never walked
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// Entry describes a file a source can yield, without its content
type Entry struct {
	Path         string
	RelativePath string
	SizeBytes    int64
	ModifiedAt   time.Time

	// Err is set when the path could not be listed. Such entries are
	// reported as skipped rather than read.
	Err error
}

// Source yields files to index
type Source interface {
	// Root identifies the source (directory path or logical name)
	Root() string

	// List returns every candidate file, sorted by relative path
	List(ctx context.Context) ([]Entry, error)

	// Read loads a single file. Failures are reported as *types.ContentSourceError.
	Read(ctx context.Context, path string) (*types.SourceFile, error)
}

// Filesystem is a Source backed by a directory tree
type Filesystem struct {
	root string
}

// NewFilesystem creates a filesystem source rooted at dir
func NewFilesystem(dir string) (*Filesystem, error) {
	if dir == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	root, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path does not exist: %s", root)
		}
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path must be a directory: %s", root)
	}

	return &Filesystem{root: root}, nil
}

// Root returns the absolute root directory
func (f *Filesystem) Root() string {
	return f.root
}

// List walks the tree, skipping hidden and dependency directories
func (f *Filesystem) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := filepath.WalkDir(f.root, f.walkFunc(ctx, &entries)); err != nil {
		return nil, fmt.Errorf("walking file tree: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
	return entries, nil
}

// walkFunc collects regular files beneath the root. A path below the root
// that cannot be read becomes an Entry carrying Err, and the walk goes on.
func (f *Filesystem) walkFunc(ctx context.Context, entries *[]Entry) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if path == f.root {
				return err
			}
			*entries = append(*entries, f.failedEntry(path, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == f.root {
				return nil
			}
			name := d.Name()
			if defaultSkipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			*entries = append(*entries, f.failedEntry(path, err))
			return nil
		}

		*entries = append(*entries, Entry{
			Path:         path,
			RelativePath: f.relative(path),
			SizeBytes:    info.Size(),
			ModifiedAt:   info.ModTime(),
		})
		return nil
	}
}

func (f *Filesystem) failedEntry(path string, err error) Entry {
	rel := f.relative(path)
	return Entry{
		Path:         path,
		RelativePath: rel,
		Err:          &types.ContentSourceError{Path: rel, Err: err},
	}
}

func (f *Filesystem) relative(path string) string {
	rel, err := filepath.Rel(f.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Read loads a file under the root. Relative paths are resolved against the root.
func (f *Filesystem) Read(ctx context.Context, path string) (*types.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(f.root, filepath.FromSlash(path))
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(f.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, &types.ContentSourceError{Path: path, Err: fmt.Errorf("outside source root %s", f.root)}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &types.ContentSourceError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &types.ContentSourceError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, &types.ContentSourceError{Path: path, Err: err}
	}

	if !utf8.Valid(content) {
		return nil, &types.ContentSourceError{Path: path, Err: ErrBinaryContent}
	}

	rel = filepath.ToSlash(rel)
	return &types.SourceFile{
		Path:         abs,
		RelativePath: rel,
		Content:      string(content),
		SizeBytes:    info.Size(),
		ModifiedAt:   info.ModTime(),
		Language:     DetectLanguage(rel),
	}, nil
}

// Memory is an in-memory Source keyed by relative path
type Memory struct {
	name  string
	mu    sync.RWMutex
	files map[string]memoryFile
}

type memoryFile struct {
	content    string
	modifiedAt time.Time
}

// NewMemory creates an in-memory source from relative path -> content
func NewMemory(name string, files map[string]string) *Memory {
	m := &Memory{
		name:  name,
		files: make(map[string]memoryFile, len(files)),
	}
	now := time.Now()
	for path, content := range files {
		m.files[path] = memoryFile{content: content, modifiedAt: now}
	}
	return m
}

// Root returns the logical name of the source
func (m *Memory) Root() string {
	return m.name
}

// Put adds or replaces a file
func (m *Memory) Put(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = memoryFile{content: content, modifiedAt: time.Now()}
}

// Delete removes a file
func (m *Memory) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// List returns all files sorted by path
func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.files))
	for path, f := range m.files {
		entries = append(entries, Entry{
			Path:         path,
			RelativePath: path,
			SizeBytes:    int64(len(f.content)),
			ModifiedAt:   f.modifiedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
	return entries, nil
}

// Read returns the file at path
func (m *Memory) Read(ctx context.Context, path string) (*types.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	f, ok := m.files[path]
	m.mu.RUnlock()
	if !ok {
		return nil, &types.ContentSourceError{Path: path, Err: os.ErrNotExist}
	}

	return &types.SourceFile{
		Path:         path,
		RelativePath: path,
		Content:      f.content,
		SizeBytes:    int64(len(f.content)),
		ModifiedAt:   f.modifiedAt,
		Language:     DetectLanguage(path),
	}, nil
}
