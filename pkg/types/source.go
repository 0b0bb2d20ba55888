package types

import (
	"strings"
	"time"
)

// SourceFile is a single file yielded by a content source
type SourceFile struct {
	Path         string // Absolute or source-native path
	RelativePath string // Relative to the source root
	Content      string
	SizeBytes    int64
	ModifiedAt   time.Time
	Language     string
	IsDirectory  bool
}

// Lines splits the file content into lines. A single trailing newline does
// not produce an extra empty line.
func (f *SourceFile) Lines() []string {
	return SplitLines(f.Content)
}

// LineCount returns the number of lines in the file
func (f *SourceFile) LineCount() int {
	return len(f.Lines())
}

// SplitLines splits text on "\n", dropping the empty element produced by a
// trailing newline and stripping carriage returns.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
