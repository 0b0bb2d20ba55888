package source

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultMaxFileSize is applied when no size limit is configured
	DefaultMaxFileSize = 1024 * 1024
	// MaxFileSizeLimit is the largest accepted size limit
	MaxFileSizeLimit = 10 * 1024 * 1024
)

// Filter decides which entries are indexed
type Filter struct {
	// IncludePatterns are glob patterns for files to include (e.g. "*.ts", "src/**").
	// If empty, all files are included (subject to exclude patterns and size limit).
	IncludePatterns []string

	// ExcludePatterns are glob patterns for files to exclude. Takes precedence over includes.
	ExcludePatterns []string

	// MaxFileSizeBytes is the maximum file size to index
	MaxFileSizeBytes int64
}

// Validate checks patterns and applies the default size limit
func (f *Filter) Validate() error {
	if f.MaxFileSizeBytes == 0 {
		f.MaxFileSizeBytes = DefaultMaxFileSize
	}
	if f.MaxFileSizeBytes < 0 {
		return fmt.Errorf("max file size cannot be negative")
	}
	if f.MaxFileSizeBytes > MaxFileSizeLimit {
		return fmt.Errorf("max file size cannot exceed %d bytes", MaxFileSizeLimit)
	}

	for _, p := range f.IncludePatterns {
		if err := validatePattern(p); err != nil {
			return fmt.Errorf("invalid include pattern: %w", err)
		}
	}
	for _, p := range f.ExcludePatterns {
		if err := validatePattern(p); err != nil {
			return fmt.Errorf("invalid exclude pattern: %w", err)
		}
	}
	return nil
}

// Reason returns why an entry is excluded, or "" when it should be indexed
func (f *Filter) Reason(e Entry) string {
	if f.MaxFileSizeBytes > 0 && e.SizeBytes > f.MaxFileSizeBytes {
		return fmt.Sprintf("exceeds max size (%d > %d bytes)", e.SizeBytes, f.MaxFileSizeBytes)
	}

	for _, p := range f.ExcludePatterns {
		if matchPattern(p, e.RelativePath) {
			return fmt.Sprintf("matches exclude pattern %q", p)
		}
	}

	if len(f.IncludePatterns) == 0 {
		return ""
	}
	for _, p := range f.IncludePatterns {
		if matchPattern(p, e.RelativePath) {
			return ""
		}
	}
	return "matches no include pattern"
}

// Match reports whether the entry passes the filter
func (f *Filter) Match(e Entry) bool {
	return f.Reason(e) == ""
}

func validatePattern(p string) error {
	if !doublestar.ValidatePattern(p) {
		return fmt.Errorf("%q: %w", p, doublestar.ErrBadPattern)
	}
	return nil
}

// matchPattern matches a slash-separated relative path against a glob.
// Patterns without a slash match the base name; "**" spans any number of
// directories, including none.
func matchPattern(pattern, rel string) bool {
	if !strings.Contains(pattern, "/") {
		if ok, _ := doublestar.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}

	ok, _ := doublestar.Match(pattern, rel)
	return ok
}
