package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ChunkKind represents the type of code chunk
type ChunkKind string

const (
	ChunkFunction  ChunkKind = "function"
	ChunkClass     ChunkKind = "class"
	ChunkInterface ChunkKind = "interface"
	ChunkModule    ChunkKind = "module"
	ChunkFile      ChunkKind = "file"
)

// Chunk represents a contiguous, semantically bounded span of source text
type Chunk struct {
	// Identification
	ID          string
	ContentHash [32]byte

	// Content
	Content string

	// Location
	FilePath     string
	RelativePath string
	Language     string
	StartLine    int
	EndLine      int

	// Metadata
	Kind    ChunkKind
	Symbols []Symbol // Symbols whose line falls inside the span
}

// ChunkKindFor maps a symbol kind to the chunk kind of its span
func ChunkKindFor(kind SymbolKind) ChunkKind {
	switch kind {
	case KindFunction:
		return ChunkFunction
	case KindClass:
		return ChunkClass
	case KindInterface:
		return ChunkInterface
	default:
		return ChunkModule
	}
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	return nil
}

// ValidateKind checks if the chunk kind is valid
func (c *Chunk) ValidateKind() error {
	switch c.Kind {
	case ChunkFunction, ChunkClass, ChunkInterface, ChunkModule, ChunkFile:
		return nil
	default:
		return errors.New("invalid chunk kind")
	}
}

// Validate checks the chunk against the line count of its owning file
func (c *Chunk) Validate(totalLines int) error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	if err := c.ValidateKind(); err != nil {
		return err
	}

	if c.EndLine > totalLines {
		return fmt.Errorf("end line %d exceeds file length %d", c.EndLine, totalLines)
	}

	for i := range c.Symbols {
		if c.Symbols[i].FilePath != c.FilePath {
			return fmt.Errorf("symbol %s belongs to %s, not %s", c.Symbols[i].Name, c.Symbols[i].FilePath, c.FilePath)
		}
	}

	return nil
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// ComputeID derives a stable identifier from the chunk's location and content,
// so re-parsing an unchanged file yields the same IDs.
func (c *Chunk) ComputeID() string {
	c.ComputeContentHash()
	key := fmt.Sprintf("%s|%s|%d|%d|%x", c.RelativePath, c.Kind, c.StartLine, c.EndLine, c.ContentHash)
	sum := sha256.Sum256([]byte(key))
	c.ID = hex.EncodeToString(sum[:12])
	return c.ID
}

// SymbolNames returns the names of the symbols owned by the chunk
func (c *Chunk) SymbolNames() []string {
	names := make([]string, 0, len(c.Symbols))
	for i := range c.Symbols {
		names = append(names, c.Symbols[i].Name)
	}
	return names
}
