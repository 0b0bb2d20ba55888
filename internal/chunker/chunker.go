package chunker

import (
	"fmt"
	"strings"

	"github.com/dshills/codeindex/pkg/types"
)

// SymbolParser is the symbol pass the chunker builds on
type SymbolParser interface {
	Parse(file *types.SourceFile) (*types.ParseResult, error)
}

// Chunker creates semantic code chunks from parsed source files
type Chunker struct{}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{}
}

// Extract runs the symbol pass and the chunk pass over one file.
//
// A failed or panicking parse never aborts the caller: the returned
// extraction is the whole-file fallback (Fallback set) and the error is a
// *types.ParseError describing what went wrong.
func (c *Chunker) Extract(p SymbolParser, file *types.SourceFile) (ext *types.Extraction, err error) {
	if file == nil {
		return nil, fmt.Errorf("file cannot be nil")
	}

	defer func() {
		if r := recover(); r != nil {
			ext = c.fallbackExtraction(file)
			err = &types.ParseError{File: file.Path, Message: fmt.Sprintf("parser panic: %v", r)}
		}
	}()

	result, perr := p.Parse(file)
	if perr != nil {
		return c.fallbackExtraction(file), &types.ParseError{File: file.Path, Message: perr.Error()}
	}

	return &types.Extraction{
		Symbols: result.Symbols,
		Chunks:  c.ChunkFile(file, result),
	}, nil
}

// ChunkFile creates one chunk per function, class and interface span. When
// the file has no such spans, a single chunk covers the whole file.
func (c *Chunker) ChunkFile(file *types.SourceFile, result *types.ParseResult) []*types.Chunk {
	lines := file.Lines()
	if len(lines) == 0 {
		return nil
	}

	chunks := make([]*types.Chunk, 0)

	for i := range result.Symbols {
		sym := &result.Symbols[i]
		if !sym.HasBody() {
			continue
		}

		chunk := c.createChunkForSymbol(file, sym, lines, result.Symbols)
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}

	if len(chunks) == 0 {
		kind := types.ChunkFile
		if len(result.Symbols) > 0 {
			kind = types.ChunkModule
		}
		chunks = append(chunks, c.createFileChunk(file, lines, kind, result.Symbols))
	}

	return chunks
}

// Fallback returns the single whole-file chunk used for unsupported
// languages and failed parses
func (c *Chunker) Fallback(file *types.SourceFile) []*types.Chunk {
	lines := file.Lines()
	if len(lines) == 0 {
		return nil
	}
	return []*types.Chunk{c.createFileChunk(file, lines, types.ChunkFile, nil)}
}

func (c *Chunker) fallbackExtraction(file *types.SourceFile) *types.Extraction {
	return &types.Extraction{
		Chunks:   c.Fallback(file),
		Fallback: true,
	}
}

// createChunkForSymbol creates a chunk for a symbol's span, clamped to the file
func (c *Chunker) createChunkForSymbol(file *types.SourceFile, sym *types.Symbol, lines []string, all []types.Symbol) *types.Chunk {
	if sym.Line <= 0 || sym.Line > len(lines) {
		return nil
	}

	start := sym.Line
	end := sym.EndLine
	if end < start {
		end = start
	}
	if end > len(lines) {
		end = len(lines)
	}

	chunk := &types.Chunk{
		Content:      strings.Join(lines[start-1:end], "\n"),
		FilePath:     file.Path,
		RelativePath: file.RelativePath,
		Language:     file.Language,
		StartLine:    start,
		EndLine:      end,
		Kind:         types.ChunkKindFor(sym.Kind),
		Symbols:      symbolsWithin(all, start, end),
	}
	chunk.ComputeID()

	return chunk
}

func (c *Chunker) createFileChunk(file *types.SourceFile, lines []string, kind types.ChunkKind, symbols []types.Symbol) *types.Chunk {
	chunk := &types.Chunk{
		Content:      strings.Join(lines, "\n"),
		FilePath:     file.Path,
		RelativePath: file.RelativePath,
		Language:     file.Language,
		StartLine:    1,
		EndLine:      len(lines),
		Kind:         kind,
		Symbols:      append([]types.Symbol(nil), symbols...),
	}
	chunk.ComputeID()

	return chunk
}

// symbolsWithin returns the symbols declared on lines [start, end]
func symbolsWithin(symbols []types.Symbol, start, end int) []types.Symbol {
	var owned []types.Symbol
	for i := range symbols {
		if symbols[i].Line >= start && symbols[i].Line <= end {
			owned = append(owned, symbols[i])
		}
	}
	return owned
}
