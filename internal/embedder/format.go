package embedder

import (
	"fmt"
	"strings"

	"github.com/dshills/codeindex/pkg/types"
)

// FormatChunk renders a chunk as the text that gets embedded
func FormatChunk(chunk *types.Chunk) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\n", chunk.RelativePath)
	fmt.Fprintf(&b, "Language: %s\n", chunk.Language)
	fmt.Fprintf(&b, "Kind: %s\n", chunk.Kind)
	if names := chunk.SymbolNames(); len(names) > 0 {
		fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "Lines: %d-%d\n\n", chunk.StartLine, chunk.EndLine)
	b.WriteString(chunk.Content)

	return b.String()
}

// FormatSymbol renders a symbol declaration as the text that gets embedded
func FormatSymbol(sym *types.Symbol) string {
	var b strings.Builder

	fmt.Fprintf(&b, "File: %s\n", sym.RelativePath)
	fmt.Fprintf(&b, "Language: %s\n", sym.Language)
	fmt.Fprintf(&b, "Kind: %s\n", sym.Kind)
	if sym.Scope != "" {
		fmt.Fprintf(&b, "Symbols: %s.%s\n", sym.Scope, sym.Name)
	} else {
		fmt.Fprintf(&b, "Symbols: %s\n", sym.Name)
	}
	end := sym.EndLine
	if end < sym.Line {
		end = sym.Line
	}
	fmt.Fprintf(&b, "Lines: %d-%d\n\n", sym.Line, end)
	b.WriteString(sym.Signature)

	return b.String()
}
