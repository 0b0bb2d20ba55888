package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/storage"
	"github.com/dshills/codeindex/pkg/types"
)

// Document metadata keys
const (
	MetaDocType      = "doc_type"
	MetaFilePath     = "file_path"
	MetaRelativePath = "relative_path"
	MetaLanguage     = "language"
	MetaFileType     = "file_type"
	MetaKind         = "kind"
	MetaStartLine    = "start_line"
	MetaEndLine      = "end_line"
	MetaName         = "name"
	MetaScope        = "scope"
	MetaChunkID      = "chunk_id"
)

// Document types
const (
	DocTypeChunk  = "chunk"
	DocTypeSymbol = "symbol"
)

// documentsFor maps one file's extraction to store documents: one per
// chunk, then one per symbol. Content is the text that gets embedded.
func documentsFor(file *types.SourceFile, ext *types.Extraction) []*storage.Document {
	if ext == nil {
		return nil
	}
	docs := make([]*storage.Document, 0, len(ext.Chunks)+len(ext.Symbols))

	owner := make(map[int]string) // symbol line -> chunk ID
	for _, c := range ext.Chunks {
		if c.ID == "" {
			c.ComputeID()
		}
		name := c.RelativePath
		if names := c.SymbolNames(); len(names) > 0 {
			name = names[0]
		}
		for i := range c.Symbols {
			if _, ok := owner[c.Symbols[i].Line]; !ok {
				owner[c.Symbols[i].Line] = c.ID
			}
		}

		meta := baseMetadata(file, DocTypeChunk)
		meta[MetaKind] = string(c.Kind)
		meta[MetaStartLine] = strconv.Itoa(c.StartLine)
		meta[MetaEndLine] = strconv.Itoa(c.EndLine)
		meta[MetaName] = name
		meta[MetaChunkID] = c.ID

		docs = append(docs, &storage.Document{
			ID:       ChunkDocumentID(c.ID),
			Content:  embedder.FormatChunk(c),
			Metadata: meta,
		})
	}

	for i := range ext.Symbols {
		sym := &ext.Symbols[i]
		end := sym.EndLine
		if end < sym.Line {
			end = sym.Line
		}

		meta := baseMetadata(file, DocTypeSymbol)
		meta[MetaKind] = string(sym.Kind)
		meta[MetaStartLine] = strconv.Itoa(sym.Line)
		meta[MetaEndLine] = strconv.Itoa(end)
		meta[MetaName] = sym.Name
		if sym.Scope != "" {
			meta[MetaScope] = sym.Scope
		}
		if id, ok := owner[sym.Line]; ok {
			meta[MetaChunkID] = id
		}

		docs = append(docs, &storage.Document{
			ID:       SymbolDocumentID(sym),
			Content:  embedder.FormatSymbol(sym),
			Metadata: meta,
		})
	}
	return docs
}

func baseMetadata(file *types.SourceFile, docType string) map[string]string {
	return map[string]string{
		MetaDocType:      docType,
		MetaFilePath:     file.Path,
		MetaRelativePath: file.RelativePath,
		MetaLanguage:     file.Language,
		MetaFileType:     FileType(file.RelativePath),
	}
}

// FileType is the lowercased extension of p without the dot
func FileType(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// ChunkDocumentID is the store ID of a chunk document
func ChunkDocumentID(chunkID string) string {
	return "chunk:" + chunkID
}

// SymbolDocumentID derives a stable store ID from the symbol's location
// and declaration
func SymbolDocumentID(sym *types.Symbol) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%s", sym.RelativePath, sym.Kind, sym.Scope, sym.Name, sym.Line, sym.EndLine, sym.Signature)
	sum := sha256.Sum256([]byte(key))
	return "sym:" + hex.EncodeToString(sum[:12])
}
