package types

import (
	"errors"
)

// SymbolKind represents the kind of named declaration
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindVariable  SymbolKind = "variable"
	KindImport    SymbolKind = "import"
	KindExport    SymbolKind = "export"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindEnum      SymbolKind = "enum"
)

// AllSymbolKinds lists every valid symbol kind
var AllSymbolKinds = []SymbolKind{
	KindFunction, KindClass, KindVariable, KindImport,
	KindExport, KindInterface, KindType, KindEnum,
}

// Symbol represents a named declaration extracted from one line of a file
type Symbol struct {
	// Identification
	Name string
	Kind SymbolKind

	// Location
	FilePath     string
	RelativePath string
	Language     string
	Line         int
	Column       int
	EndLine      int // Last line of the declaration body; equals Line for one-line declarations

	// Content
	Signature string
	Scope     string // Enclosing declaration (class name, receiver type); empty at top level

	ImportRefs []string
	ExportRefs []string
}

// ValidateKind checks if the symbol kind is valid
func (s *Symbol) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindClass, KindVariable, KindImport,
		KindExport, KindInterface, KindType, KindEnum:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// HasBody reports whether the symbol opens a chunk-worthy span
func (s *Symbol) HasBody() bool {
	switch s.Kind {
	case KindFunction, KindClass, KindInterface:
		return true
	default:
		return false
	}
}

// Validate performs comprehensive validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	if err := s.ValidateKind(); err != nil {
		return err
	}

	if s.FilePath == "" {
		return errors.New("file path is required")
	}

	if s.Line <= 0 {
		return errors.New("invalid position: line numbers must be positive")
	}

	if s.EndLine != 0 && s.EndLine < s.Line {
		return errors.New("invalid position: end line must not precede line")
	}

	return nil
}
