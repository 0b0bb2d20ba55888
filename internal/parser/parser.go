package parser

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/dshills/codeindex/pkg/types"
)

// Parser extracts symbols from source files
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// Supports reports whether the language has declaration rules
func (p *Parser) Supports(lang string) bool {
	_, ok := languages[strings.ToLower(lang)]
	return ok
}

// Languages returns the supported language names
func (p *Parser) Languages() []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	return names
}

// Parse extracts the symbols declared in file. Unsupported languages yield an
// empty result. Go files are parsed with go/parser; when that fails the
// syntax error is recorded and the line scanner is used instead.
func (p *Parser) Parse(file *types.SourceFile) (*types.ParseResult, error) {
	if file == nil {
		return nil, errors.New("file cannot be nil")
	}

	result := &types.ParseResult{}

	lang, ok := languages[strings.ToLower(file.Language)]
	if !ok {
		return result, nil
	}

	lines := file.Lines()
	if len(lines) == 0 {
		return result, nil
	}

	if strings.EqualFold(file.Language, "go") {
		symbols, err := parseGo(file)
		if err == nil {
			result.Symbols = symbols
			return result, nil
		}

		line, col := 0, 0
		var list scanner.ErrorList
		if errors.As(err, &list) && len(list) > 0 {
			line, col = list[0].Pos.Line, list[0].Pos.Column
		}
		result.AddError(file.Path, line, col, fmt.Sprintf("syntax error: %v", err))
	}

	result.Symbols = newScanner(file, lang, lines).scan()
	return result, nil
}

// parseGo extracts top-level declarations from a Go file
func parseGo(file *types.SourceFile) ([]types.Symbol, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file.Path, file.Content, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	e := &goExtractor{fset: fset, file: file}

	for _, imp := range f.Imports {
		e.extractImport(imp)
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			e.extractFunction(d)
		case *ast.GenDecl:
			e.extractGenDecl(d)
		}
	}

	return e.symbols, nil
}

// goExtractor turns top-level Go declarations into symbols
type goExtractor struct {
	fset    *token.FileSet
	file    *types.SourceFile
	symbols []types.Symbol
}

func (e *goExtractor) newSymbol(name string, kind types.SymbolKind, namePos, start, end token.Pos) types.Symbol {
	startPos := e.fset.Position(start)
	return types.Symbol{
		Name:         name,
		Kind:         kind,
		FilePath:     e.file.Path,
		RelativePath: e.file.RelativePath,
		Language:     e.file.Language,
		Line:         startPos.Line,
		Column:       e.fset.Position(namePos).Column,
		EndLine:      e.fset.Position(end).Line,
	}
}

// extractImport records an import; the bound name is the alias or the last path segment
func (e *goExtractor) extractImport(imp *ast.ImportSpec) {
	path := strings.Trim(imp.Path.Value, "`\"")
	sym := e.newSymbol(path, types.KindImport, imp.Path.Pos(), imp.Pos(), imp.End())

	if imp.Name != nil {
		sym.ImportRefs = []string{imp.Name.Name}
	} else {
		sym.ImportRefs = importRefs(path, "")
	}
	sym.Signature = "import " + imp.Path.Value

	e.symbols = append(e.symbols, sym)
}

// extractFunction extracts function and method declarations
func (e *goExtractor) extractFunction(fn *ast.FuncDecl) {
	sym := e.newSymbol(fn.Name.Name, types.KindFunction, fn.Name.Pos(), fn.Pos(), fn.End())

	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sym.Scope = receiverType(fn.Recv.List[0].Type)
	}
	sym.Signature = functionSignature(fn)
	if token.IsExported(fn.Name.Name) {
		sym.ExportRefs = []string{fn.Name.Name}
	}

	e.symbols = append(e.symbols, sym)
}

// extractGenDecl extracts type, const, and var declarations
func (e *goExtractor) extractGenDecl(gd *ast.GenDecl) {
	for _, spec := range gd.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			e.extractTypeSpec(gd, s)
		case *ast.ValueSpec:
			e.extractValueSpec(gd, s)
		}
	}
}

func (e *goExtractor) extractTypeSpec(gd *ast.GenDecl, ts *ast.TypeSpec) {
	// A lone "type X struct {...}" starts at the type keyword
	start := ts.Pos()
	if !gd.Lparen.IsValid() {
		start = gd.Pos()
	}

	var kind types.SymbolKind
	var sig string
	switch t := ts.Type.(type) {
	case *ast.StructType:
		kind = types.KindClass
		sig = fmt.Sprintf("type %s struct { ... } // %d fields", ts.Name.Name, t.Fields.NumFields())
	case *ast.InterfaceType:
		kind = types.KindInterface
		sig = fmt.Sprintf("type %s interface { ... } // %d methods", ts.Name.Name, t.Methods.NumFields())
	default:
		kind = types.KindType
		sig = fmt.Sprintf("type %s %s", ts.Name.Name, exprString(ts.Type))
	}

	sym := e.newSymbol(ts.Name.Name, kind, ts.Name.Pos(), start, ts.End())
	sym.Signature = sig
	if token.IsExported(ts.Name.Name) {
		sym.ExportRefs = []string{ts.Name.Name}
	}

	e.symbols = append(e.symbols, sym)
}

func (e *goExtractor) extractValueSpec(gd *ast.GenDecl, vs *ast.ValueSpec) {
	for _, name := range vs.Names {
		if name.Name == "_" {
			continue
		}
		sym := e.newSymbol(name.Name, types.KindVariable, name.Pos(), name.Pos(), name.End())

		switch {
		case vs.Type != nil:
			sym.Signature = fmt.Sprintf("%s %s %s", gd.Tok, name.Name, exprString(vs.Type))
		case len(vs.Values) > 0:
			sym.Signature = fmt.Sprintf("%s %s = ...", gd.Tok, name.Name)
		default:
			sym.Signature = fmt.Sprintf("%s %s", gd.Tok, name.Name)
		}
		if token.IsExported(name.Name) {
			sym.ExportRefs = []string{name.Name}
		}

		e.symbols = append(e.symbols, sym)
	}
}

// receiverType extracts the receiver type name from a method
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

// functionSignature builds a function signature string
func functionSignature(fn *ast.FuncDecl) string {
	var sig strings.Builder

	sig.WriteString("func ")
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprString(fn.Recv.List[0].Type))
		sig.WriteString(") ")
	}

	sig.WriteString(fn.Name.Name)
	sig.WriteString("(")
	sig.WriteString(fieldListString(fn.Type.Params))
	sig.WriteString(")")

	if fn.Type.Results != nil {
		results := fieldListString(fn.Type.Results)
		if results != "" {
			if fn.Type.Results.NumFields() > 1 || len(fn.Type.Results.List[0].Names) > 0 {
				sig.WriteString(" (" + results + ")")
			} else {
				sig.WriteString(" " + results)
			}
		}
	}

	return sig.String()
}

// fieldListString converts a field list to a string representation
func fieldListString(fl *ast.FieldList) string {
	if fl == nil || len(fl.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fl.List {
		typeStr := exprString(field.Type)
		if len(field.Names) == 0 {
			parts = append(parts, typeStr)
			continue
		}
		for _, name := range field.Names {
			parts = append(parts, name.Name+" "+typeStr)
		}
	}

	return strings.Join(parts, ", ")
}

// exprString converts a type expression to a compact string
func exprString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprString(t.Key), exprString(t.Value))
	case *ast.ChanType:
		return "chan " + exprString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.StructType:
		return "struct{...}"
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.IndexExpr:
		return exprString(t.X) + "[" + exprString(t.Index) + "]"
	default:
		return "..."
	}
}
