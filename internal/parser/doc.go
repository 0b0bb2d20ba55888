// Package parser extracts symbols from source files.
//
// Go files are parsed with the standard library (go/parser, go/ast, go/token).
// Every other supported language goes through a line scanner driven by
// per-language declaration rules.
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.Parse(file) // file is a *types.SourceFile
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, symbol := range result.Symbols {
//	    fmt.Printf("%s %s at line %d\n", symbol.Kind, symbol.Name, symbol.Line)
//	}
//
// # Line Scanner
//
// Each line is matched against the language's rules in priority order:
// function, class, interface, enum, type, variable, import, export. The first
// match wins, so a line yields at most one symbol.
//
// Before matching, string literals and comments are blanked out (byte offsets
// are preserved). Braces inside "{" strings or /* } */ comments therefore do
// not disturb block detection.
//
// Functions, classes and interfaces get an EndLine:
//   - brace languages: the line where the brace depth returns to zero after
//     going positive; a header ending in ';' is a one-line declaration; an
//     unclosed body runs to end of file
//   - python: the last line indented deeper than the header
//
// Scope is the innermost enclosing class or interface (the receiver type for
// Go methods).
//
// # Supported Languages
//
//	typescript javascript go python java csharp c cpp
//	kotlin scala swift rust php
//
// Unsupported languages produce an empty result, never an error.
//
// # Error Handling
//
// A Go file that go/parser rejects is recorded in result.Errors and scanned
// with the Go line rules instead:
//
//	result, _ := p.Parse(broken)
//	if result.HasErrors() {
//	    fmt.Println(result.Errors[0].Error())
//	}
package parser
