package types

// ParseResult represents the output of the symbol pass over one file
type ParseResult struct {
	Symbols []Symbol

	// Errors encountered during parsing that did not prevent extraction
	Errors []ParseError
}

// Extraction is the complete structural extraction of one file
type Extraction struct {
	Symbols []Symbol
	Chunks  []*Chunk

	// Fallback is set when the whole-file chunk replaced a failed parse
	Fallback bool
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}
