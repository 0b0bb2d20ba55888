package parser

import "unicode/utf8"

// syntax describes the lexical features needed to blank out literals and comments
type syntax struct {
	lineComments  []string
	blockComments bool
	backtick      bool     // backtick strings may span lines
	tripleQuotes  []string // triple-quoted strings may span lines
	indentBlocks  bool     // bodies are delimited by indentation, not braces
	charQuote     bool     // single quotes delimit one character, not a string
}

var (
	cSyntax = syntax{
		lineComments:  []string{"//"},
		blockComments: true,
		charQuote:     true,
	}
	jsSyntax = syntax{
		lineComments:  []string{"//"},
		blockComments: true,
		backtick:      true,
	}
	goSyntax = syntax{
		lineComments:  []string{"//"},
		blockComments: true,
		backtick:      true,
		charQuote:     true,
	}
	jvmSyntax = syntax{
		lineComments:  []string{"//"},
		blockComments: true,
		tripleQuotes:  []string{`"""`},
		charQuote:     true,
	}
	phpSyntax = syntax{
		lineComments:  []string{"//", "#"},
		blockComments: true,
	}
	pythonSyntax = syntax{
		lineComments: []string{"#"},
		tripleQuotes: []string{`"""`, `'''`},
		indentBlocks: true,
	}
)

type lexState int

const (
	stateCode lexState = iota
	stateBlockComment
	stateBacktick
	stateTriple
)

// stripLiterals returns a copy of lines in which string literals and comments
// are replaced by spaces. Byte offsets are preserved so positions found in the
// code lines index the original lines too.
//
// Single and double quoted strings must close on the line they open; an
// unmatched quote is treated as an ordinary character (Rust lifetimes,
// apostrophes in unrecognized contexts).
func (s syntax) stripLiterals(lines []string) []string {
	out := make([]string, len(lines))
	state := stateCode
	closing := ""

	for i, line := range lines {
		b := []byte(line)
		j := 0
		for j < len(b) {
			switch state {
			case stateBlockComment:
				if hasPrefixAt(b, j, "*/") {
					blank(b, j, j+2)
					j += 2
					state = stateCode
					continue
				}
				b[j] = ' '
				j++

			case stateBacktick:
				if b[j] == '\\' {
					blank(b, j, j+2)
					j += 2
					continue
				}
				if b[j] == '`' {
					state = stateCode
				}
				b[j] = ' '
				j++

			case stateTriple:
				if hasPrefixAt(b, j, closing) {
					blank(b, j, j+len(closing))
					j += len(closing)
					state = stateCode
					continue
				}
				if b[j] == '\\' {
					blank(b, j, j+2)
					j += 2
					continue
				}
				b[j] = ' '
				j++

			default:
				j = s.scanCode(b, j, &state, &closing)
			}
		}
		out[i] = string(b)
	}

	return out
}

// scanCode advances over one token in code state and returns the next offset
func (s syntax) scanCode(b []byte, j int, state *lexState, closing *string) int {
	if s.blockComments && hasPrefixAt(b, j, "/*") {
		blank(b, j, j+2)
		*state = stateBlockComment
		return j + 2
	}

	for _, lc := range s.lineComments {
		if hasPrefixAt(b, j, lc) {
			blank(b, j, len(b))
			return len(b)
		}
	}

	for _, tq := range s.tripleQuotes {
		if hasPrefixAt(b, j, tq) {
			blank(b, j, j+len(tq))
			*state = stateTriple
			*closing = tq
			return j + len(tq)
		}
	}

	switch c := b[j]; {
	case c == '`' && s.backtick:
		b[j] = ' '
		*state = stateBacktick
		return j + 1
	case c == '\'' && s.charQuote:
		end := closingCharQuote(b, j)
		if end < 0 {
			return j + 1
		}
		blank(b, j, end+1)
		return end + 1
	case c == '"' || c == '\'':
		end := closingQuote(b, j)
		if end < 0 {
			return j + 1
		}
		blank(b, j, end+1)
		return end + 1
	}

	return j + 1
}

// closingQuote finds the offset of the quote closing the literal opened at start, or -1
func closingQuote(b []byte, start int) int {
	q := b[start]
	for k := start + 1; k < len(b); k++ {
		switch b[k] {
		case '\\':
			k++
		case q:
			return k
		}
	}
	return -1
}

// closingCharQuote finds the end of a character literal ('x' or an escape),
// or -1 when the quote starts something else such as a Rust lifetime
func closingCharQuote(b []byte, start int) int {
	if start+1 >= len(b) {
		return -1
	}
	if b[start+1] == '\\' {
		return closingQuote(b, start)
	}
	_, size := utf8.DecodeRune(b[start+1:])
	if end := start + 1 + size; end < len(b) && b[end] == '\'' {
		return end
	}
	return -1
}

func hasPrefixAt(b []byte, j int, prefix string) bool {
	if prefix == "" || len(b)-j < len(prefix) {
		return false
	}
	return string(b[j:j+len(prefix)]) == prefix
}

func blank(b []byte, from, to int) {
	if to > len(b) {
		to = len(b)
	}
	for k := from; k < to; k++ {
		b[k] = ' '
	}
}
