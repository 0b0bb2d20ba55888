package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/codeindex/pkg/types"
)

const (
	// maxSignatureLen bounds the stored declaration line
	maxSignatureLen = 200

	// braceLookahead is how many lines past a header may precede its opening brace
	braceLookahead = 5
)

// sourceExtensions are stripped from include paths before taking the bound name
var sourceExtensions = []string{".hpp", ".hh", ".h", ".tsx", ".ts", ".jsx", ".mjs", ".cjs", ".js", ".php", ".py"}

// lineScanner is the line-oriented extractor used for every language except
// well-formed Go
type lineScanner struct {
	file  *types.SourceFile
	lang  language
	lines []string // original lines
	code  []string // lines with literals and comments blanked
}

func newScanner(file *types.SourceFile, lang language, lines []string) *lineScanner {
	return &lineScanner{
		file:  file,
		lang:  lang,
		lines: lines,
		code:  lang.syntax.stripLiterals(lines),
	}
}

// scan walks the file line by line, recognizing at most one declaration per line
func (s *lineScanner) scan() []types.Symbol {
	var symbols []types.Symbol

	for i := range s.lines {
		codeLine := s.code[i]
		if strings.TrimSpace(codeLine) == "" {
			continue
		}

		sym, ok := s.matchLine(i)
		if !ok {
			continue
		}

		if sym.HasBody() {
			sym.EndLine = s.blockEnd(i) + 1
		} else {
			sym.EndLine = sym.Line
		}
		symbols = append(symbols, sym)
	}

	assignScopes(symbols)
	return symbols
}

// matchLine applies the language rules in priority order to line i (zero-based)
func (s *lineScanner) matchLine(i int) (types.Symbol, bool) {
	codeLine := s.code[i]
	trimmed := strings.TrimLeft(codeLine, " \t")
	offset := len(codeLine) - len(trimmed)
	rawTrimmed := strings.TrimLeft(s.lines[i], " \t")

	for _, rl := range s.lang.rules {
		if rl.topLevel && offset > 0 {
			continue
		}

		subject := trimmed
		if rl.raw {
			subject = rawTrimmed
		}

		m := rl.re.FindStringSubmatchIndex(subject)
		if m == nil {
			continue
		}

		groups := func(name string) (string, int) {
			idx := rl.re.SubexpIndex(name)
			if idx < 0 || m[2*idx] < 0 {
				return "", -1
			}
			return subject[m[2*idx]:m[2*idx+1]], m[2*idx]
		}

		if ret, _ := groups("ret"); ret != "" && hasReservedWord(ret) {
			continue
		}

		sym := types.Symbol{
			Kind:         rl.kind,
			FilePath:     s.file.Path,
			RelativePath: s.file.RelativePath,
			Language:     s.file.Language,
			Line:         i + 1,
			Signature:    signature(s.lines[i]),
		}

		switch rl.kind {
		case types.KindImport:
			module, pos := groups("module")
			if module == "" {
				continue
			}
			refsText, _ := groups("refs")
			sym.Name = module
			sym.Column = offset + pos + 1
			sym.ImportRefs = importRefs(module, refsText)

		case types.KindExport:
			refsText, pos := groups("refs")
			refs := splitRefs(refsText)
			if len(refs) == 0 {
				if module, mpos := groups("module"); module != "" {
					refs = []string{module}
					pos = mpos
				}
			}
			if len(refs) == 0 {
				continue
			}
			sym.Name = strings.Join(refs, ", ")
			sym.Column = offset + pos + 1
			sym.ExportRefs = refs

		default:
			name, pos := groups("name")
			if name == "" || reserved[name] {
				continue
			}
			sym.Name = name
			sym.Column = offset + pos + 1
			if strings.HasPrefix(trimmed, "export ") || strings.HasPrefix(trimmed, "pub ") {
				sym.ExportRefs = []string{name}
			}
		}

		return sym, true
	}

	return types.Symbol{}, false
}

// blockEnd returns the zero-based last line of the body opened by the header at start
func (s *lineScanner) blockEnd(start int) int {
	if s.lang.syntax.indentBlocks {
		return indentBlockEnd(s.code, start)
	}
	return braceBlockEnd(s.code, start)
}

// braceBlockEnd counts braces on literal-stripped lines. The span closes when
// depth returns to zero after going positive. A header that ends in ';' before
// any brace is a one-line declaration. An unclosed span runs to the last line.
func braceBlockEnd(code []string, start int) int {
	depth := 0
	opened := false

	for i := start; i < len(code); i++ {
		for k := 0; k < len(code[i]); k++ {
			switch code[i][k] {
			case '{':
				depth++
				opened = true
			case '}':
				if !opened {
					continue
				}
				depth--
				if depth == 0 {
					return i
				}
			}
		}

		if opened {
			continue
		}

		line := strings.TrimSpace(code[i])
		if strings.HasSuffix(line, ";") || i-start >= braceLookahead {
			return i
		}
		if !headerContinues(line, nextCodeLine(code, i)) {
			return i
		}
	}

	if opened {
		return len(code) - 1
	}
	return start
}

// headerContinues reports whether a declaration header without a brace
// carries on to the next line
func headerContinues(line, next string) bool {
	if strings.HasPrefix(next, "{") {
		return true
	}
	if line == "" {
		return false
	}
	switch line[len(line)-1] {
	case '(', ',', ')', ':', '=', '>', '|', '&', '+', '-', '*', '?':
		return true
	}
	return false
}

func nextCodeLine(code []string, i int) string {
	for j := i + 1; j < len(code); j++ {
		if t := strings.TrimSpace(code[j]); t != "" {
			return t
		}
	}
	return ""
}

// indentBlockEnd returns the last line indented deeper than the header at start
func indentBlockEnd(code []string, start int) int {
	base := indentOf(code[start])
	end := start

	for i := start + 1; i < len(code); i++ {
		if strings.TrimSpace(code[i]) == "" {
			continue
		}
		if indentOf(code[i]) <= base {
			break
		}
		end = i
	}

	return end
}

func indentOf(line string) int {
	n := 0
	for _, c := range line {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

// assignScopes sets Scope to the innermost enclosing class or interface
func assignScopes(symbols []types.Symbol) {
	for i := range symbols {
		if symbols[i].Scope != "" {
			continue
		}
		best := -1
		for j := range symbols {
			c := &symbols[j]
			if c.Kind != types.KindClass && c.Kind != types.KindInterface {
				continue
			}
			if c.Line < symbols[i].Line && symbols[i].Line <= c.EndLine {
				if best < 0 || c.Line > symbols[best].Line {
					best = j
				}
			}
		}
		if best >= 0 {
			symbols[i].Scope = symbols[best].Name
		}
	}
}

// signature returns the trimmed declaration line without a trailing brace
func signature(line string) string {
	sig := strings.TrimSpace(line)
	sig = strings.TrimSpace(strings.TrimSuffix(sig, "{"))
	if len(sig) <= maxSignatureLen {
		return sig
	}
	cut := maxSignatureLen
	for cut > 0 && !utf8.RuneStart(sig[cut]) {
		cut--
	}
	return sig[:cut]
}

func hasReservedWord(s string) bool {
	for _, w := range strings.Fields(s) {
		if reserved[w] {
			return true
		}
	}
	return false
}

// importRefs returns the names an import binds: the explicit list when
// present, otherwise the last segment of the module path.
func importRefs(module, refsText string) []string {
	if refs := splitRefs(refsText); len(refs) > 0 {
		return refs
	}

	last := module
	for _, ext := range sourceExtensions {
		if strings.HasSuffix(last, ext) {
			last = strings.TrimSuffix(last, ext)
			break
		}
	}
	if i := strings.LastIndexAny(last, "/.\\:"); i >= 0 {
		last = last[i+1:]
	}
	last = strings.TrimSuffix(last, ">")
	if last == "" || last == "*" {
		return nil
	}
	return []string{last}
}

// splitRefs parses a binding list such as "{ a, b as c }", "(x, y)",
// "['a', 'b']" or "Default, { named }"
func splitRefs(text string) []string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '{', '}', '(', ')', '[', ']', '"', '\'', ';':
			return ' '
		}
		return r
	}, text)

	var refs []string
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.LastIndex(part, " as "); i >= 0 {
			part = strings.TrimSpace(part[i+4:])
		}
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		refs = append(refs, fields[len(fields)-1])
	}
	return refs
}
