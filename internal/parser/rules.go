package parser

import (
	"regexp"

	"github.com/dshills/codeindex/pkg/types"
)

// rule recognizes one kind of declaration on a single line.
//
// Named groups: "name" is the declared identifier, "ret" holds type tokens
// preceding a C-style function name, "module" and "refs" carry import and
// export targets.
type rule struct {
	kind types.SymbolKind
	re   *regexp.Regexp

	// raw rules match the original line instead of the literal-stripped one,
	// for declarations whose target is a string literal.
	raw bool

	// topLevel rules only apply to unindented lines
	topLevel bool
}

// language couples lexical syntax with the ordered declaration rules
type language struct {
	syntax syntax
	rules  []rule
}

func r(kind types.SymbolKind, pattern string) rule {
	return rule{kind: kind, re: regexp.MustCompile(pattern)}
}

func rawRule(kind types.SymbolKind, pattern string) rule {
	return rule{kind: kind, re: regexp.MustCompile(pattern), raw: true}
}

const (
	ident   = `[A-Za-z_$][\w$]*`
	jvmMods = `(?:(?:@\w+(?:\([^)]*\))?|public|private|protected|internal|static|final|abstract|virtual|override|async|extern|inline|synchronized|native|unsafe|sealed|partial|constexpr|explicit|friend|default|open|data|inner|suspend|operator|infix|tailrec|lateinit|const|readonly|volatile|transient|strictfp|mutating|fileprivate|required|convenience|lazy|weak|implicit|case|new)\s+)*`
)

// Declarations are tried in priority order: function, class, interface,
// enum, type, variable, import, export. The first matching rule wins.
var tsRules = []rule{
	r(types.KindFunction, `^(?:export\s+)?(?:default\s+)?(?:declare\s+)?(?:async\s+)?function\s*\*?\s*(?P<name>`+ident+`)`),
	r(types.KindFunction, `^(?:export\s+)?(?:const|let|var)\s+(?P<name>`+ident+`)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*(?::[^=]+)?=>|`+ident+`\s*=>)`),
	r(types.KindFunction, `^(?:(?:public|private|protected|static|readonly|async|override|abstract|get|set)\s+)*\*?(?P<name>`+ident+`)\s*(?:<[^>]*>)?\s*\([^)]*\)\s*(?::\s*[^{;=]+)?\{`),
	r(types.KindClass, `^(?:export\s+)?(?:default\s+)?(?:declare\s+)?(?:abstract\s+)?class\s+(?P<name>`+ident+`)`),
	r(types.KindInterface, `^(?:export\s+)?(?:declare\s+)?interface\s+(?P<name>`+ident+`)`),
	r(types.KindEnum, `^(?:export\s+)?(?:declare\s+)?(?:const\s+)?enum\s+(?P<name>`+ident+`)`),
	r(types.KindType, `^(?:export\s+)?(?:declare\s+)?type\s+(?P<name>`+ident+`)\s*(?:<[^>]*>)?\s*=`),
	r(types.KindVariable, `^(?:export\s+)?(?:declare\s+)?(?:const|let|var)\s+(?P<name>`+ident+`)`),
	rawRule(types.KindImport, `^import\s+(?:type\s+)?(?P<refs>.+?)\s+from\s+['"](?P<module>[^'"]+)['"]`),
	rawRule(types.KindImport, `^import\s+['"](?P<module>[^'"]+)['"]`),
	rawRule(types.KindExport, `^export\s+(?P<refs>\*|\{[^}]*\})(?:\s+from\s+['"](?P<module>[^'"]+)['"])?`),
	r(types.KindExport, `^export\s+default\s+(?P<refs>`+ident+`)`),
	r(types.KindExport, `^module\.exports\s*=\s*(?P<refs>\{[^}]*\}|`+ident+`)`),
}

// cFunction matches "<modifiers> <type tokens> name(" for C-like languages
const cFunction = `^` + jvmMods + `(?P<ret>(?:[\w:<>\[\],.*&?]+\s+)+?)[*&]*(?P<name>[A-Za-z_~][\w~]*(?:::[A-Za-z_~][\w~]*)*)\s*\(`

var javaRules = []rule{
	r(types.KindFunction, cFunction),
	r(types.KindClass, `^`+jvmMods+`(?:class|record|struct)\s+(?P<name>\w+)`),
	r(types.KindInterface, `^`+jvmMods+`(?:@?interface)\s+(?P<name>\w+)`),
	r(types.KindEnum, `^`+jvmMods+`enum\s+(?P<name>\w+)`),
	r(types.KindVariable, `^`+jvmMods+`(?P<ret>(?:[\w<>\[\],.?]+\s+)+?)(?P<name>[A-Za-z_]\w*)\s*(?:=[^=]|;)`),
	r(types.KindImport, `^import\s+(?:static\s+)?(?P<module>[\w.*]+)`),
}

var csharpRules = []rule{
	r(types.KindFunction, cFunction),
	r(types.KindClass, `^`+jvmMods+`(?:class|record|struct)\s+(?P<name>\w+)`),
	r(types.KindInterface, `^`+jvmMods+`interface\s+(?P<name>\w+)`),
	r(types.KindEnum, `^`+jvmMods+`enum\s+(?P<name>\w+)`),
	r(types.KindVariable, `^`+jvmMods+`(?P<ret>(?:[\w<>\[\],.?]+\s+)+?)(?P<name>[A-Za-z_]\w*)\s*(?:=[^=>]|;|\{\s*get)`),
	r(types.KindImport, `^using\s+(?:static\s+)?(?:\w+\s*=\s*)?(?P<module>[\w.]+)\s*;`),
}

var cRules = []rule{
	r(types.KindFunction, cFunction),
	r(types.KindClass, `^(?:typedef\s+)?(?:class|struct|union)\s+(?P<name>\w+)\s*(?:final\s*)?(?::[^{;]*)?\{?\s*$`),
	r(types.KindEnum, `^(?:typedef\s+)?enum\s+(?:class\s+|struct\s+)?(?P<name>\w+)`),
	r(types.KindType, `^typedef\s+.*?\b(?P<name>\w+)\s*;`),
	r(types.KindType, `^using\s+(?P<name>\w+)\s*=`),
	r(types.KindVariable, `^#\s*define\s+(?P<name>\w+)`),
	r(types.KindVariable, `^(?:(?:static|extern|const|constexpr|volatile|unsigned|signed)\s+)*(?P<ret>(?:[\w:<>,]+\s+)+?)[*&]*(?P<name>[A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*(?:=[^=]|;)`),
	rawRule(types.KindImport, `^#\s*include\s*[<"](?P<module>[^>"]+)[>"]`),
	r(types.KindImport, `^using\s+namespace\s+(?P<module>[\w:]+)`),
}

var kotlinRules = []rule{
	r(types.KindFunction, `^`+jvmMods+`fun\s+(?:<[^>]*>\s*)?(?:[\w.]+\.)?(?P<name>\w+)\s*\(`),
	r(types.KindClass, `^`+jvmMods+`(?:class|object)\s+(?P<name>\w+)`),
	r(types.KindInterface, `^`+jvmMods+`interface\s+(?P<name>\w+)`),
	r(types.KindEnum, `^`+jvmMods+`enum\s+class\s+(?P<name>\w+)`),
	r(types.KindType, `^`+jvmMods+`typealias\s+(?P<name>\w+)`),
	r(types.KindVariable, `^`+jvmMods+`(?:val|var)\s+(?P<name>\w+)`),
	r(types.KindImport, `^import\s+(?P<module>[\w.*]+)`),
}

var scalaRules = []rule{
	r(types.KindFunction, `^`+jvmMods+`def\s+(?P<name>\w+)`),
	r(types.KindClass, `^`+jvmMods+`(?:class|object)\s+(?P<name>\w+)`),
	r(types.KindInterface, `^`+jvmMods+`trait\s+(?P<name>\w+)`),
	r(types.KindEnum, `^`+jvmMods+`enum\s+(?P<name>\w+)`),
	r(types.KindType, `^`+jvmMods+`type\s+(?P<name>\w+)`),
	r(types.KindVariable, `^`+jvmMods+`(?:val|var)\s+(?P<name>\w+)`),
	r(types.KindImport, `^import\s+(?P<module>[\w.]+)(?:\.\{(?P<refs>[^}]*)\})?`),
}

var swiftRules = []rule{
	r(types.KindFunction, `^`+jvmMods+`func\s+(?P<name>\w+)`),
	r(types.KindClass, `^`+jvmMods+`(?:class|struct|actor|extension)\s+(?P<name>\w+)`),
	r(types.KindInterface, `^`+jvmMods+`protocol\s+(?P<name>\w+)`),
	r(types.KindEnum, `^`+jvmMods+`enum\s+(?P<name>\w+)`),
	r(types.KindType, `^`+jvmMods+`typealias\s+(?P<name>\w+)`),
	r(types.KindVariable, `^`+jvmMods+`(?:let|var)\s+(?P<name>\w+)`),
	r(types.KindImport, `^import\s+(?P<module>[\w.]+)`),
}

var rustRules = []rule{
	r(types.KindFunction, `^(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?(?:extern\s+\S+\s+)?fn\s+(?P<name>\w+)`),
	r(types.KindClass, `^(?:pub(?:\([^)]*\))?\s+)?(?:struct|union)\s+(?P<name>\w+)`),
	r(types.KindClass, `^(?:unsafe\s+)?impl(?:<[^>]*>)?\s+(?:[\w:<>, ]+\s+for\s+)?(?P<name>\w+)`),
	r(types.KindInterface, `^(?:pub(?:\([^)]*\))?\s+)?(?:unsafe\s+)?trait\s+(?P<name>\w+)`),
	r(types.KindEnum, `^(?:pub(?:\([^)]*\))?\s+)?enum\s+(?P<name>\w+)`),
	r(types.KindType, `^(?:pub(?:\([^)]*\))?\s+)?type\s+(?P<name>\w+)`),
	r(types.KindVariable, `^(?:pub(?:\([^)]*\))?\s+)?(?:let|const|static)\s+(?:mut\s+)?(?P<name>\w+)`),
	r(types.KindImport, `^(?:pub(?:\([^)]*\))?\s+)?use\s+(?P<module>[\w:]+?)(?:::\{(?P<refs>[^}]*)\})?\s*;`),
	r(types.KindExport, `^(?:pub\s+)?mod\s+(?P<refs>\w+)\s*;`),
}

var phpRules = []rule{
	r(types.KindFunction, `^(?:(?:public|private|protected|static|final|abstract)\s+)*function\s+&?(?P<name>\w+)`),
	r(types.KindClass, `^(?:(?:final|abstract|readonly)\s+)*class\s+(?P<name>\w+)`),
	r(types.KindInterface, `^(?:interface|trait)\s+(?P<name>\w+)`),
	r(types.KindEnum, `^enum\s+(?P<name>\w+)`),
	r(types.KindVariable, `^(?:(?:public|private|protected|static|readonly|const)\s+)*(?:\??\w+\s+)?\$(?P<name>\w+)\s*(?:=[^=]|;)`),
	r(types.KindVariable, `^(?:(?:public|private|protected)\s+)?const\s+(?P<name>\w+)\s*=`),
	r(types.KindImport, `^use\s+(?P<module>[\w\\]+)`),
	rawRule(types.KindImport, `^(?:require|include)(?:_once)?\s*\(?\s*['"](?P<module>[^'"]+)['"]`),
	r(types.KindExport, `^namespace\s+(?P<refs>[\w\\]+)`),
}

var pythonRules = []rule{
	r(types.KindFunction, `^(?:async\s+)?def\s+(?P<name>\w+)`),
	r(types.KindClass, `^class\s+(?P<name>\w+)`),
	{kind: types.KindVariable, re: regexp.MustCompile(`^(?P<name>[A-Za-z_]\w*)\s*(?::[^=]+)?=[^=]`), topLevel: true},
	r(types.KindImport, `^from\s+(?P<module>[\w.]+)\s+import\s+(?P<refs>.+)`),
	r(types.KindImport, `^import\s+(?P<module>[\w.]+)(?:\s+as\s+(?P<refs>\w+))?`),
	rawRule(types.KindExport, `^__all__\s*=\s*(?P<refs>[\[(].*)`),
}

// goRules are used only when go/parser rejects the file
var goRules = []rule{
	r(types.KindFunction, `^func\s+(?:\([^)]*\)\s*)?(?P<name>\w+)`),
	r(types.KindClass, `^type\s+(?P<name>\w+)(?:\[[^\]]*\])?\s+struct\b`),
	r(types.KindInterface, `^type\s+(?P<name>\w+)(?:\[[^\]]*\])?\s+interface\b`),
	r(types.KindType, `^type\s+(?P<name>\w+)`),
	r(types.KindVariable, `^(?:var|const)\s+(?P<name>\w+)`),
	rawRule(types.KindImport, `^import\s+(?:(?P<refs>[\w.]+)\s+)?"(?P<module>[^"]+)"`),
}

var languages = map[string]language{
	"typescript": {syntax: jsSyntax, rules: tsRules},
	"javascript": {syntax: jsSyntax, rules: tsRules},
	"java":       {syntax: jvmSyntax, rules: javaRules},
	"csharp":     {syntax: jvmSyntax, rules: csharpRules},
	"c":          {syntax: cSyntax, rules: cRules},
	"cpp":        {syntax: cSyntax, rules: cRules},
	"kotlin":     {syntax: jvmSyntax, rules: kotlinRules},
	"scala":      {syntax: jvmSyntax, rules: scalaRules},
	"swift":      {syntax: jvmSyntax, rules: swiftRules},
	"rust":       {syntax: cSyntax, rules: rustRules},
	"php":        {syntax: phpSyntax, rules: phpRules},
	"python":     {syntax: pythonSyntax, rules: pythonRules},
	"go":         {syntax: goSyntax, rules: goRules},
}

// reserved words that can appear where a rule expects a declared name or a type
var reserved = map[string]bool{
	"if": true, "else": true, "elif": true, "for": true, "foreach": true,
	"while": true, "do": true, "switch": true, "case": true, "catch": true,
	"try": true, "finally": true, "return": true, "new": true, "delete": true,
	"throw": true, "throws": true, "typeof": true, "instanceof": true,
	"await": true, "yield": true, "function": true, "super": true, "this": true,
	"sizeof": true, "using": true, "lock": true, "fixed": true, "when": true,
	"match": true, "loop": true, "with": true, "except": true, "assert": true,
	"synchronized": true, "import": true, "export": true, "from": true,
	"in": true, "of": true, "not": true, "and": true, "or": true, "goto": true,
	"echo": true, "print": true, "defer": true, "go": true, "select": true,
	"package": true, "namespace": true, "static_assert": true,
}
