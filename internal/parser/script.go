package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/repoctx/repoctx/pkg/types"
)

// ScriptLanguage parses TypeScript and JavaScript with regex extraction and
// brace matching. The approach is inherently approximate: it aims for the
// declarations that matter for indexing, not a full grammar.
type ScriptLanguage struct {
	name string
	exts []string
}

// NewScriptLanguage creates a script collaborator for the given language
// name and extensions
func NewScriptLanguage(name string, exts ...string) *ScriptLanguage {
	return &ScriptLanguage{name: name, exts: exts}
}

func (s *ScriptLanguage) Name() string {
	return s.name
}

func (s *ScriptLanguage) Extensions() []string {
	return s.exts
}

var (
	funcDeclPattern  = regexp.MustCompile(`^\s*(export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`)
	arrowFuncPattern = regexp.MustCompile(`^\s*(export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]*)?=\s*(?:async\s*)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*=>`)
	classPattern     = regexp.MustCompile(`^\s*(export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`)
	importPattern    = regexp.MustCompile(`^\s*import\s+(?:[^'"]+\s+from\s+)?['"]([^'"]+)['"]`)
	requirePattern   = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	methodPattern    = regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+|async\s+)*([A-Za-z_$][\w$]*)\s*\([^)]*\)\s*(?::\s*[^{]+)?\{`)
	callPattern      = regexp.MustCompile(`([A-Za-z_$][\w$]*)\s*\(`)
	branchPattern    = regexp.MustCompile(`\b(if|for|while|case|catch)\b|&&|\|\|`)
)

// scriptKeywords are identifiers that look like calls but are control flow
var scriptKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true, "typeof": true, "new": true,
	"constructor": true, "super": true, "await": true,
}

// Parse extracts functions, classes, imports, and exports line by line.
// Brace matching determines declaration extents; unbalanced braces produce
// a recorded warning and a declaration truncated at end of file.
func (s *ScriptLanguage) Parse(relPath string, content []byte) (*types.ParsedFile, error) {
	result := &types.ParsedFile{
		Path:     relPath,
		Language: s.name,
	}

	lines := strings.Split(string(content), "\n")
	exported := make(map[string]bool)

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := importPattern.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, m[1])
			continue
		}
		if m := requirePattern.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, m[1])
		}

		if m := classPattern.FindStringSubmatch(line); m != nil {
			end, ok := matchBraces(lines, i)
			if !ok {
				result.AddError(relPath, i+1, "unbalanced braces in class "+m[2])
			}
			cls := types.ParsedClass{
				Name:      m[2],
				StartLine: i + 1,
				EndLine:   end + 1,
				Methods:   extractMethods(lines[i+1 : min(end+1, len(lines))]),
				Exported:  m[1] != "",
			}
			result.Classes = append(result.Classes, cls)
			if cls.Exported {
				exported[cls.Name] = true
			}
			i = end
			continue
		}

		name, isExport := "", false
		if m := funcDeclPattern.FindStringSubmatch(line); m != nil {
			name, isExport = m[2], m[1] != ""
		} else if m := arrowFuncPattern.FindStringSubmatch(line); m != nil {
			name, isExport = m[2], m[1] != ""
		}
		if name == "" {
			continue
		}

		end, ok := matchBraces(lines, i)
		if !ok {
			result.AddError(relPath, i+1, "unbalanced braces in function "+name)
		}
		body := strings.Join(lines[i:min(end+1, len(lines))], "\n")

		fn := types.ParsedFunction{
			Name:       name,
			Signature:  strings.TrimSpace(line),
			StartLine:  i + 1,
			EndLine:    end + 1,
			Complexity: 1 + len(branchPattern.FindAllString(body, -1)),
			Calls:      extractCalls(body, name),
			Exported:   isExport,
		}
		result.Functions = append(result.Functions, fn)
		if isExport {
			exported[name] = true
		}
		i = end
	}

	for name := range exported {
		result.Exports = append(result.Exports, name)
	}
	sort.Strings(result.Exports)

	return result, nil
}

// matchBraces finds the line index where the brace depth opened at or after
// start returns to zero. Returns (start, false) when the declaration never
// opens a brace on its first line span, and (lastLine, false) when braces
// stay unbalanced through end of input.
func matchBraces(lines []string, start int) (int, bool) {
	depth := 0
	opened := false

	for i := start; i < len(lines); i++ {
		for _, ch := range lines[i] {
			switch ch {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return i, true
		}
		// Single-expression arrow functions never open a brace
		if !opened && i > start {
			return start, false
		}
	}

	return len(lines) - 1, false
}

// extractMethods pulls method names from a class body
func extractMethods(body []string) []string {
	var methods []string
	for _, line := range body {
		if m := methodPattern.FindStringSubmatch(line); m != nil {
			if !scriptKeywords[m[1]] {
				methods = append(methods, m[1])
			}
		}
	}
	return methods
}

// extractCalls collects distinct called names from a function body,
// excluding the function itself and control-flow keywords
func extractCalls(body, self string) []string {
	seen := make(map[string]bool)
	for _, m := range callPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if name == self || scriptKeywords[name] {
			continue
		}
		seen[name] = true
	}

	if len(seen) == 0 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
