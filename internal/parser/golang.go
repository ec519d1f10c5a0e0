package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"github.com/repoctx/repoctx/pkg/types"
)

// GoLanguage parses Go source via the standard go/ast packages
type GoLanguage struct{}

// NewGoLanguage creates the Go parse collaborator
func NewGoLanguage() *GoLanguage {
	return &GoLanguage{}
}

func (g *GoLanguage) Name() string {
	return "go"
}

func (g *GoLanguage) Extensions() []string {
	return []string{".go"}
}

// Parse extracts functions, type declarations, imports, and exported names.
// Syntax errors are non-fatal: go/parser may return a partial AST, and
// whatever it yields is extracted.
func (g *GoLanguage) Parse(relPath string, content []byte) (*types.ParsedFile, error) {
	result := &types.ParsedFile{
		Path:     relPath,
		Language: g.Name(),
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, relPath, content, parser.ParseComments)
	if err != nil {
		result.AddError(relPath, 0, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil {
		return result, nil
	}

	for _, imp := range file.Imports {
		result.Imports = append(result.Imports, strings.Trim(imp.Path.Value, `"`))
	}

	ext := &goExtractor{fset: fset, result: result}
	ast.Inspect(file, ext.visit)

	sort.Strings(result.Exports)
	return result, nil
}

// goExtractor is a visitor for AST traversal that fills a ParsedFile
type goExtractor struct {
	fset   *token.FileSet
	result *types.ParsedFile
}

func (e *goExtractor) visit(node ast.Node) bool {
	if node == nil {
		return false
	}

	switch n := node.(type) {
	case *ast.FuncDecl:
		e.extractFunction(n)
		return false // Calls are collected by extractFunction
	case *ast.GenDecl:
		e.extractGenDecl(n)
	}

	return true
}

// extractFunction extracts function and method declarations. Method
// names are qualified with the receiver type so same-named methods on
// different types stay distinct units.
func (e *goExtractor) extractFunction(funcDecl *ast.FuncDecl) {
	name := funcDecl.Name.Name
	receiver := receiverName(funcDecl)
	if receiver != "" {
		name = receiver + "." + name
	}

	fn := types.ParsedFunction{
		Name:       name,
		Receiver:   receiver,
		Signature:  e.functionSignature(funcDecl),
		Doc:        docText(funcDecl.Doc),
		StartLine:  e.line(funcDecl.Pos()),
		EndLine:    e.line(funcDecl.End()),
		Complexity: e.complexity(funcDecl),
		Calls:      e.calls(funcDecl),
		Exported:   token.IsExported(funcDecl.Name.Name),
	}

	e.result.Functions = append(e.result.Functions, fn)
	if fn.Exported {
		e.result.Exports = append(e.result.Exports, fn.Name)
	}
}

// extractGenDecl extracts struct, interface, and named type declarations.
// Structs and interfaces map to the class shape; methods are linked by
// receiver name in a second pass by the caller of Parse when needed.
func (e *goExtractor) extractGenDecl(genDecl *ast.GenDecl) {
	for _, spec := range genDecl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		switch typeSpec.Type.(type) {
		case *ast.StructType, *ast.InterfaceType:
		default:
			continue
		}

		doc := typeSpec.Doc
		if doc == nil {
			doc = genDecl.Doc
		}

		cls := types.ParsedClass{
			Name:      typeSpec.Name.Name,
			Doc:       docText(doc),
			StartLine: e.line(genDecl.Pos()),
			EndLine:   e.line(genDecl.End()),
			Exported:  token.IsExported(typeSpec.Name.Name),
		}

		if iface, ok := typeSpec.Type.(*ast.InterfaceType); ok && iface.Methods != nil {
			for _, m := range iface.Methods.List {
				for _, name := range m.Names {
					cls.Methods = append(cls.Methods, name.Name)
				}
			}
		}

		e.result.Classes = append(e.result.Classes, cls)
		if cls.Exported {
			e.result.Exports = append(e.result.Exports, cls.Name)
		}
	}
}

// complexity computes a cyclomatic-style estimate: one plus the number of
// branch points in the function body
func (e *goExtractor) complexity(funcDecl *ast.FuncDecl) int {
	count := 1
	if funcDecl.Body == nil {
		return count
	}

	ast.Inspect(funcDecl.Body, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause,
			*ast.CommClause, *ast.SelectStmt:
			count++
		case *ast.BinaryExpr:
			if v.Op == token.LAND || v.Op == token.LOR {
				count++
			}
		}
		return true
	})

	return count
}

// calls collects the distinct names of functions referenced in the body,
// used as the unit's dependency set
func (e *goExtractor) calls(funcDecl *ast.FuncDecl) []string {
	if funcDecl.Body == nil {
		return nil
	}

	seen := make(map[string]bool)
	ast.Inspect(funcDecl.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fun := call.Fun.(type) {
		case *ast.Ident:
			seen[fun.Name] = true
		case *ast.SelectorExpr:
			seen[fun.Sel.Name] = true
		}
		return true
	})

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

// functionSignature builds a readable signature string
func (e *goExtractor) functionSignature(funcDecl *ast.FuncDecl) string {
	var sig strings.Builder

	sig.WriteString("func ")

	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprToString(funcDecl.Recv.List[0].Type))
		sig.WriteString(") ")
	}

	sig.WriteString(funcDecl.Name.Name)

	sig.WriteString("(")
	if funcDecl.Type.Params != nil {
		sig.WriteString(fieldListToString(funcDecl.Type.Params))
	}
	sig.WriteString(")")

	if funcDecl.Type.Results != nil {
		results := fieldListToString(funcDecl.Type.Results)
		if results != "" {
			if funcDecl.Type.Results.NumFields() > 1 {
				sig.WriteString(" (")
				sig.WriteString(results)
				sig.WriteString(")")
			} else {
				sig.WriteString(" ")
				sig.WriteString(results)
			}
		}
	}

	return sig.String()
}

func (e *goExtractor) line(pos token.Pos) int {
	return e.fset.Position(pos).Line
}

// receiverName returns the base type name of a method receiver, or ""
// for plain functions
func receiverName(funcDecl *ast.FuncDecl) string {
	if funcDecl.Recv == nil || len(funcDecl.Recv.List) == 0 {
		return ""
	}
	return baseTypeName(funcDecl.Recv.List[0].Type)
}

// baseTypeName unwraps pointers and type parameters down to the named type
func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.IndexExpr:
		return baseTypeName(t.X)
	case *ast.IndexListExpr:
		return baseTypeName(t.X)
	}
	return ""
}

// fieldListToString converts a field list to a string representation
func fieldListToString(fieldList *ast.FieldList) string {
	if fieldList == nil || len(fieldList.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fieldList.List {
		typeStr := exprToString(field.Type)
		if len(field.Names) > 0 {
			for _, name := range field.Names {
				parts = append(parts, fmt.Sprintf("%s %s", name.Name, typeStr))
			}
		} else {
			parts = append(parts, typeStr)
		}
	}

	return strings.Join(parts, ", ")
}

// exprToString converts a type expression to a string representation
func exprToString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprToString(t.X)
	case *ast.ArrayType:
		return "[]" + exprToString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprToString(t.Key), exprToString(t.Value))
	case *ast.ChanType:
		return "chan " + exprToString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.SelectorExpr:
		return exprToString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprToString(t.Elt)
	default:
		return "..."
	}
}

// docText extracts trimmed documentation from a comment group
func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}
