// Package parser turns source files into the uniform ParsedFile shape.
//
// Each supported language is a collaborator behind the Language interface,
// dispatched by file extension, so the index never special-cases a language.
// Collaborators return best-effort partial results on syntax errors and
// record the error in ParsedFile.Errors instead of failing.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/repoctx/repoctx/pkg/types"
)

// Language is a per-language parse collaborator
type Language interface {
	// Name returns the language identifier stored in unit metadata
	Name() string

	// Extensions returns the file extensions this collaborator handles,
	// including the leading dot
	Extensions() []string

	// Parse extracts functions, classes, imports, and exports from content.
	// Recoverable syntax errors are recorded in the result, not returned.
	Parse(relPath string, content []byte) (*types.ParsedFile, error)
}

// Registry dispatches files to language collaborators by extension
type Registry struct {
	byExt map[string]Language
}

// NewRegistry creates a registry with all built-in collaborators registered
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Language)}
	r.Register(NewGoLanguage())
	r.Register(NewScriptLanguage("typescript", ".ts", ".tsx"))
	r.Register(NewScriptLanguage("javascript", ".js", ".jsx", ".mjs"))
	r.Register(NewMarkdownLanguage())
	return r
}

// Register adds a collaborator for each of its extensions. Later
// registrations win on extension conflicts.
func (r *Registry) Register(lang Language) {
	for _, ext := range lang.Extensions() {
		r.byExt[strings.ToLower(ext)] = lang
	}
}

// ForPath returns the collaborator responsible for path, if any
func (r *Registry) ForPath(path string) (Language, bool) {
	lang, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Supported reports whether any collaborator handles path
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// ParseFile parses content with the collaborator matching relPath's
// extension. Unsupported extensions are an error: callers filter files with
// Supported before reading them.
func (r *Registry) ParseFile(relPath string, content []byte) (*types.ParsedFile, error) {
	lang, ok := r.ForPath(relPath)
	if !ok {
		return nil, fmt.Errorf("no parser registered for %s", filepath.Ext(relPath))
	}
	return lang.Parse(relPath, content)
}
