package types

// ParsedFile is the uniform output of every language collaborator.
// Parsers return best-effort partial results on recoverable syntax errors
// rather than failing; the errors encountered are collected in Errors.
type ParsedFile struct {
	Path      string // Repo-relative path
	Language  string
	Functions []ParsedFunction
	Classes   []ParsedClass
	Imports   []string
	Exports   []string
	Errors    []ParseError
}

// ParsedFunction describes a function or method extracted from source.
// Methods carry their receiver type and a Name qualified with it
// ("User.String"), keeping same-named methods on different types distinct.
type ParsedFunction struct {
	Name       string
	Receiver   string
	Signature  string
	Doc        string
	StartLine  int
	EndLine    int
	Complexity int
	Calls      []string // Names of symbols this function references
	Exported   bool
}

// ParsedClass describes a class, struct, or interface declaration
type ParsedClass struct {
	Name      string
	Doc       string
	StartLine int
	EndLine   int
	Methods   []string
	Exported  bool
}

// ParseError records a recoverable error encountered during parsing
type ParseError struct {
	File    string
	Line    int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pf *ParsedFile) HasErrors() bool {
	return len(pf.Errors) > 0
}

// AddError appends a parsing error to the result
func (pf *ParsedFile) AddError(file string, line int, msg string) {
	pf.Errors = append(pf.Errors, ParseError{File: file, Line: line, Message: msg})
}
