package parser

import (
	"regexp"
	"strings"

	"github.com/repoctx/repoctx/pkg/types"
)

// MarkdownLanguage handles documentation files. Markdown yields no symbol
// units; the index creates a single file-level unit and the context builder
// routes its content to the documentation allocation.
type MarkdownLanguage struct{}

// NewMarkdownLanguage creates the Markdown collaborator
func NewMarkdownLanguage() *MarkdownLanguage {
	return &MarkdownLanguage{}
}

func (m *MarkdownLanguage) Name() string {
	return "markdown"
}

func (m *MarkdownLanguage) Extensions() []string {
	return []string{".md", ".markdown"}
}

var headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

// Parse records top-level headings as exports so exact-name search can find
// documentation sections
func (m *MarkdownLanguage) Parse(relPath string, content []byte) (*types.ParsedFile, error) {
	result := &types.ParsedFile{
		Path:     relPath,
		Language: m.Name(),
	}

	for _, line := range strings.Split(string(content), "\n") {
		if h := headingPattern.FindStringSubmatch(line); h != nil {
			result.Exports = append(result.Exports, strings.TrimSpace(h[1]))
		}
	}

	return result, nil
}
