package contextbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/repoctx/repoctx/internal/embedder"
	"github.com/repoctx/repoctx/internal/index"
	"github.com/repoctx/repoctx/pkg/types"
)

const (
	// DefaultMaxTokens bounds a context when the caller gives no budget
	DefaultMaxTokens = 4000

	// charsPerToken is the deterministic token estimate divisor
	charsPerToken = 4

	// themeTopK is how many units a theme query retrieves before assembly
	themeTopK = 10

	sectionSeparator = "\n\n"
)

// Allocation splits the token budget across content categories. The
// default ratios are 60% code, 20% docs, 20% history.
type Allocation struct {
	Code    float64
	Docs    float64
	History float64
}

// DefaultAllocation returns the standard 60/20/20 split
func DefaultAllocation() Allocation {
	return Allocation{Code: 0.6, Docs: 0.2, History: 0.2}
}

// Options controls context assembly
type Options struct {
	MaxTokens           int
	IncludeDependencies bool
	IncludeTests        bool
	IncludeDocs         bool
	History             []string
	Allocation          Allocation // Zero value uses DefaultAllocation
}

func (o *Options) normalize() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Allocation == (Allocation{}) {
		o.Allocation = DefaultAllocation()
	}
}

// EstimateTokens approximates token count as length over four characters.
// The estimate is monotonic in content length and identical between
// assembly and verification.
func EstimateTokens(s string) int {
	return len(s) / charsPerToken
}

// costTokens is the conservative per-section charge used during
// assembly: it rounds up and includes the joining separator, so the sum
// of charges always covers the final content's estimate
func costTokens(s string) int {
	return (len(s) + len(sectionSeparator) + charsPerToken - 1) / charsPerToken
}

// Builder assembles token-bounded retrieval contexts from the index
type Builder struct {
	index    *index.Index
	provider embedder.Provider
}

// New creates a Builder over the given index and provider
func New(idx *index.Index, provider embedder.Provider) *Builder {
	return &Builder{index: idx, provider: provider}
}

// candidate is one unit of content awaiting assembly, in relevance order
type candidate struct {
	source string // Unit id, empty for history
	text   string
}

// BuildFunctionContext assembles a context around the named function: its
// own content, optionally the units its metadata lists as dependencies,
// and optionally documentation units. An unknown name yields an empty
// context, not an error.
func (b *Builder) BuildFunctionContext(ctx context.Context, name string, opts Options) (*types.RetrievalContext, error) {
	opts.normalize()

	units, err := b.index.SearchFunctions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("locate function %s: %w", name, err)
	}

	code := make([]candidate, 0, len(units))
	seen := make(map[string]bool)
	for _, unit := range units {
		if !opts.IncludeTests && isTestPath(unit.Source) {
			continue
		}
		code = append(code, unitCandidate(unit))
		seen[unit.ID] = true
	}

	if opts.IncludeDependencies {
		deps, err := b.collectDependencies(ctx, units, seen, opts)
		if err != nil {
			return nil, err
		}
		code = append(code, deps...)
	}

	docs, err := b.docCandidates(ctx, opts)
	if err != nil {
		return nil, err
	}

	return assemble(code, docs, opts), nil
}

// BuildThemeContext embeds the theme text, retrieves the most similar
// units, and assembles them with documentation units partitioned into
// their own allocation
func (b *Builder) BuildThemeContext(ctx context.Context, theme string, opts Options) (*types.RetrievalContext, error) {
	opts.normalize()

	queryVector, err := b.provider.Embed(ctx, theme)
	if err != nil {
		return nil, fmt.Errorf("embed theme: %w", err)
	}

	results, err := b.index.SemanticSearch(ctx, queryVector, themeTopK, 0)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	code := make([]candidate, 0, len(results))
	docs := make([]candidate, 0)
	for _, result := range results {
		if !opts.IncludeTests && isTestPath(result.Unit.Source) {
			continue
		}
		if result.Unit.Metadata.Language == "markdown" {
			docs = append(docs, unitCandidate(result.Unit))
			continue
		}
		code = append(code, unitCandidate(result.Unit))
	}

	return assemble(code, docs, opts), nil
}

// collectDependencies resolves the symbol names a function depends on to
// their indexed units
func (b *Builder) collectDependencies(ctx context.Context, units []*types.EmbeddableUnit, seen map[string]bool, opts Options) ([]candidate, error) {
	deps := make([]candidate, 0)
	for _, unit := range units {
		for _, symbol := range unit.Metadata.Dependencies {
			found, err := b.index.SearchFunctions(ctx, symbol)
			if err != nil {
				return nil, err
			}
			classes, err := b.index.SearchClasses(ctx, symbol)
			if err != nil {
				return nil, err
			}
			found = append(found, classes...)

			for _, dep := range found {
				if seen[dep.ID] || dep.Metadata.SymbolName != symbol {
					continue
				}
				if !opts.IncludeTests && isTestPath(dep.Source) {
					continue
				}
				seen[dep.ID] = true
				deps = append(deps, unitCandidate(dep))
			}
		}
	}
	return deps, nil
}

// docCandidates returns markdown file units when docs are requested
func (b *Builder) docCandidates(ctx context.Context, opts Options) ([]candidate, error) {
	if !opts.IncludeDocs {
		return nil, nil
	}

	docs := make([]candidate, 0)
	units, err := b.index.ListDocUnits(ctx)
	if err != nil {
		return nil, err
	}
	for _, unit := range units {
		docs = append(docs, unitCandidate(unit))
	}
	return docs, nil
}

func unitCandidate(unit *types.EmbeddableUnit) candidate {
	header := fmt.Sprintf("// %s:%d-%d", unit.Source, unit.StartLine, unit.EndLine)
	if unit.Metadata.SymbolName != "" {
		header += " " + unit.Metadata.SymbolName
	}
	return candidate{
		source: unit.ID,
		text:   header + "\n" + unit.Content,
	}
}

func isTestPath(path string) bool {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	return strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasSuffix(base, "_test.go")
}

// assemble fills each category's allowance in relevance order. A unit
// that would overflow is truncated at a line boundary when its category
// is still empty, otherwise omitted. Truncated reports whether any
// category hit its limit with candidates remaining.
func assemble(code, docs []candidate, opts Options) *types.RetrievalContext {
	history := make([]candidate, 0, len(opts.History))
	for _, h := range opts.History {
		history = append(history, candidate{text: h})
	}

	result := &types.RetrievalContext{Sources: make([]string, 0)}
	var sections []string

	appendCategory := func(candidates []candidate, budget int) {
		if budget <= 0 || len(candidates) == 0 {
			if budget <= 0 && len(candidates) > 0 {
				result.Truncated = true
			}
			return
		}

		used := 0
		appended := 0
		for _, cand := range candidates {
			tokens := costTokens(cand.text)
			if used+tokens <= budget {
				sections = append(sections, cand.text)
				if cand.source != "" {
					result.Sources = append(result.Sources, cand.source)
				}
				used += tokens
				appended++
				continue
			}

			// Overflow: truncate at a line boundary only while the
			// category is still empty, otherwise omit
			result.Truncated = true
			if appended == 0 {
				partial := truncateAtLineBoundary(cand.text, budget-used)
				if partial != "" {
					sections = append(sections, partial)
					if cand.source != "" {
						result.Sources = append(result.Sources, cand.source)
					}
					used += costTokens(partial)
					appended++
				}
			}
		}
	}

	appendCategory(code, int(float64(opts.MaxTokens)*opts.Allocation.Code))
	appendCategory(docs, int(float64(opts.MaxTokens)*opts.Allocation.Docs))
	appendCategory(history, int(float64(opts.MaxTokens)*opts.Allocation.History))

	result.Content = strings.Join(sections, sectionSeparator)
	result.TokenCount = EstimateTokens(result.Content)
	return result
}

// truncateAtLineBoundary keeps whole leading lines while the estimate
// stays within maxTokens. Content is never cut mid-line; when not even
// the first line fits, the result is empty.
func truncateAtLineBoundary(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		next := strings.Join(append(kept, line), "\n")
		if costTokens(next) > maxTokens {
			break
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
