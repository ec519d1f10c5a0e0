package index

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/repoctx/repoctx/internal/store"
	"github.com/repoctx/repoctx/internal/vectormath"
	"github.com/repoctx/repoctx/pkg/types"
)

// DefaultDiversity caps any one file at ~30% of semantic search results
const DefaultDiversity = 0.3

// SearchFunctions finds function units by name: exact match first, then
// case-insensitive substring fallback. Never fails on no match; returns
// an empty slice.
func (idx *Index) SearchFunctions(ctx context.Context, name string) ([]*types.EmbeddableUnit, error) {
	return idx.searchByName(ctx, types.UnitFunction, name)
}

// SearchClasses finds class units by name with the same fallback behavior
func (idx *Index) SearchClasses(ctx context.Context, name string) ([]*types.EmbeddableUnit, error) {
	return idx.searchByName(ctx, types.UnitClass, name)
}

func (idx *Index) searchByName(ctx context.Context, kind types.UnitKind, name string) ([]*types.EmbeddableUnit, error) {
	rows, err := idx.listUnitRows(ctx)
	if err != nil {
		return nil, err
	}

	exact := make([]*types.EmbeddableUnit, 0)
	fuzzy := make([]*types.EmbeddableUnit, 0)
	lowerName := strings.ToLower(name)

	for _, row := range rows {
		if row.Kind != string(kind) {
			continue
		}
		if row.SymbolName == name {
			unit, err := row.ToUnit()
			if err != nil {
				return nil, err
			}
			exact = append(exact, unit)
			continue
		}
		if name != "" && strings.Contains(strings.ToLower(row.SymbolName), lowerName) {
			unit, err := row.ToUnit()
			if err != nil {
				return nil, err
			}
			fuzzy = append(fuzzy, unit)
		}
	}

	if len(exact) > 0 {
		return exact, nil
	}
	return fuzzy, nil
}

// SemanticSearch scores every embedded unit against queryVector by cosine
// similarity and returns the top results in descending score order. The
// diversity pass caps results per source file at ceil(diversity * topK)
// so no single file dominates; diversity <= 0 uses DefaultDiversity.
//
// A dimension mismatch between the query and any stored vector is
// surfaced as *types.DimensionMismatchError: it signals a provider or
// model change and the index needs a full rebuild.
func (idx *Index) SemanticSearch(ctx context.Context, queryVector []float32, topK int, diversity float64) ([]types.ScoredUnit, error) {
	if topK <= 0 {
		return []types.ScoredUnit{}, nil
	}
	if diversity <= 0 {
		diversity = DefaultDiversity
	}

	rows, err := idx.listUnitRows(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]types.ScoredUnit, 0, len(rows))
	for _, row := range rows {
		if len(row.Vector) == 0 {
			continue // Un-embedded units are invisible to semantic search
		}
		vector := vectormath.DeserializeVector(row.Vector)
		score, err := vectormath.CosineSimilarity(queryVector, vector)
		if err != nil {
			return nil, err
		}
		unit, err := row.ToUnit()
		if err != nil {
			return nil, err
		}
		scored = append(scored, types.ScoredUnit{Unit: unit, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	perFileCap := int(math.Ceil(diversity * float64(topK)))
	if perFileCap < 1 {
		perFileCap = 1
	}

	results := make([]types.ScoredUnit, 0, topK)
	perFile := make(map[string]int)
	for _, candidate := range scored {
		if len(results) >= topK {
			break
		}
		source := candidate.Unit.Source
		if perFile[source] >= perFileCap {
			continue
		}
		perFile[source]++
		results = append(results, candidate)
	}
	return results, nil
}

// ListDocUnits returns the documentation file units (markdown), used by
// the context builder's docs allocation
func (idx *Index) ListDocUnits(ctx context.Context) ([]*types.EmbeddableUnit, error) {
	rows, err := idx.listUnitRows(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]*types.EmbeddableUnit, 0)
	for _, row := range rows {
		if row.Language != "markdown" || row.Kind != string(types.UnitFile) {
			continue
		}
		unit, err := row.ToUnit()
		if err != nil {
			return nil, err
		}
		docs = append(docs, unit)
	}
	return docs, nil
}

func (idx *Index) listUnitRows(ctx context.Context) ([]*store.Unit, error) {
	repo, err := idx.store.GetRepo(ctx, idx.repoKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return idx.store.ListUnits(ctx, repo.ID)
}
