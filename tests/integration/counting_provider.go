package integration

import (
	"context"
	"sync/atomic"

	"github.com/repoctx/repoctx/internal/embedder"
)

// countingProvider wraps another provider and counts embedding requests.
// Counts are per text, so one EmbedBatch of five texts adds five.
type countingProvider struct {
	embedder.Provider
	embeds atomic.Int64
}

func newCountingProvider() (*countingProvider, error) {
	inner, err := embedder.New(embedder.Config{Provider: embedder.ProviderStatic})
	if err != nil {
		return nil, err
	}
	return &countingProvider{Provider: inner}, nil
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.embeds.Add(1)
	return p.Provider.Embed(ctx, text)
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.embeds.Add(int64(len(texts)))
	return p.Provider.EmbedBatch(ctx, texts)
}

func (p *countingProvider) EmbedCount() int64 {
	return p.embeds.Load()
}

func (p *countingProvider) ResetCount() {
	p.embeds.Store(0)
}
