package embedding

import "context"

// CachedEmbedder wraps an Embedder with an LRU cache keyed by text, so
// re-ingesting overlapping documents does not recompute embeddings.
type CachedEmbedder struct {
	inner Embedder
	cache *textCache
}

// WithCache wraps inner with a cache of the given capacity.
func WithCache(inner Embedder, capacity int) *CachedEmbedder {
	if capacity <= 0 {
		capacity = 10000
	}
	return &CachedEmbedder{inner: inner, cache: newTextCache(capacity)}
}

// Embed returns the cached embedding for text, computing and caching it on miss.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if emb, ok := e.cache.get(text); ok {
		return emb, nil
	}
	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.set(text, emb)
	return emb, nil
}

// EmbedBatch serves cached texts from the cache and computes only the misses
// in one inner batch call, preserving input order.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if emb, ok := e.cache.get(text); ok {
			embeddings[i] = emb
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return embeddings, nil
	}
	computed, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		embeddings[i] = computed[j]
		e.cache.set(texts[i], computed[j])
	}
	return embeddings, nil
}

// Dimensions returns the inner embedder's width.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error { return e.inner.Close() }
