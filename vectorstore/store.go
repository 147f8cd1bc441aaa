// Package vectorstore persists embedded PDF chunks and answers similarity
// queries over them. Both backends satisfy langchaingo's
// vectorstores.VectorStore so they can be turned into a retriever directly.
package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Metadata keys written by the loader and relied on by the stores.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaChunk  = "chunk"
)

// Store is a vector store that also knows which source files it holds.
type Store interface {
	vectorstores.VectorStore

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Sources returns the number of chunks stored per source path.
	Sources(ctx context.Context) (map[string]int, error)

	// DeleteBySource removes every chunk whose source metadata equals source.
	DeleteBySource(ctx context.Context, source string) error

	Close() error
}

// SourceStat is one entry of a sorted Sources listing.
type SourceStat struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// SortedSources flattens a Sources map ordered by path.
func SortedSources(m map[string]int) []SourceStat {
	out := make([]SourceStat, 0, len(m))
	for src, n := range m {
		out = append(out, SourceStat{Source: src, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func resolveOptions(opts []vectorstores.Option) vectorstores.Options {
	var o vectorstores.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func pickEmbedder(def embeddings.Embedder, o vectorstores.Options) (embeddings.Embedder, error) {
	if o.Embedder != nil {
		return o.Embedder, nil
	}
	if def == nil {
		return nil, fmt.Errorf("vectorstore: no embedder configured")
	}
	return def, nil
}

// dedupe drops documents the caller's Deduplicater reports as already stored.
func dedupe(ctx context.Context, docs []schema.Document, o vectorstores.Options) []schema.Document {
	if o.Deduplicater == nil {
		return docs
	}
	kept := docs[:0:0]
	for _, d := range docs {
		if !o.Deduplicater(ctx, d) {
			kept = append(kept, d)
		}
	}
	return kept
}

func sourceOf(doc schema.Document) string {
	if doc.Metadata == nil {
		return ""
	}
	switch v := doc.Metadata[MetaSource].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// matchesFilters applies a map[string]any filter as metadata equality. Other
// filter types are ignored.
func matchesFilters(meta map[string]any, filters any) bool {
	f, ok := filters.(map[string]any)
	if !ok || len(f) == 0 {
		return true
	}
	for k, want := range f {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
