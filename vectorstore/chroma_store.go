package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	chromaemb "github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// ChromaStore keeps chunks in a Chroma collection. Embeddings are computed
// locally and sent alongside the texts.
type ChromaStore struct {
	client     chromago.Client
	collection chromago.Collection
	embedder   embeddings.Embedder
	log        *logrus.Entry
}

var _ Store = (*ChromaStore)(nil)

// OpenChroma connects to the Chroma server at baseURL and gets or creates the
// named collection.
func OpenChroma(ctx context.Context, baseURL, collectionName string, embedder embeddings.Embedder) (*ChromaStore, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	entry := logrus.WithField("component", "chroma-store")
	entry.Infof("Getting or creating collection '%s'...", collectionName)

	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "PDF chat chunks"),
				chromago.NewStringAttribute("created_by", "pdfchat"),
			),
		),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to get or create collection %s: %w", collectionName, err)
	}
	return NewChromaStore(client, collection, embedder), nil
}

// NewChromaStore wraps an existing collection. client may be nil when the
// caller owns its lifecycle.
func NewChromaStore(client chromago.Client, collection chromago.Collection, embedder embeddings.Embedder) *ChromaStore {
	return &ChromaStore{
		client:     client,
		collection: collection,
		embedder:   embedder,
		log:        logrus.WithField("component", "chroma-store"),
	}
}

func (s *ChromaStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts := resolveOptions(options)
	docs = dedupe(ctx, docs, opts)
	if len(docs) == 0 {
		return nil, nil
	}
	embedder, err := pickEmbedder(s.embedder, opts)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("could not embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	docIDs := make([]chromago.DocumentID, len(docs))
	embs := make([]chromaemb.Embedding, len(docs))
	metas := make([]chromago.DocumentMetadata, len(docs))
	for i, d := range docs {
		ids[i] = uuid.New().String()
		docIDs[i] = chromago.DocumentID(ids[i])
		embs[i] = chromaemb.NewEmbeddingFromFloat32(vectors[i])
		metas[i] = toChromaMetadata(d.Metadata)
	}

	err = s.collection.Add(ctx,
		chromago.WithIDs(docIDs...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add %d chunks to chromadb: %w", len(docs), err)
	}
	return ids, nil
}

// SimilaritySearch ranks by Chroma's own distance. Score is not populated and
// ScoreThreshold is ignored; map filters are applied client side.
func (s *ChromaStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	if numDocuments <= 0 {
		return nil, nil
	}
	opts := resolveOptions(options)
	embedder, err := pickEmbedder(s.embedder, opts)
	if err != nil {
		return nil, err
	}
	qvec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}

	results, err := s.collection.Query(ctx,
		chromago.WithQueryEmbeddings(chromaemb.NewEmbeddingFromFloat32(qvec)),
		chromago.WithNResults(numDocuments),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	var out []schema.Document
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return out, nil
	}
	for i, d := range documentGroups[0] {
		text := d.ContentString()
		if text == "" {
			continue
		}
		var meta map[string]any
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			meta = s.metadataMap(metadataGroups[0][i])
		}
		if !matchesFilters(meta, opts.Filters) {
			continue
		}
		out = append(out, schema.Document{PageContent: text, Metadata: meta})
	}
	return out, nil
}

func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	count, err := s.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (s *ChromaStore) Sources(ctx context.Context) (map[string]int, error) {
	results, err := s.collection.Get(ctx, chromago.WithIncludeGet(chromago.IncludeMetadatas))
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	out := make(map[string]int)
	for _, m := range results.GetMetadatas() {
		if src, ok := s.metadataMap(m)[MetaSource].(string); ok {
			out[src]++
		}
	}
	return out, nil
}

func (s *ChromaStore) DeleteBySource(ctx context.Context, source string) error {
	if source == "" {
		return fmt.Errorf("vectorstore: DeleteBySource called with empty source")
	}
	where := chromago.EqString(MetaSource, source)
	if err := s.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", source, err)
	}
	return nil
}

func (s *ChromaStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// metadataMap flattens DocumentMetadata through JSON; the type has no public
// accessor for all of its values.
func (s *ChromaStore) metadataMap(m chromago.DocumentMetadata) map[string]any {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		s.log.Warnf("could not marshal metadata: %v", err)
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Warnf("could not unmarshal metadata: %v", err)
		return map[string]any{}
	}
	return out
}

func toChromaMetadata(meta map[string]any) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, val))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(val)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, val))
		case float64:
			attrs = append(attrs, chromago.NewFloatAttribute(k, val))
		case bool:
			attrs = append(attrs, chromago.NewBoolAttribute(k, val))
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprint(val)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}
