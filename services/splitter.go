package services

import (
	"fmt"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github/itish2003/pdfchat/vectorstore"
)

// Splitter cuts page documents into overlapping chunks that keep their page
// metadata.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split returns the chunks of every document, in order. Each chunk carries a
// copy of its page's metadata plus its index within the page.
func (s *Splitter) Split(docs []schema.Document) ([]schema.Document, error) {
	var out []schema.Document
	for i, d := range docs {
		texts, err := s.inner.SplitText(d.PageContent)
		if err != nil {
			return nil, fmt.Errorf("could not split document %d: %w", i, err)
		}
		for n, text := range texts {
			meta := make(map[string]any, len(d.Metadata)+1)
			for k, v := range d.Metadata {
				meta[k] = v
			}
			meta[vectorstore.MetaChunk] = n
			out = append(out, schema.Document{PageContent: text, Metadata: meta})
		}
	}
	return out, nil
}
