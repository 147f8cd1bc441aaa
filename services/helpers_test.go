package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github/itish2003/pdfchat/vectorstore"
)

func testLogEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// wordEmbedder counts occurrences of a fixed vocabulary.
type wordEmbedder struct{}

var vocabulary = []string{"go", "pdf", "cat", "rag"}

func (wordEmbedder) embed(text string) []float32 {
	v := make([]float32, len(vocabulary))
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,!?")
		for i, w := range vocabulary {
			if f == w {
				v[i]++
			}
		}
	}
	return v
}

func (e wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func newTestStore(t *testing.T) *vectorstore.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	store, err := vectorstore.NewSQLiteStore(db, wordEmbedder{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeModel records the last messages and replies with a fixed answer.
type fakeModel struct {
	answer   string
	err      error
	noChoice bool
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	if m.noChoice {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type fakeRetriever struct {
	docs []schema.Document
	err  error
}

func (r fakeRetriever) GetRelevantDocuments(context.Context, string) ([]schema.Document, error) {
	return r.docs, r.err
}

var errBoom = errors.New("boom")
