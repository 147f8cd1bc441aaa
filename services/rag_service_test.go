package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github/itish2003/pdfchat/vectorstore"
)

func TestRAGService_AskStuffsRetrievedContext(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.AddDocuments(ctx, []schema.Document{
		{PageContent: "Go has goroutines. go go.", Metadata: map[string]any{vectorstore.MetaSource: "go.pdf"}},
		{PageContent: "A cat is not a pdf.", Metadata: map[string]any{vectorstore.MetaSource: "cat.pdf"}},
		{PageContent: "RAG retrieves then generates.", Metadata: map[string]any{vectorstore.MetaSource: "rag.pdf"}},
	})
	require.NoError(t, err)

	model := &fakeModel{answer: "Goroutines."}
	svc := NewRAGService(store, model, 2)

	ans, err := svc.Ask(ctx, "what about go?")
	require.NoError(t, err)

	assert.Equal(t, "what about go?", ans.Input)
	assert.Equal(t, "Goroutines.", ans.Answer)
	require.Len(t, ans.Context, 2)
	assert.Equal(t, "Go has goroutines. go go.", ans.Context[0].PageContent)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)

	system := messageText(model.messages[0])
	assert.Contains(t, system, "Go has goroutines. go go.\n\n"+ans.Context[1].PageContent)
	assert.NotContains(t, system, "{{")
	assert.Equal(t, "what about go?", messageText(model.messages[1]))
}

func TestRAGService_AskErrors(t *testing.T) {
	ctx := context.Background()

	svc := newRAGService(fakeRetriever{}, nil, &fakeModel{answer: "x"})
	_, err := svc.Ask(ctx, "  \n")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	svc = newRAGService(fakeRetriever{err: errBoom}, nil, &fakeModel{})
	_, err = svc.Ask(ctx, "q")
	assert.ErrorIs(t, err, errBoom)

	svc = newRAGService(fakeRetriever{}, nil, &fakeModel{err: errBoom})
	_, err = svc.Ask(ctx, "q")
	assert.ErrorIs(t, err, errBoom)

	svc = newRAGService(fakeRetriever{}, nil, &fakeModel{noChoice: true})
	_, err = svc.Ask(ctx, "q")
	assert.Error(t, err)
}

func TestRAGService_AskWithNoDocuments(t *testing.T) {
	model := &fakeModel{answer: "I don't know."}
	svc := newRAGService(fakeRetriever{}, nil, model)

	ans, err := svc.Ask(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", ans.Answer)
	assert.Empty(t, ans.Context)
}

func TestRAGService_Sources(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.AddDocuments(ctx, []schema.Document{
		{PageContent: "go", Metadata: map[string]any{vectorstore.MetaSource: "b.pdf"}},
		{PageContent: "go", Metadata: map[string]any{vectorstore.MetaSource: "a.pdf"}},
		{PageContent: "go", Metadata: map[string]any{vectorstore.MetaSource: "b.pdf"}},
	})
	require.NoError(t, err)

	got, err := NewRAGService(store, &fakeModel{}, 5).Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []vectorstore.SourceStat{{Source: "a.pdf", Chunks: 1}, {Source: "b.pdf", Chunks: 2}}, got)
}
