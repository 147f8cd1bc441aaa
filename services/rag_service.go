package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github/itish2003/pdfchat/vectorstore"
)

// ErrEmptyQuestion is returned by Ask for blank input.
var ErrEmptyQuestion = errors.New("question must not be empty")

// documentSeparator joins retrieved chunks into the prompt context.
const documentSeparator = "\n\n"

// Answer is the result of one retrieval chain run.
type Answer struct {
	Input   string
	Context []schema.Document
	Answer  string
}

// RAGService answers questions from the indexed documents.
type RAGService interface {
	Ask(c context.Context, question string) (*Answer, error)
	Sources(c context.Context) ([]vectorstore.SourceStat, error)
}

type sourceLister interface {
	Sources(ctx context.Context) (map[string]int, error)
}

type ragServiceImpl struct {
	retriever schema.Retriever
	sources   sourceLister
	model     llms.Model
	prompt    prompts.ChatPromptTemplate
	log       *logrus.Entry
}

// NewRAGService retrieves the topK most similar chunks from store for every
// question and stuffs them into the chat prompt sent to model.
func NewRAGService(store vectorstore.Store, model llms.Model, topK int) RAGService {
	return newRAGService(vectorstores.ToRetriever(store, topK), store, model)
}

func newRAGService(retriever schema.Retriever, sources sourceLister, model llms.Model) *ragServiceImpl {
	return &ragServiceImpl{
		retriever: retriever,
		sources:   sources,
		model:     model,
		prompt:    NewChatPrompt(),
		log:       logrus.WithField("component", "service"),
	}
}

// Ask implements RAGService.
func (r *ragServiceImpl) Ask(c context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	docs, err := r.retriever.GetRelevantDocuments(c, question)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve documents: %w", err)
	}
	r.log.Debugf("Retrieved %d documents", len(docs))

	messages, err := r.prompt.FormatMessages(map[string]any{
		"context": joinDocuments(docs),
		"input":   question,
	})
	if err != nil {
		return nil, fmt.Errorf("could not format prompt: %w", err)
	}
	contents := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, llms.TextParts(m.GetType(), m.GetContent()))
	}

	resp, err := r.model.GenerateContent(c, contents)
	if err != nil {
		return nil, fmt.Errorf("could not generate answer: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}

	return &Answer{
		Input:   question,
		Context: docs,
		Answer:  resp.Choices[0].Content,
	}, nil
}

// Sources implements RAGService.
func (r *ragServiceImpl) Sources(c context.Context) ([]vectorstore.SourceStat, error) {
	m, err := r.sources.Sources(c)
	if err != nil {
		return nil, fmt.Errorf("could not list indexed documents: %w", err)
	}
	return vectorstore.SortedSources(m), nil
}

func joinDocuments(docs []schema.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.PageContent
	}
	return strings.Join(parts, documentSeparator)
}
