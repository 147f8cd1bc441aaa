package services

import "github.com/tmc/langchaingo/prompts"

const systemPrompt = `You are a helpful assistant answering questions about the user's documents.
Use the following pieces of retrieved context to answer the question. If you don't know the answer, say that you don't know. Do not invent information.
Use three sentences maximum and keep the answer concise.

{{.context}}`

// NewChatPrompt builds the system + human template used by the chain. It
// expects the "context" and "input" variables.
func NewChatPrompt() prompts.ChatPromptTemplate {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(systemPrompt, []string{"context"}),
		prompts.NewHumanMessagePromptTemplate("{{.input}}", []string{"input"}),
	})
}
