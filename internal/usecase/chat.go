package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// systemPrompt pins the model to the retrieved context. Strict grounding is
// the system's defining guarantee: an answer not supported by the supplied
// context must be refused, not invented.
const systemPrompt = "You are a helpful assistant. Use the following context to answer the user's question. " +
	`If the answer is not contained in the context, say "I don't know."`

// NoAnswerReply is returned without consulting the model when retrieval
// finds nothing to ground an answer on.
const NoAnswerReply = "I don't know. Nothing relevant was found in the indexed documents."

// Answer is a generated response plus the documents it was grounded on.
type Answer struct {
	Text    string
	Sources []string
	Matches []domain.Match
}

// Chat orchestrates retrieval and answer generation.
type Chat struct {
	retriever *Retriever
	llm       port.LLM
	topK      int
}

func NewChat(retriever *Retriever, llm port.LLM, topK int) *Chat {
	if topK <= 0 {
		topK = 5
	}
	return &Chat{retriever: retriever, llm: llm, topK: topK}
}

// Ask retrieves context for the query and generates a grounded answer.
// With no retrieved chunks the model is never called.
func (c *Chat) Ask(ctx context.Context, query string) (*Answer, error) {
	matches, err := c.retriever.Retrieve(ctx, query, c.topK)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return &Answer{Text: NoAnswerReply}, nil
	}

	text, err := c.llm.GenerateWithSystem(ctx, systemPrompt, buildUserPrompt(query, matches))
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:    text,
		Sources: uniqueSources(matches),
		Matches: matches,
	}, nil
}

// buildUserPrompt renders the retrieved chunks as attributed context blocks
// followed by the question.
func buildUserPrompt(query string, matches []domain.Match) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Source: %s\nContent: %s", m.Chunk.DocPath, m.Chunk.Text)
	}
	fmt.Fprintf(&sb, "\n\nQuestion: %s", query)
	return sb.String()
}

// uniqueSources lists the distinct source documents, by base name, in
// retrieval order.
func uniqueSources(matches []domain.Match) []string {
	seen := make(map[string]bool, len(matches))
	var sources []string
	for _, m := range matches {
		name := filepath.Base(m.Chunk.DocPath)
		if !seen[name] {
			seen[name] = true
			sources = append(sources, name)
		}
	}
	return sources
}
