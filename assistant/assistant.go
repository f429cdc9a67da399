// Package assistant answers admission questions from retrieved university
// documents, with a language model when one is configured.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hubenschmidt/go-admissions/core"
	"github.com/hubenschmidt/go-admissions/llm"
	"github.com/hubenschmidt/go-admissions/rag"
)

// SystemPrompt frames every request sent to the model.
const SystemPrompt = `You are an AI admission assistant for the University of Lahore.
Your role is to provide accurate information about admission processes, programs,
scholarships, and campus facilities. Be helpful, concise, and accurate.

If you don't know the answer to a question, politely say so and suggest contacting
the university's admission office directly.`

// Retriever supplies the context passed to the model.
type Retriever interface {
	Query(ctx context.Context, question string, topK int) (string, error)
}

type Answer struct {
	Text    string    `json:"text"`
	Context string    `json:"context,omitempty"`
	Offline bool      `json:"offline"`
	Usage   llm.Usage `json:"usage"`
}

type Assistant struct {
	retriever Retriever
	client    llm.Client
	model     string
	topK      int
}

// New returns an Assistant. A nil client answers offline with the
// retrieved context only.
func New(r Retriever, client llm.Client, model string, topK int) *Assistant {
	return &Assistant{retriever: r, client: client, model: model, topK: topK}
}

// Ask retrieves context for question and asks the model. Retrieval
// failures are returned; an empty index is not a failure and yields an
// answer without context.
func (a *Assistant) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, core.Validationf("question must not be empty")
	}

	retrieved, err := a.retriever.Query(ctx, question, a.topK)
	switch {
	case errors.Is(err, core.ErrValidation):
		return nil, err
	case err != nil:
		log.Printf("[assistant] retrieval failed: %v", err)
		return nil, core.NewError("assistant.retrieve", "", err)
	case rag.IsNoRelevantInformation(retrieved):
		retrieved = ""
	}

	if a.client == nil {
		return &Answer{Text: offlineAnswer(retrieved), Context: retrieved, Offline: true}, nil
	}

	resp, err := a.client.Chat(ctx, a.model, SystemPrompt, UserPrompt(retrieved, question))
	if err != nil {
		return nil, core.NewError("assistant.ask", a.model, fmt.Errorf("%w: %w", core.ErrUpstreamUnavailable, err))
	}
	return &Answer{Text: resp.Content, Context: retrieved, Usage: resp.Usage}, nil
}

// Prompt is the single-message form of the request sent to the model.
func Prompt(retrieved, question string) string {
	return SystemPrompt + "\n\n" + UserPrompt(retrieved, question)
}

// UserPrompt is the user turn: the retrieved context, when any, followed
// by the question.
func UserPrompt(retrieved, question string) string {
	if retrieved == "" {
		return "Question: " + question
	}
	return "Context from university documents:\n" + retrieved + "\n\nQuestion: " + question
}

func offlineAnswer(retrieved string) string {
	if retrieved == "" {
		return "[offline] No language model is configured and no relevant documents were found. " +
			"Please contact the university's admission office directly."
	}
	return "[offline] No language model is configured. Relevant information from university documents:\n\n" + retrieved
}
