package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/search"
)

// Retrieval modes recorded with each answer.
const (
	ModeEmbedding = "embedding"
	ModeLexical   = "lexical"
	ModeNone      = "none"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Completer turns a system prompt and a user prompt into a reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AskOptions tunes retrieval for a question.
type AskOptions struct {
	EmbeddingK  int // results from the index, default 4
	LexicalK    int // results from lexical search, default 5
	TokenBudget int // context budget for the prompt, 0 for unlimited
}

func (o AskOptions) withDefaults() AskOptions {
	if o.EmbeddingK <= 0 {
		o.EmbeddingK = 4
	}
	if o.LexicalK <= 0 {
		o.LexicalK = 5
	}
	return o
}

// Answer is the reply to a question plus what was used to produce it.
type Answer struct {
	Answer   string   `json:"answer"`
	Mode     string   `json:"mode"`
	Contexts []string `json:"contexts"`
}

// Retrieve picks context chunks for question from v. The index is used
// when it is ready; lexical search over the chunks is the fallback,
// including when the embedding call fails.
func (s *Session) Retrieve(ctx context.Context, v *View, question string, opts AskOptions) ([]string, string) {
	opts = opts.withDefaults()

	if v.Indexed() {
		results, err := s.Search(ctx, v, question, opts.EmbeddingK)
		if err == nil {
			texts := make([]string, len(results))
			for i, r := range results {
				texts[i] = r.Text
			}
			return texts, ModeEmbedding
		}
		if ctx.Err() != nil {
			return nil, ModeNone
		}
		s.log.Warn("embedding search failed, falling back to lexical", "error", err)
	}

	if len(v.Chunks) == 0 {
		return nil, ModeNone
	}
	return search.Relevant(Texts(v.Chunks), question, opts.LexicalK), ModeLexical
}

// Ask answers question from the session's documents and records the
// exchange in the history.
func (s *Session) Ask(ctx context.Context, model Completer, question string, opts AskOptions) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	v := s.View()
	contexts, mode := s.Retrieve(ctx, v, question, opts)
	system := llm.SystemPrompt
	if mode == ModeLexical {
		system = llm.DocumentSystemPrompt(len(v.Chunks))
	}
	prompt := llm.BuildPrompt(question, contexts, opts.TokenBudget)

	reply, err := model.Complete(ctx, system, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}

	s.addMessage(Message{
		Question:   question,
		Answer:     reply,
		Mode:       mode,
		ChunksUsed: len(contexts),
		Timestamp:  time.Now(),
	})
	s.log.Info("question answered", "mode", mode, "contexts", len(contexts))

	if contexts == nil {
		contexts = []string{}
	}
	return Answer{Answer: reply, Mode: mode, Contexts: contexts}, nil
}
