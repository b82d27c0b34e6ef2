// Package rewriter turns follow-up questions into standalone queries.
package rewriter

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/llm"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/session"
)

var tracer = otel.Tracer("chatbotd.rewriter")

// DefaultMaxHistory bounds the messages fed into the rewrite prompt.
const DefaultMaxHistory = 100

// Rewriter produces a context-free restatement of the latest query,
// in the query's own language, using the session history.
//
// Best effort only: any failure or empty completion falls back to the
// original query, so downstream never sees an empty query and a
// flaky rewrite service never fails a request.
type Rewriter struct {
	completer  llm.Completer
	memory     *session.Memory
	maxHistory int
	logger     *logging.Logger
}

// New creates a Rewriter.
func New(completer llm.Completer, memory *session.Memory, maxHistory int, logger *logging.Logger) (*Rewriter, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if memory == nil {
		return nil, fmt.Errorf("session memory is required")
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Rewriter{
		completer:  completer,
		memory:     memory,
		maxHistory: maxHistory,
		logger:     logger,
	}, nil
}

// Rewrite returns a standalone version of query. A session with no
// history, a completion failure, or an empty completion all yield the
// original query unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, sessionID, query string) string {
	ctx, span := tracer.Start(ctx, "Rewriter.Rewrite")
	defer span.End()

	history, err := r.memory.Read(ctx, sessionID, r.maxHistory)
	if err != nil {
		r.logger.Warn(ctx, "history read failed, using original query", zap.Error(err))
		span.RecordError(err)
		return query
	}
	if len(history) == 0 {
		return query
	}

	rewritten, err := r.completer.Complete(ctx, []llm.Message{{
		Role:    llm.RoleUser,
		Content: rewritePrompt(history, query),
	}})
	if err != nil {
		r.logger.Warn(ctx, "rewrite completion failed, using original query", zap.Error(err))
		span.RecordError(err)
		return query
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}

	span.SetAttributes(attribute.Bool("rewritten", rewritten != query))

	return rewritten
}

func rewritePrompt(history []session.ChatMessage, query string) string {
	var b strings.Builder
	for _, msg := range history {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	return fmt.Sprintf(`Given a chat history and the latest user question, formulate a standalone question in Vietnamese which can be understood without the chat history.
Chat history:
%s
User question: %s
Do NOT answer, just rewrite or return the question as-is.`, b.String(), query)
}
