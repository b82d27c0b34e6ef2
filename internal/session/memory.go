// Package session persists the per-session conversation log.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tungtran1995/chatbot-server-test/internal/llm"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

var tracer = otel.Tracer("chatbotd.session")

// Metadata keys for stored messages. session_id is a first-class
// indexed field: membership is exact equality, so one session id being
// a substring of another can never cross-contaminate histories.
const (
	metaSessionID = "session_id"
	metaRole      = "role"
	metaSeq       = "seq"
	metaEnhanced  = "enhanced_content"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	// Role is user, assistant or system.
	Role llm.Role

	// Content is what the user literally typed or the assistant
	// replied.
	Content string

	// EnhancedContent is the retrieval-augmented version of a user
	// message. Empty for assistant turns and direct-path user turns.
	EnhancedContent string
}

// Memory is the append-only conversation log over a store collection.
//
// Messages are never mutated or deleted here; retention is an external
// concern. Order within a session is append order, enforced with a
// per-session sequence number issued under lock.
type Memory struct {
	store      vectorstore.Store
	collection string
	logger     *logging.Logger

	mu   sync.Mutex
	seqs map[string]int64
}

// NewMemory creates a Memory over the given collection.
func NewMemory(store vectorstore.Store, collection string, logger *logging.Logger) (*Memory, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Memory{
		store:      store,
		collection: collection,
		logger:     logger,
		seqs:       make(map[string]int64),
	}, nil
}

// Append records one message for the session. The empty session id is
// a valid anonymous session.
func (m *Memory) Append(ctx context.Context, sessionID string, msg ChatMessage) error {
	ctx, span := tracer.Start(ctx, "Memory.Append")
	defer span.End()

	span.SetAttributes(attribute.String("role", string(msg.Role)))

	seq, err := m.nextSeq(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("allocating sequence number: %w", err)
	}

	metadata := map[string]string{
		metaSessionID: sessionID,
		metaRole:      string(msg.Role),
		metaSeq:       strconv.FormatInt(seq, 10),
	}
	if msg.EnhancedContent != "" {
		metadata[metaEnhanced] = msg.EnhancedContent
	}

	_, err = m.store.AddDocuments(ctx, m.collection, []vectorstore.Document{{
		Content:  msg.Content,
		Metadata: metadata,
	}})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// nextSeq issues the next sequence number for a session, seeding the
// counter from the stored log the first time a session is seen so
// numbering continues across restarts.
func (m *Memory) nextSeq(ctx context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, ok := m.seqs[sessionID]
	if !ok {
		existing, err := m.store.ListDocuments(ctx, m.collection,
			map[string]string{metaSessionID: sessionID}, 0)
		if err != nil && !isMissingCollection(err) {
			return 0, err
		}
		seq = int64(len(existing))
	}
	m.seqs[sessionID] = seq + 1
	return seq, nil
}

// Read returns the session's messages in append order, most recent
// last, bounded to the most recent limit messages when limit is
// positive. A session with no history yields an empty slice.
func (m *Memory) Read(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "Memory.Read")
	defer span.End()

	results, err := m.store.ListDocuments(ctx, m.collection,
		map[string]string{metaSessionID: sessionID}, limit)
	if err != nil {
		if isMissingCollection(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("reading session log: %w", err)
	}

	messages := make([]ChatMessage, len(results))
	for i, res := range results {
		messages[i] = ChatMessage{
			Role:            llm.Role(res.Metadata[metaRole]),
			Content:         res.Content,
			EnhancedContent: res.Metadata[metaEnhanced],
		}
	}

	span.SetAttributes(attribute.Int("message_count", len(messages)))

	return messages, nil
}

// isMissingCollection treats a never-written log as empty history.
func isMissingCollection(err error) bool {
	return errors.Is(err, vectorstore.ErrCollectionNotFound)
}
