// Package orchestrator runs the per-query decision procedure: route,
// rewrite, retrieve, gate, assemble, complete, record.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/cache"
	"github.com/tungtran1995/chatbot-server-test/internal/llm"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/retrieval"
	"github.com/tungtran1995/chatbot-server-test/internal/router"
	"github.com/tungtran1995/chatbot-server-test/internal/session"
)

var tracer = otel.Tracer("chatbotd.orchestrator")

// State tracks a request through the decision procedure. Used for
// tracing and logging only; the flow is linear per request.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateClassified State = "CLASSIFIED"
	StateRetrieving State = "RETRIEVING"
	StateGated      State = "GATED"
	StateAugmented  State = "AUGMENTED"
	StateDirect     State = "DIRECT"
	StateResponded  State = "RESPONDED"
	StateFallback   State = "FALLBACK"
)

// Request is one incoming chat query.
type Request struct {
	// Query is the user's utterance.
	Query string

	// SessionID scopes the conversation log. Empty means an anonymous
	// session.
	SessionID string

	// Cacheable marks the response as a semantic cache candidate. The
	// write still only happens on the product route with a query
	// embedding in hand.
	Cacheable bool
}

// Reply is the assistant response returned to the caller.
type Reply struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Classifier assigns a route name to a query.
type Classifier interface {
	Classify(ctx context.Context, query string) string
}

// QueryRewriter produces a standalone version of a follow-up query.
type QueryRewriter interface {
	Rewrite(ctx context.Context, sessionID, query string) string
}

// Retriever fetches fused product candidates.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, queryVector []float32) ([]retrieval.RankedResult, error)
}

// Embedder embeds a single query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Memory is the session log surface the orchestrator needs.
type Memory interface {
	Append(ctx context.Context, sessionID string, msg session.ChatMessage) error
	Read(ctx context.Context, sessionID string, limit int) ([]session.ChatMessage, error)
}

// ResponseCache is the semantic cache surface the orchestrator needs.
type ResponseCache interface {
	Put(ctx context.Context, embedding []float32, entry cache.Entry) error
	Lookup(ctx context.Context, embedding []float32) (cache.Entry, error)
}

// Config holds orchestrator behavior settings.
type Config struct {
	// Persona is the fixed system instruction opening every prompt.
	Persona string

	// Apology is the fixed reply when an external call fails.
	Apology string

	// MaxHistory bounds the session messages included in prompts.
	MaxHistory int

	// RewriteEnabled toggles standalone-query rewriting.
	RewriteEnabled bool

	// CacheEnabled toggles semantic cache writes.
	CacheEnabled bool

	// CacheLookupEnabled toggles the cache read path: hits on the
	// product route short-circuit the completion call.
	CacheLookupEnabled bool
}

// Orchestrator wires the components into the request state machine.
type Orchestrator struct {
	classifier Classifier
	rewriter   QueryRewriter
	embedder   Embedder
	retriever  Retriever
	gate       *retrieval.Gate
	memory     Memory
	cache      ResponseCache
	completer  llm.Completer
	config     Config
	logger     *logging.Logger
}

// New creates an Orchestrator. The cache may be nil when caching is
// disabled; everything else is required.
func New(classifier Classifier, rw QueryRewriter, embedder Embedder, retriever Retriever, gate *retrieval.Gate, memory Memory, responseCache ResponseCache, completer llm.Completer, cfg Config, logger *logging.Logger) (*Orchestrator, error) {
	switch {
	case classifier == nil:
		return nil, errors.New("classifier is required")
	case embedder == nil:
		return nil, errors.New("embedder is required")
	case retriever == nil:
		return nil, errors.New("retriever is required")
	case gate == nil:
		return nil, errors.New("gate is required")
	case memory == nil:
		return nil, errors.New("session memory is required")
	case completer == nil:
		return nil, errors.New("completer is required")
	case cfg.Persona == "":
		return nil, errors.New("persona is required")
	case cfg.Apology == "":
		return nil, errors.New("apology reply is required")
	}
	if (cfg.CacheEnabled || cfg.CacheLookupEnabled) && responseCache == nil {
		return nil, errors.New("cache enabled but no cache provided")
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 100
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		classifier: classifier,
		rewriter:   rw,
		embedder:   embedder,
		retriever:  retriever,
		gate:       gate,
		memory:     memory,
		cache:      responseCache,
		completer:  completer,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Handle runs one query through the state machine and always returns
// a user-visible reply: external-service failures surface as the fixed
// apology, never as a raw error. Exactly one attempt per external
// call, no retries.
func (o *Orchestrator) Handle(ctx context.Context, req Request) Reply {
	ctx, span := tracer.Start(ctx, "Orchestrator.Handle")
	defer span.End()

	ctx = logging.WithSessionID(ctx, req.SessionID)
	state := StateReceived

	route := o.classifier.Classify(ctx, req.Query)
	state = StateClassified
	span.SetAttributes(attribute.String("route", route))
	o.logger.Debug(ctx, "query classified", zap.String("route", route))

	if route != router.RouteProducts {
		return o.direct(ctx, req, StateDirect)
	}
	return o.product(ctx, req, state)
}

// product runs the retrieval-augmented path.
func (o *Orchestrator) product(ctx context.Context, req Request, state State) Reply {
	standalone := req.Query
	if o.config.RewriteEnabled && o.rewriter != nil {
		standalone = o.rewriter.Rewrite(ctx, req.SessionID, req.Query)
	}
	state = StateRetrieving

	queryVector, err := o.embedder.EmbedQuery(ctx, standalone)
	if err != nil {
		o.logger.Error(ctx, "query embedding failed", zap.Error(err))
		return o.apology(ctx)
	}

	if o.config.CacheLookupEnabled && o.cache != nil {
		if entry, err := o.cache.Lookup(ctx, queryVector); err == nil {
			o.record(ctx, req, entry.AugmentedText, entry.Response)
			return Reply{Role: "assistant", Content: entry.Response}
		} else if !errors.Is(err, cache.ErrMiss) {
			o.logger.Warn(ctx, "cache lookup failed", zap.Error(err))
		}
	}

	results, err := o.retriever.Retrieve(ctx, standalone, queryVector)
	if err != nil {
		o.logger.Error(ctx, "retrieval failed", zap.Error(err))
		return o.apology(ctx)
	}

	gated := o.gate.Filter(results)
	state = StateGated

	if len(gated) == 0 {
		o.logger.Debug(ctx, "no candidate cleared the gate, taking fallback path")
		return o.direct(ctx, req, StateFallback)
	}
	state = StateAugmented

	enhanced := augmentedMessage(req.Query, gated)
	reply, completed := o.complete(ctx, req, enhanced, state)
	if !completed {
		return reply
	}

	if req.Cacheable && o.config.CacheEnabled && o.cache != nil && len(queryVector) > 0 {
		err := o.cache.Put(ctx, queryVector, cache.Entry{
			OriginalText:  req.Query,
			AugmentedText: enhanced,
			Response:      reply.Content,
		})
		if err != nil {
			o.logger.Warn(ctx, "semantic cache write failed", zap.Error(err))
		}
	}

	return reply
}

// direct serves the query without document context: the chitchat route
// and the gate-empty fallback.
func (o *Orchestrator) direct(ctx context.Context, req Request, state State) Reply {
	reply, _ := o.complete(ctx, req, "", state)
	return reply
}

// complete assembles the prompt, calls the completer once and records
// both turns. enhanced is the augmented user message for the product
// path, empty for direct prompts. The bool reports whether the
// completion succeeded.
func (o *Orchestrator) complete(ctx context.Context, req Request, enhanced string, state State) (Reply, bool) {
	ctx, span := tracer.Start(ctx, "Orchestrator.complete")
	defer span.End()

	span.SetAttributes(attribute.String("state", string(state)))

	history, err := o.memory.Read(ctx, req.SessionID, o.config.MaxHistory)
	if err != nil {
		o.logger.Error(ctx, "history read failed", zap.Error(err))
		return o.apology(ctx), false
	}

	messages := assemblePrompt(o.config.Persona, history, enhanced, req.Query)

	content, err := o.completer.Complete(ctx, messages)
	if err != nil {
		o.logger.Error(ctx, "completion failed", zap.Error(err))
		span.RecordError(err)
		return o.apology(ctx), false
	}

	o.record(ctx, req, enhanced, content)

	o.logger.Info(ctx, "request served",
		zap.String("state", string(StateResponded)),
		zap.Int("history_len", len(history)),
		zap.Bool("augmented", enhanced != ""),
	)

	return Reply{Role: "assistant", Content: content}, true
}

// record appends the user and assistant turns. Log failures are not
// surfaced to the user: the reply already exists and losing one log
// write must not turn a good answer into an apology.
func (o *Orchestrator) record(ctx context.Context, req Request, enhanced, response string) {
	err := o.memory.Append(ctx, req.SessionID, session.ChatMessage{
		Role:            llm.RoleUser,
		Content:         req.Query,
		EnhancedContent: enhanced,
	})
	if err != nil {
		o.logger.Error(ctx, "recording user turn failed", zap.Error(err))
		return
	}
	err = o.memory.Append(ctx, req.SessionID, session.ChatMessage{
		Role:    llm.RoleAssistant,
		Content: response,
	})
	if err != nil {
		o.logger.Error(ctx, "recording assistant turn failed", zap.Error(err))
	}
}

// apology is the single user-visible failure response. Nothing is
// recorded: the exchange did not complete.
func (o *Orchestrator) apology(ctx context.Context) Reply {
	o.logger.Warn(ctx, "serving apology reply")
	return Reply{Role: "assistant", Content: o.config.Apology}
}

// assemblePrompt builds the completion prompt: persona, bounded
// history, an optional system block with the gated product context,
// and the original user query as the final turn.
func assemblePrompt(persona string, history []session.ChatMessage, enhanced, query string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: persona})
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	if enhanced != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: enhanced})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return messages
}

// augmentedMessage formats the gated documents into the product
// context block.
func augmentedMessage(query string, results []retrieval.RankedResult) string {
	lines := make([]string, len(results))
	for i, res := range results {
		lines[i] = fmt.Sprintf("Title: %s, Content: %s, Price: %s, Brand: %s",
			res.Metadata["title"], res.Content, res.Metadata["price"], res.Metadata["brand"])
	}
	return fmt.Sprintf("Câu hỏi : %s, \ntrả lời khách hàng sử dụng thông tin sản phẩm sau:\n###Sản Phẩm###\n%s.",
		query, strings.Join(lines, "\n"))
}
