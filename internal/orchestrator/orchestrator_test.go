package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungtran1995/chatbot-server-test/internal/cache"
	"github.com/tungtran1995/chatbot-server-test/internal/llm"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/retrieval"
	"github.com/tungtran1995/chatbot-server-test/internal/router"
	"github.com/tungtran1995/chatbot-server-test/internal/session"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

const (
	testPersona = "Bạn là một chatbot của cửa hàng bán laptop và điện thoại."
	testApology = "Dạ, em xin lỗi anh/chị, hệ thống đang gặp sự cố. Anh/chị vui lòng thử lại sau ạ."
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeRetriever struct {
	results []retrieval.RankedResult
	err     error
	calls   int
}

func (f *fakeRetriever) Retrieve(context.Context, string, []float32) ([]retrieval.RankedResult, error) {
	f.calls++
	return f.results, f.err
}

type fakeCompleter struct {
	reply   string
	err     error
	prompts [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.prompts = append(f.prompts, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeCache struct {
	puts    []cache.Entry
	entry   cache.Entry
	hasHit  bool
	lookups int
}

func (f *fakeCache) Put(_ context.Context, _ []float32, entry cache.Entry) error {
	f.puts = append(f.puts, entry)
	return nil
}

func (f *fakeCache) Lookup(context.Context, []float32) (cache.Entry, error) {
	f.lookups++
	if f.hasHit {
		return f.entry, nil
	}
	return cache.Entry{}, cache.ErrMiss
}

type passthroughRewriter struct{}

func (passthroughRewriter) Rewrite(_ context.Context, _ string, query string) string { return query }

func newTestMemory(t *testing.T) *session.Memory {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, logging.NewNop())
	require.NoError(t, err)
	memory, err := session.NewMemory(store, "chat_history", logging.NewNop())
	require.NoError(t, err)
	return memory
}

func newKeywordClassifier(t *testing.T) Classifier {
	t.Helper()
	c, err := router.NewKeywordRouter([]string{"iphone", "samsung", "laptop", "điện thoại", "máy tính", "máy ảnh"})
	require.NoError(t, err)
	return c
}

func newGate(t *testing.T) *retrieval.Gate {
	t.Helper()
	gate, err := retrieval.NewGate(0.75, retrieval.OrderSimilarity)
	require.NoError(t, err)
	return gate
}

type orchestratorParts struct {
	retriever *fakeRetriever
	completer *fakeCompleter
	cache     *fakeCache
	memory    *session.Memory
}

func newTestOrchestrator(t *testing.T, parts *orchestratorParts, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Persona == "" {
		cfg.Persona = testPersona
	}
	if cfg.Apology == "" {
		cfg.Apology = testApology
	}
	o, err := New(
		newKeywordClassifier(t),
		passthroughRewriter{},
		&fakeEmbedder{vector: []float32{1, 0}},
		parts.retriever,
		newGate(t),
		parts.memory,
		parts.cache,
		parts.completer,
		cfg,
		logging.NewNop(),
	)
	require.NoError(t, err)
	return o
}

func iphoneResult() retrieval.RankedResult {
	return retrieval.RankedResult{
		ID:      "p1",
		Content: "iphone 15 điện thoại apple",
		Metadata: map[string]string{
			"title": "iPhone 15",
			"price": "20000000",
			"brand": "Apple",
		},
		StoreScore: 0.92,
		Rank:       1,
	}
}

func TestScenarioProductQuery(t *testing.T) {
	ctx := context.Background()
	parts := &orchestratorParts{
		retriever: &fakeRetriever{results: []retrieval.RankedResult{iphoneResult()}},
		completer: &fakeCompleter{reply: "Dạ, iPhone 15 có giá 20000000 đồng ạ."},
		cache:     &fakeCache{},
		memory:    newTestMemory(t),
	}
	o := newTestOrchestrator(t, parts, Config{CacheEnabled: true})

	reply := o.Handle(ctx, Request{
		Query:     "giá iphone 15 là bao nhiêu",
		SessionID: "s1",
		Cacheable: true,
	})

	assert.Equal(t, "assistant", reply.Role)
	assert.Contains(t, reply.Content, "20000000")

	// Prompt carries persona, the product block and the original query.
	require.Len(t, parts.completer.prompts, 1)
	prompt := parts.completer.prompts[0]
	assert.Equal(t, llm.RoleSystem, prompt[0].Role)
	assert.Equal(t, testPersona, prompt[0].Content)

	joined := flatten(prompt)
	assert.Contains(t, joined, "iPhone 15")
	assert.Contains(t, joined, "20000000")
	assert.Equal(t, "giá iphone 15 là bao nhiêu", prompt[len(prompt)-1].Content)
	assert.Equal(t, llm.RoleUser, prompt[len(prompt)-1].Role)

	// One user and one assistant turn recorded.
	history, err := parts.memory.Read(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "giá iphone 15 là bao nhiêu", history[0].Content)
	assert.NotEmpty(t, history[0].EnhancedContent)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)

	// Product route + cacheable = one cache write.
	require.Len(t, parts.cache.puts, 1)
	assert.Equal(t, "giá iphone 15 là bao nhiêu", parts.cache.puts[0].OriginalText)
}

func TestScenarioChitchat(t *testing.T) {
	ctx := context.Background()
	parts := &orchestratorParts{
		retriever: &fakeRetriever{},
		completer: &fakeCompleter{reply: "Dạ, trời hôm nay đẹp thật ạ!"},
		cache:     &fakeCache{},
		memory:    newTestMemory(t),
	}
	o := newTestOrchestrator(t, parts, Config{CacheEnabled: true})

	reply := o.Handle(ctx, Request{
		Query:     "hôm nay trời đẹp quá",
		SessionID: "s1",
		Cacheable: true,
	})

	assert.Contains(t, reply.Content, "đẹp")

	// No retrieval on the chitchat route.
	assert.Zero(t, parts.retriever.calls)

	// No cache write even with the cacheable flag set.
	assert.Empty(t, parts.cache.puts)

	// Prompt is persona + history + query only.
	require.Len(t, parts.completer.prompts, 1)
	prompt := parts.completer.prompts[0]
	require.Len(t, prompt, 2)
	assert.Equal(t, llm.RoleSystem, prompt[0].Role)
	assert.Equal(t, llm.RoleUser, prompt[1].Role)
}

func TestFallbackGuarantee(t *testing.T) {
	ctx := context.Background()

	t.Run("zero candidates", func(t *testing.T) {
		parts := &orchestratorParts{
			retriever: &fakeRetriever{},
			completer: &fakeCompleter{reply: "Dạ, em chưa tìm thấy sản phẩm phù hợp ạ."},
			cache:     &fakeCache{},
			memory:    newTestMemory(t),
		}
		o := newTestOrchestrator(t, parts, Config{})

		o.Handle(ctx, Request{Query: "giá iphone 99 là bao nhiêu", SessionID: "s1"})

		require.Len(t, parts.completer.prompts, 1)
		assert.NotContains(t, flatten(parts.completer.prompts[0]), "###Sản Phẩm###")
	})

	t.Run("all candidates gated out", func(t *testing.T) {
		lowScore := iphoneResult()
		lowScore.StoreScore = 0.2
		parts := &orchestratorParts{
			retriever: &fakeRetriever{results: []retrieval.RankedResult{lowScore}},
			completer: &fakeCompleter{reply: "Dạ."},
			cache:     &fakeCache{},
			memory:    newTestMemory(t),
		}
		o := newTestOrchestrator(t, parts, Config{CacheEnabled: true})

		o.Handle(ctx, Request{Query: "giá iphone", SessionID: "s1", Cacheable: true})

		require.Len(t, parts.completer.prompts, 1)
		assert.NotContains(t, flatten(parts.completer.prompts[0]), "###Sản Phẩm###")
		// The fallback path never caches.
		assert.Empty(t, parts.cache.puts)
	})
}

func TestApologyOnExternalFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("completion failure", func(t *testing.T) {
		parts := &orchestratorParts{
			retriever: &fakeRetriever{results: []retrieval.RankedResult{iphoneResult()}},
			completer: &fakeCompleter{err: errors.New("upstream 500")},
			cache:     &fakeCache{},
			memory:    newTestMemory(t),
		}
		o := newTestOrchestrator(t, parts, Config{})

		reply := o.Handle(ctx, Request{Query: "giá iphone 15", SessionID: "s1"})
		assert.Equal(t, testApology, reply.Content)

		// Exactly one attempt, no retries, nothing recorded.
		assert.Len(t, parts.completer.prompts, 1)
		history, err := parts.memory.Read(ctx, "s1", 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("retrieval failure", func(t *testing.T) {
		parts := &orchestratorParts{
			retriever: &fakeRetriever{err: errors.New("store down")},
			completer: &fakeCompleter{reply: "unused"},
			cache:     &fakeCache{},
			memory:    newTestMemory(t),
		}
		o := newTestOrchestrator(t, parts, Config{})

		reply := o.Handle(ctx, Request{Query: "giá iphone 15", SessionID: "s1"})
		assert.Equal(t, testApology, reply.Content)
		assert.Empty(t, parts.completer.prompts)
	})

	t.Run("embedding failure", func(t *testing.T) {
		parts := &orchestratorParts{
			retriever: &fakeRetriever{},
			completer: &fakeCompleter{reply: "unused"},
			cache:     &fakeCache{},
			memory:    newTestMemory(t),
		}
		o, err := New(
			newKeywordClassifier(t),
			passthroughRewriter{},
			&fakeEmbedder{err: errors.New("embedding down")},
			parts.retriever,
			newGate(t),
			parts.memory,
			parts.cache,
			parts.completer,
			Config{Persona: testPersona, Apology: testApology},
			logging.NewNop(),
		)
		require.NoError(t, err)

		reply := o.Handle(ctx, Request{Query: "giá iphone 15", SessionID: "s1"})
		assert.Equal(t, testApology, reply.Content)
		assert.Zero(t, parts.retriever.calls)
	})
}

func TestHistoryIncludedInPrompt(t *testing.T) {
	ctx := context.Background()
	parts := &orchestratorParts{
		retriever: &fakeRetriever{},
		completer: &fakeCompleter{reply: "Dạ vâng ạ."},
		cache:     &fakeCache{},
		memory:    newTestMemory(t),
	}
	require.NoError(t, parts.memory.Append(ctx, "s1", session.ChatMessage{Role: llm.RoleUser, Content: "xin chào shop"}))
	require.NoError(t, parts.memory.Append(ctx, "s1", session.ChatMessage{Role: llm.RoleAssistant, Content: "Dạ em chào anh/chị ạ"}))

	o := newTestOrchestrator(t, parts, Config{})
	o.Handle(ctx, Request{Query: "bạn còn nhớ mình không", SessionID: "s1"})

	require.Len(t, parts.completer.prompts, 1)
	joined := flatten(parts.completer.prompts[0])
	assert.Contains(t, joined, "xin chào shop")
	assert.Contains(t, joined, "Dạ em chào anh/chị ạ")
}

func TestCacheLookupShortCircuits(t *testing.T) {
	ctx := context.Background()
	parts := &orchestratorParts{
		retriever: &fakeRetriever{results: []retrieval.RankedResult{iphoneResult()}},
		completer: &fakeCompleter{reply: "unused"},
		cache: &fakeCache{
			hasHit: true,
			entry:  cache.Entry{OriginalText: "giá iphone 15", Response: "Dạ, 20000000 đồng ạ."},
		},
		memory: newTestMemory(t),
	}
	o := newTestOrchestrator(t, parts, Config{CacheEnabled: true, CacheLookupEnabled: true})

	reply := o.Handle(ctx, Request{Query: "giá iphone 15", SessionID: "s1", Cacheable: true})

	assert.Equal(t, "Dạ, 20000000 đồng ạ.", reply.Content)
	assert.Empty(t, parts.completer.prompts)
	assert.Zero(t, parts.retriever.calls)

	// The served exchange is still recorded.
	history, err := parts.memory.Read(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCacheLookupDisabledByDefault(t *testing.T) {
	ctx := context.Background()
	parts := &orchestratorParts{
		retriever: &fakeRetriever{results: []retrieval.RankedResult{iphoneResult()}},
		completer: &fakeCompleter{reply: "Dạ ạ."},
		cache:     &fakeCache{hasHit: true, entry: cache.Entry{Response: "cached"}},
		memory:    newTestMemory(t),
	}
	o := newTestOrchestrator(t, parts, Config{CacheEnabled: true})

	reply := o.Handle(ctx, Request{Query: "giá iphone 15", SessionID: "s1"})

	assert.Equal(t, "Dạ ạ.", reply.Content)
	assert.Zero(t, parts.cache.lookups)
}

func TestNewValidation(t *testing.T) {
	memory := newTestMemory(t)
	completer := &fakeCompleter{}
	gate := newGate(t)
	classifier := newKeywordClassifier(t)
	embedder := &fakeEmbedder{vector: []float32{1}}
	retriever := &fakeRetriever{}
	cfg := Config{Persona: testPersona, Apology: testApology}

	_, err := New(nil, nil, embedder, retriever, gate, memory, nil, completer, cfg, nil)
	assert.Error(t, err)

	_, err = New(classifier, nil, embedder, retriever, gate, memory, nil, completer, Config{Apology: testApology}, nil)
	assert.Error(t, err)

	_, err = New(classifier, nil, embedder, retriever, gate, memory, nil, completer,
		Config{Persona: testPersona, Apology: testApology, CacheEnabled: true}, nil)
	assert.Error(t, err)
}

func flatten(messages []llm.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
