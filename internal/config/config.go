// Package config provides configuration for the chatbot server.
//
// Configuration is built once at process start from an optional YAML file
// plus environment variable overrides, validated, and passed by injection
// into each component. No component reads configuration globally.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid configuration. Configuration errors
// are fatal: they are surfaced at startup and never per-request.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete server configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	LLM         LLMConfig         `koanf:"llm"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Router      RouterConfig      `koanf:"router"`
	Chat        ChatConfig        `koanf:"chat"`
	Cache       CacheConfig       `koanf:"cache"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	CORSOrigins     []string `koanf:"cors_origins"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	ServiceName    string   `koanf:"service_name"`
	ServiceVersion string   `koanf:"service_version"`
	Insecure       bool     `koanf:"insecure"`
	MetricsEnabled bool     `koanf:"metrics_enabled"`
	ExportInterval Duration `koanf:"export_interval"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "openai" (OpenAI-compatible
	// HTTP API, includes TEI) or "fastembed" (local ONNX models).
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	// Dimension is the embedding vector size. Must match the model output.
	Dimension int `koanf:"dimension"`
	// RateLimit caps outbound embedding calls per second. 0 disables.
	RateLimit float64 `koanf:"rate_limit"`
	CacheDir  string  `koanf:"cache_dir"`
}

// LLMConfig holds chat-completion service configuration.
type LLMConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  Secret `koanf:"api_key"`
}

// VectorStoreConfig holds vector store configuration.
type VectorStoreConfig struct {
	// Provider selects the store backend: "chromem" (embedded, default)
	// or "qdrant" (external gRPC server, vector-only retrieval).
	Provider    string            `koanf:"provider"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Collections CollectionsConfig `koanf:"collections"`
}

// ChromemConfig holds chromem-go embedded store configuration.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// CollectionsConfig names the three collections the engine uses.
type CollectionsConfig struct {
	Products string `koanf:"products"`
	History  string `koanf:"history"`
	Cache    string `koanf:"cache"`
}

// RetrievalConfig holds hybrid retrieval and relevance gate configuration.
type RetrievalConfig struct {
	// Limit caps candidates per channel and the fused result length.
	Limit int `koanf:"limit"`
	// FusionConstant is the reciprocal-rank smoothing constant c.
	FusionConstant int `koanf:"fusion_constant"`
	// VectorWeight and LexicalWeight are the fusion channel weights.
	VectorWeight  float64 `koanf:"vector_weight"`
	LexicalWeight float64 `koanf:"lexical_weight"`
	// SimilarityThreshold is the relevance gate threshold tau.
	SimilarityThreshold float32 `koanf:"similarity_threshold"`
	// ScoreOrder declares the store's score convention: "similarity"
	// (higher = closer, gate passes score >= tau) or "distance"
	// (lower = closer, gate passes score <= tau).
	ScoreOrder string `koanf:"score_order"`
}

// RouterConfig holds semantic router configuration.
type RouterConfig struct {
	// Strategy selects classification: "keyword" or "embedding".
	Strategy string `koanf:"strategy"`
	// Keywords is the product vocabulary for the keyword strategy.
	Keywords []string `koanf:"keywords"`
	// ScoreFloor is the minimum nearest-sample similarity for the
	// embedding strategy; below it the query routes to chitchat.
	ScoreFloor float32 `koanf:"score_floor"`
}

// ChatConfig holds orchestrator configuration.
type ChatConfig struct {
	// Persona is the fixed system prompt sent on every completion.
	Persona string `koanf:"persona"`
	// MaxHistory bounds the session messages included in prompts and
	// passed to the query rewriter.
	MaxHistory int `koanf:"max_history"`
	// Apology is the fixed user-visible reply when an external service
	// call fails mid-request.
	Apology string `koanf:"apology"`
	// RewriteEnabled toggles standalone-query rewriting on the product
	// path. Disabled, the raw query is used for retrieval.
	RewriteEnabled bool `koanf:"rewrite_enabled"`
}

// CacheConfig holds semantic cache configuration.
type CacheConfig struct {
	Enabled bool `koanf:"enabled"`
	// LookupEnabled turns on the read path: cache hits short-circuit the
	// completion call. Off by default; writes alone are the reference
	// behavior.
	LookupEnabled bool `koanf:"lookup_enabled"`
	// SimilarityThreshold is the minimum similarity for a lookup hit.
	SimilarityThreshold float32 `koanf:"similarity_threshold"`
}

// Default Vietnamese store persona, matching the shop assistant role the
// product catalog serves.
const defaultPersona = "Bạn là chatbot của cửa hàng bán laptop và điện thoại. " +
	"Hãy hỗ trợ khách hàng tìm hiểu sản phẩm và dịch vụ của cửa hàng một cách " +
	"thân thiện và chuyên nghiệp, xưng hô \"em\" với \"anh/chị\". Nếu khách trò " +
	"chuyện về chủ đề không liên quan đến sản phẩm, hãy tham gia vui vẻ."

const defaultApology = "Xin lỗi anh/chị, hệ thống đang gặp sự cố. Anh/chị vui lòng thử lại sau ạ."

// applyDefaults fills unset fields with defaults.
func applyDefaults(c *Config) {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5001
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = Duration(60 * time.Second)
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "chatbotd"
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = "0.1.0"
	}
	if c.Telemetry.ExportInterval == 0 {
		c.Telemetry.ExportInterval = Duration(15 * time.Second)
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 1536
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "chromem"
	}
	if c.VectorStore.Chromem.Path == "" {
		c.VectorStore.Chromem.Path = "~/.config/chatbotd/vectorstore"
	}
	if c.VectorStore.Qdrant.Host == "" {
		c.VectorStore.Qdrant.Host = "localhost"
	}
	if c.VectorStore.Qdrant.Port == 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.VectorStore.Collections.Products == "" {
		c.VectorStore.Collections.Products = "products"
	}
	if c.VectorStore.Collections.History == "" {
		c.VectorStore.Collections.History = "chat_history"
	}
	if c.VectorStore.Collections.Cache == "" {
		c.VectorStore.Collections.Cache = "semantic_cache"
	}
	if c.Retrieval.Limit == 0 {
		c.Retrieval.Limit = 5
	}
	if c.Retrieval.FusionConstant == 0 {
		c.Retrieval.FusionConstant = 60
	}
	if c.Retrieval.VectorWeight == 0 {
		c.Retrieval.VectorWeight = 1
	}
	if c.Retrieval.LexicalWeight == 0 {
		c.Retrieval.LexicalWeight = 1
	}
	if c.Retrieval.SimilarityThreshold == 0 {
		c.Retrieval.SimilarityThreshold = 0.75
	}
	if c.Retrieval.ScoreOrder == "" {
		c.Retrieval.ScoreOrder = "similarity"
	}
	if c.Router.Strategy == "" {
		c.Router.Strategy = "keyword"
	}
	if len(c.Router.Keywords) == 0 {
		c.Router.Keywords = []string{
			"iphone", "samsung", "laptop", "điện thoại", "máy tính", "máy ảnh",
		}
	}
	if c.Router.ScoreFloor == 0 {
		c.Router.ScoreFloor = 0.3
	}
	if c.Chat.Persona == "" {
		c.Chat.Persona = defaultPersona
	}
	if c.Chat.MaxHistory == 0 {
		c.Chat.MaxHistory = 100
	}
	if c.Chat.Apology == "" {
		c.Chat.Apology = defaultApology
	}
	if c.Cache.SimilarityThreshold == 0 {
		c.Cache.SimilarityThreshold = 0.97
	}
}

// Validate validates the configuration. Any error here wraps
// ErrInvalidConfig and should abort startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	if c.Server.RequestTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging format must be json or console, got %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.Embedding.Provider {
	case "openai", "tei", "fastembed":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("%w: embedding rate limit cannot be negative", ErrInvalidConfig)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm model required", ErrInvalidConfig)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("%w: unknown vectorstore provider %q", ErrInvalidConfig, c.VectorStore.Provider)
	}
	if c.Retrieval.Limit <= 0 {
		return fmt.Errorf("%w: retrieval limit must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.FusionConstant <= 0 {
		return fmt.Errorf("%w: fusion constant must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.VectorWeight <= 0 || c.Retrieval.LexicalWeight <= 0 {
		return fmt.Errorf("%w: fusion weights must be positive", ErrInvalidConfig)
	}
	switch c.Retrieval.ScoreOrder {
	case "similarity", "distance":
	default:
		return fmt.Errorf("%w: score_order must be similarity or distance, got %q", ErrInvalidConfig, c.Retrieval.ScoreOrder)
	}
	switch c.Router.Strategy {
	case "keyword", "embedding":
	default:
		return fmt.Errorf("%w: router strategy must be keyword or embedding, got %q", ErrInvalidConfig, c.Router.Strategy)
	}
	if c.Chat.MaxHistory <= 0 {
		return fmt.Errorf("%w: max history must be positive", ErrInvalidConfig)
	}
	if c.Cache.LookupEnabled && !c.Cache.Enabled {
		return fmt.Errorf("%w: cache lookup requires cache enabled", ErrInvalidConfig)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: telemetry endpoint required when enabled", ErrInvalidConfig)
	}
	return nil
}
