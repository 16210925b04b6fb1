package profile

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Primary LLM provider configuration (OpenAI-compatible protocol)
	// All providers (anthropic, openai, deepseek, siliconflow, ollama) use the same config
	LLMProvider  string // Provider identifier: anthropic, openai, deepseek, siliconflow, ollama
	LLMAPIKey    string // Primary LLM API key
	LLMBaseURL   string // Primary LLM base URL (optional, has default per provider)
	LLMModel     string // High-quality model name for medium/complex requests
	LLMModelFast string // Fast model name for simple requests
	LLMTimeout   int    // LLM request timeout in seconds (default: 30)

	// Secondary LLM provider for racing (optional).
	// When an API key is configured, the router races both providers and
	// uses whichever responds first.
	RaceProvider  string
	RaceAPIKey    string
	RaceBaseURL   string
	RaceModel     string
	RaceModelFast string

	// Embedding configuration (semantic cache)
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingBaseURL  string

	// Cache configuration
	CacheTTL             time.Duration
	CacheMaxSize         int
	SemanticSimThreshold float64
	SemanticCacheEnabled bool

	// Retry configuration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Per-stage token budgets
	MaxTokensCapture  int
	MaxTokensDetect   int
	MaxTokensGenerate int

	// Reconcile thresholds
	ReconcileConfidenceThreshold float64
	ReconcileNewSlotsThreshold   int
	ReconcileNewQuotesThreshold  int

	// Complexity estimation thresholds
	ComplexityWordCountSimple        int
	ComplexityWordCountComplex       int
	ComplexityContextRichnessSimple  int
	ComplexityContextRichnessComplex int

	// Response generation
	ResponseMaxSentences   int
	ResponseMaxQuotes      int
	ResponseQuotesInPrompt int

	// Detection fallback values
	DefaultSituation  string
	DefaultConfidence float64
	DefaultStage      string

	// Server
	Mode      string
	Addr      string
	Port      int
	ConfigDir string
	Version   string
}

// Provider default configurations for LLM.
// Used when the base URL or model is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL   string
	Model     string
	ModelFast string
}{
	"anthropic": {
		BaseURL:   "https://api.anthropic.com/v1",
		Model:     "claude-sonnet-4-20250514",
		ModelFast: "claude-sonnet-4-20250514",
	},
	"openai": {
		BaseURL:   "https://api.openai.com/v1",
		Model:     "gpt-4o",
		ModelFast: "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL:   "https://api.deepseek.com",
		Model:     "deepseek-chat",
		ModelFast: "deepseek-chat",
	},
	"siliconflow": {
		BaseURL:   "https://api.siliconflow.cn/v1",
		Model:     "Qwen/Qwen2.5-72B-Instruct",
		ModelFast: "Qwen/Qwen2.5-7B-Instruct",
	},
	"ollama": {
		BaseURL:   "http://localhost:11434",
		Model:     "llama3.1",
		ModelFast: "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the primary LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

// IsRaceEnabled returns true if a secondary racing provider is configured.
func (p *Profile) IsRaceEnabled() bool {
	return p.RaceAPIKey != ""
}

// IsEmbeddingEnabled returns true if the embedding provider is configured.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.SemanticCacheEnabled && p.EmbeddingAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("invalid integer environment variable, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		slog.Warn("invalid float environment variable, using default", "key", key, "default", defaultValue)
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// Primary LLM configuration
	p.LLMProvider = getEnvOrDefault("SALESENSE_LLM_PROVIDER", "anthropic")
	p.LLMAPIKey = getEnvOrDefault("SALESENSE_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("SALESENSE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("SALESENSE_LLM_MODEL", "")
	p.LLMModelFast = getEnvOrDefault("SALESENSE_LLM_MODEL_FAST", "")
	p.LLMTimeout = getEnvOrDefaultInt("SALESENSE_LLM_TIMEOUT_SECONDS", 30)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("unknown LLM provider, using default: anthropic", "provider", p.LLMProvider)
		p.LLMProvider = "anthropic"
	}
	applyProviderDefaults(p.LLMProvider, &p.LLMBaseURL, &p.LLMModel, &p.LLMModelFast)

	// Secondary racing provider
	p.RaceProvider = getEnvOrDefault("SALESENSE_RACE_PROVIDER", "openai")
	p.RaceAPIKey = getEnvOrDefault("SALESENSE_RACE_API_KEY", "")
	p.RaceBaseURL = getEnvOrDefault("SALESENSE_RACE_BASE_URL", "")
	p.RaceModel = getEnvOrDefault("SALESENSE_RACE_MODEL", "")
	p.RaceModelFast = getEnvOrDefault("SALESENSE_RACE_MODEL_FAST", "")
	if _, ok := llmProviderDefaults[p.RaceProvider]; !ok {
		slog.Warn("unknown race provider, disabling racing", "provider", p.RaceProvider)
		p.RaceAPIKey = ""
		p.RaceProvider = "openai"
	}
	applyProviderDefaults(p.RaceProvider, &p.RaceBaseURL, &p.RaceModel, &p.RaceModelFast)

	// Embedding configuration (semantic cache shares the race provider key by default)
	p.EmbeddingProvider = getEnvOrDefault("SALESENSE_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("SALESENSE_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("SALESENSE_EMBEDDING_API_KEY", p.RaceAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("SALESENSE_EMBEDDING_BASE_URL", "")

	// Cache configuration
	p.CacheTTL = time.Duration(getEnvOrDefaultInt("SALESENSE_CACHE_TTL_SECONDS", 3600)) * time.Second
	p.CacheMaxSize = getEnvOrDefaultInt("SALESENSE_CACHE_MAX_SIZE", 1000)
	p.SemanticSimThreshold = getEnvOrDefaultFloat("SALESENSE_SEMANTIC_SIMILARITY_THRESHOLD", 0.92)
	p.SemanticCacheEnabled = getEnvOrDefault("SALESENSE_SEMANTIC_CACHE_ENABLED", "true") == "true"

	// Retry configuration
	p.RetryMaxAttempts = getEnvOrDefaultInt("SALESENSE_RETRY_MAX_ATTEMPTS", 3)
	p.RetryBaseDelay = time.Duration(getEnvOrDefaultFloat("SALESENSE_RETRY_BASE_DELAY_SECONDS", 1.0) * float64(time.Second))
	p.RetryMaxDelay = time.Duration(getEnvOrDefaultFloat("SALESENSE_RETRY_MAX_DELAY_SECONDS", 10.0) * float64(time.Second))

	// Per-stage token budgets
	p.MaxTokensCapture = getEnvOrDefaultInt("SALESENSE_MAX_TOKENS_CAPTURE", 500)
	p.MaxTokensDetect = getEnvOrDefaultInt("SALESENSE_MAX_TOKENS_DETECT", 200)
	p.MaxTokensGenerate = getEnvOrDefaultInt("SALESENSE_MAX_TOKENS_GENERATE", 150)

	// Reconcile thresholds
	p.ReconcileConfidenceThreshold = getEnvOrDefaultFloat("SALESENSE_RECONCILE_CONFIDENCE_THRESHOLD", 0.7)
	p.ReconcileNewSlotsThreshold = getEnvOrDefaultInt("SALESENSE_RECONCILE_NEW_SLOTS_THRESHOLD", 3)
	p.ReconcileNewQuotesThreshold = getEnvOrDefaultInt("SALESENSE_RECONCILE_NEW_QUOTES_THRESHOLD", 1)

	// Complexity estimation thresholds
	p.ComplexityWordCountSimple = getEnvOrDefaultInt("SALESENSE_COMPLEXITY_WORD_COUNT_SIMPLE", 15)
	p.ComplexityWordCountComplex = getEnvOrDefaultInt("SALESENSE_COMPLEXITY_WORD_COUNT_COMPLEX", 60)
	p.ComplexityContextRichnessSimple = getEnvOrDefaultInt("SALESENSE_COMPLEXITY_CONTEXT_RICHNESS_SIMPLE", 2)
	p.ComplexityContextRichnessComplex = getEnvOrDefaultInt("SALESENSE_COMPLEXITY_CONTEXT_RICHNESS_COMPLEX", 8)

	// Response generation
	p.ResponseMaxSentences = getEnvOrDefaultInt("SALESENSE_RESPONSE_MAX_SENTENCES", 2)
	p.ResponseMaxQuotes = getEnvOrDefaultInt("SALESENSE_RESPONSE_MAX_QUOTES", 5)
	p.ResponseQuotesInPrompt = getEnvOrDefaultInt("SALESENSE_RESPONSE_QUOTES_IN_PROMPT", 3)

	// Detection fallback values
	p.DefaultSituation = getEnvOrDefault("SALESENSE_DEFAULT_SITUATION", "just_browsing")
	p.DefaultConfidence = getEnvOrDefaultFloat("SALESENSE_DEFAULT_CONFIDENCE", 0.3)
	p.DefaultStage = getEnvOrDefault("SALESENSE_DEFAULT_STAGE", "discovery")
}

// applyProviderDefaults fills base URL and model names from the provider table
// when they are not explicitly configured.
func applyProviderDefaults(provider string, baseURL, model, modelFast *string) {
	defaults, ok := llmProviderDefaults[provider]
	if !ok {
		return
	}
	if *baseURL == "" {
		*baseURL = defaults.BaseURL
	}
	if *model == "" {
		*model = defaults.Model
	}
	if *modelFast == "" {
		*modelFast = defaults.ModelFast
	}
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.LLMAPIKey == "" {
		return errors.New("SALESENSE_LLM_API_KEY environment variable is required")
	}

	if p.CacheMaxSize <= 0 {
		return errors.Errorf("invalid cache max size %d", p.CacheMaxSize)
	}

	if p.SemanticSimThreshold <= 0 || p.SemanticSimThreshold > 1 {
		return errors.Errorf("similarity threshold must be in (0, 1], got %f", p.SemanticSimThreshold)
	}

	if p.RetryMaxAttempts <= 0 {
		return errors.Errorf("retry max attempts must be positive, got %d", p.RetryMaxAttempts)
	}

	if p.ConfigDir == "" {
		p.ConfigDir = "./config"
	}

	return nil
}
