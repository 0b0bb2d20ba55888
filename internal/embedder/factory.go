package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string  // hash, openai, jina, or http for any OpenAI-compatible server
	Model     string  // Overrides the provider default
	BaseURL   string  // Required for http, optional override for openai/jina
	APIKey    string  // Falls back to the provider's environment variable
	Dimension int     // Required for http, optional override otherwise
	RateLimit float64 // Requests per second for HTTP providers
	Timeout   time.Duration
	Normalize bool // Scale HTTP provider vectors to unit length
}

// New creates an embedder with explicit configuration. An empty provider
// selects the hash placeholder; "auto" defers to DetectProvider.
func New(cfg Config) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == ProviderAuto {
		provider = DetectProvider(cfg)
	}
	switch provider {
	case "", ProviderHash:
		return NewHashProvider(cfg.Dimension), nil
	case ProviderOpenAI:
		return newHTTP(cfg, ProviderOpenAI, DefaultOpenAIBaseURL, DefaultOpenAIModel, OpenAIDimension, EnvOpenAIAPIKey)
	case ProviderJina:
		return newHTTP(cfg, ProviderJina, DefaultJinaBaseURL, DefaultJinaModel, JinaDimension, EnvJinaAPIKey)
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: http provider requires a base URL", ErrInvalidInput)
		}
		return newHTTP(cfg, "http", "", "", 0, "")
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnknownProvider, cfg.Provider)
	}
}

func newHTTP(cfg Config, name, baseURL, model string, dimension int, keyEnv string) (Embedder, error) {
	hc := HTTPConfig{
		Name:      name,
		BaseURL:   firstNonEmpty(cfg.BaseURL, baseURL),
		APIKey:    cfg.APIKey,
		Model:     firstNonEmpty(cfg.Model, model),
		Dimension: dimension,
		RateLimit: cfg.RateLimit,
		Timeout:   cfg.Timeout,
		Normalize: cfg.Normalize,
	}
	if cfg.Dimension > 0 {
		hc.Dimension = cfg.Dimension
	}
	if hc.APIKey == "" && keyEnv != "" {
		hc.APIKey = os.Getenv(keyEnv)
		if hc.APIKey == "" {
			return nil, fmt.Errorf("%w: %s not set", ErrMissingAPIKey, keyEnv)
		}
	}
	return NewHTTPProvider(hc)
}

// ProviderAuto picks a provider from the API keys present in the environment
const ProviderAuto = "auto"

// DetectProvider resolves "auto" (or an empty provider) to jina or openai
// when their API key is set, and to hash otherwise
func DetectProvider(cfg Config) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p != "" && p != ProviderAuto {
		return p
	}
	if cfg.APIKey != "" && cfg.BaseURL != "" {
		return "http"
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderHash
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
