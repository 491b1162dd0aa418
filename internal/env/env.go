package env

import (
	"fmt"
	"strings"
	"time"

	envparse "github.com/caarlos0/env/v10"
)

// Config is parsed once at startup and passed to every component that needs it.
type Config struct {
	PublicAddr string `env:"PUBLIC_ADDR" envDefault:":82"`
	ClientAddr string `env:"CLIENT_ADDR" envDefault:":81"`
	WSAddr     string `env:"WS_ADDR" envDefault:":83"`

	AWSRegion        string `env:"AWS_REGION,notEmpty"`
	AWSID            string `env:"AWS_ID"`
	AWSSecret        string `env:"AWS_SECRET"`
	AWSToken         string `env:"AWS_TOKEN"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT"`

	UserSecretKey string        `env:"USER_SECRET,notEmpty"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"12h"`

	ChatRedisURL  string `env:"CHAT_REDIS_URL,notEmpty"`
	ChatRedisPass string `env:"CHAT_REDIS_PASS"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	QueueSize    int `env:"QUEUE_SIZE" envDefault:"200"`
	QueueWorkers int `env:"QUEUE_WORKERS" envDefault:"64"`

	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH" envDefault:"2000"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`

	Providers ProviderConfig
	Tiers     TierConfig
}

type ProviderConfig struct {
	OllamaBaseURL string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaTimeout time.Duration `env:"OLLAMA_TIMEOUT" envDefault:"60s"`

	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAITimeout time.Duration `env:"OPENAI_TIMEOUT" envDefault:"30s"`

	GeminiBaseURL string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	GeminiTimeout time.Duration `env:"GEMINI_TIMEOUT" envDefault:"45s"`

	AnthropicBaseURL   string        `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	AnthropicAPIKey    string        `env:"ANTHROPIC_API_KEY"`
	AnthropicVersion   string        `env:"ANTHROPIC_VERSION" envDefault:"2023-06-01"`
	AnthropicMaxTokens int           `env:"ANTHROPIC_MAX_TOKENS" envDefault:"1024"`
	AnthropicTimeout   time.Duration `env:"ANTHROPIC_TIMEOUT" envDefault:"60s"`
}

// TierConfig names the backends behind the premium and budget plan tiers.
type TierConfig struct {
	PremiumProvider  string `env:"PREMIUM_PROVIDER" envDefault:"openai"`
	PremiumHighModel string `env:"PREMIUM_HIGH_MODEL" envDefault:"gpt-4o"`
	PremiumMidModel  string `env:"PREMIUM_MID_MODEL" envDefault:"gpt-4o-mini"`
	BudgetProvider   string `env:"BUDGET_PROVIDER" envDefault:"gemini"`
	BudgetModel      string `env:"BUDGET_MODEL" envDefault:"gemini-2.0-flash-lite"`
}

var knownProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"gemini":    true,
	"anthropic": true,
}

func Load() (*Config, error) {
	var cfg Config
	if err := envparse.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	for _, name := range []string{c.Tiers.PremiumProvider, c.Tiers.BudgetProvider} {
		if !knownProviders[strings.ToLower(strings.TrimSpace(name))] {
			return fmt.Errorf("env: unknown tier provider %q", name)
		}
	}
	if c.QueueWorkers < 1 {
		return fmt.Errorf("env: QUEUE_WORKERS must be positive")
	}
	if c.MaxMessageLength < 1 {
		return fmt.Errorf("env: MAX_MESSAGE_LENGTH must be positive")
	}
	return nil
}
