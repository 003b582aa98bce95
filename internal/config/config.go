package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                  int     `env:"PORT" envDefault:"8080"`
	DatabaseURL           string  `env:"DATABASE_URL,required"`
	RedisURL              string  `env:"REDIS_URL,required"`
	GeminiAPIKey          string  `env:"GEMINI_API_KEY,required"`
	ChatModel             string  `env:"CHAT_MODEL" envDefault:"gemini-1.5-flash"`
	EmbeddingModel        string  `env:"EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	WADBPath              string  `env:"WA_DB_PATH" envDefault:"wa-session.db"`
	ScoreThreshold        float64 `env:"SCORE_THRESHOLD" envDefault:"0.5"`
	RetrievalTopK         int     `env:"RETRIEVAL_TOP_K" envDefault:"3"`
	ReconnectDelaySeconds int     `env:"RECONNECT_DELAY_SECONDS" envDefault:"2"`
	RemoteTimeoutSeconds  int     `env:"REMOTE_TIMEOUT_SECONDS" envDefault:"8"`
	ContextCap            int     `env:"CONTEXT_CAP" envDefault:"1024"`
	ContextTTLMinutes     int     `env:"CONTEXT_TTL_MINUTES" envDefault:"120"`
	RateLimitPerMin       int     `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	LogLevel              string  `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSeconds) * time.Second
}

func (c *Config) ContextTTL() time.Duration {
	return time.Duration(c.ContextTTLMinutes) * time.Minute
}

func (c *Config) Validate() error {
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("SCORE_THRESHOLD must be between 0 and 1, got %v", c.ScoreThreshold)
	}
	if c.RetrievalTopK < 1 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be at least 1, got %d", c.RetrievalTopK)
	}
	if c.ReconnectDelaySeconds < 0 {
		return fmt.Errorf("RECONNECT_DELAY_SECONDS must not be negative, got %d", c.ReconnectDelaySeconds)
	}
	if c.RemoteTimeoutSeconds < 1 {
		return fmt.Errorf("REMOTE_TIMEOUT_SECONDS must be at least 1, got %d", c.RemoteTimeoutSeconds)
	}
	if c.ContextCap < 1 {
		return fmt.Errorf("CONTEXT_CAP must be at least 1, got %d", c.ContextCap)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
