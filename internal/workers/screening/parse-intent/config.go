// internal/workers/screening/parse-intent/config.go
package parseintent

import "time"

type Config struct {
	LLMBaseURL string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		CacheTTL:   5 * time.Minute,
	}
}
