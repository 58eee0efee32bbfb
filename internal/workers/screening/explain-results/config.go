// internal/workers/screening/explain-results/config.go
package explainresults

import "time"

type Config struct {
	LLMBaseURL  string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		MaxTokens:   500,
		Temperature: 0.3,
	}
}
