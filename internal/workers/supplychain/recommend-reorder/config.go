// internal/workers/supplychain/recommend-reorder/config.go
package recommendreorder

import "time"

type Config struct {
	LLMBaseURL  string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     45 * time.Second,
		MaxRetries:  2,
		Temperature: 0.1,
	}
}
