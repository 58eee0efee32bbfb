// internal/workers/screening/screen-stocks/config.go
package screenstocks

import "time"

type Config struct {
	DefaultLimit int
	AuditEnabled bool
	AuditIndex   string
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DefaultLimit: 3,
		AuditIndex:   "screening-results",
		Timeout:      30 * time.Second,
	}
}
