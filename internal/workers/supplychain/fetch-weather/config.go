// internal/workers/supplychain/fetch-weather/config.go
package fetchweather

import "time"

type Config struct {
	BaseURL      string
	APIKey       string
	Latitude     float64
	Longitude    float64
	ForecastDays int
	Timeout      time.Duration
	MaxRetries   int
}

func LoadConfig() *Config {
	return &Config{
		// Atlanta distribution region.
		Latitude:     33.7490,
		Longitude:    -84.3880,
		ForecastDays: 8,
		Timeout:      30 * time.Second,
		MaxRetries:   2,
	}
}
