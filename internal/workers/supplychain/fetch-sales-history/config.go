// internal/workers/supplychain/fetch-sales-history/config.go
package fetchsaleshistory

import "time"

type Config struct {
	SalesWindowDays int
	ForecastDays    int
	MovingAvgWindow int
	Timeout         time.Duration
}

func LoadConfig() *Config {
	return &Config{
		SalesWindowDays: 90,
		ForecastDays:    14,
		MovingAvgWindow: 7,
		Timeout:         30 * time.Second,
	}
}
