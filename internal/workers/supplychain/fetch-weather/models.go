// internal/workers/supplychain/fetch-weather/models.go
package fetchweather

type Input struct {
	ForecastDays int `json:"forecastDays,omitempty"`
}

type DayForecast struct {
	Date                     string  `json:"date"`
	DayOfWeek                string  `json:"dayOfWeek"`
	MaxTempF                 float64 `json:"maxTempF"`
	MinTempF                 float64 `json:"minTempF"`
	FeelsLikeDayF            float64 `json:"feelsLikeDayF"`
	Humidity                 int     `json:"humidity"`
	PrecipitationProbability float64 `json:"precipitationProbability"` // percent
	WeatherCondition         string  `json:"weatherCondition"`
	WeatherDescription       string  `json:"weatherDescription"`
	WindSpeedMPH             float64 `json:"windSpeedMph"`
	CloudCoverage            int     `json:"cloudCoverage"`
	DemandFactor             float64 `json:"demandFactor"`
}

type Output struct {
	Days                []DayForecast `json:"days"`
	AverageDemandFactor float64       `json:"averageDemandFactor"`
	OverallImpact       string        `json:"overallImpact"`
}

const (
	ImpactIncrease = "increase"
	ImpactDecrease = "decrease"
)
