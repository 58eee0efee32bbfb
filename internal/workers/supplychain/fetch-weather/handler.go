// internal/workers/supplychain/fetch-weather/handler.go
package fetchweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerr "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
)

const (
	TaskType = "fetch-weather"
)

var (
	ErrWeatherAPIFailed  = errors.New("WEATHER_API_FAILED")
	ErrWeatherAPITimeout = errors.New("WEATHER_API_TIMEOUT")
)

type Handler struct {
	config *Config
	client *http.Client
	errors *commonerr.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	workerLog := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: &http.Client{},
		errors: commonerr.NewErrorHandler(workerLog),
		logger: workerLog,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(context.Background(), client, job,
			commonerr.NewWeatherAPIFailedError(fmt.Errorf("parse input: %w", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, h.asStandardError(err))
		return
	}

	h.completeJob(client, job, output)
}

type onecallResponse struct {
	Daily []struct {
		Dt   int64 `json:"dt"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		FeelsLike struct {
			Day float64 `json:"day"`
		} `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pop       float64 `json:"pop"`
		WindSpeed float64 `json:"wind_speed"`
		Clouds    int     `json:"clouds"`
		Weather   []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"daily"`
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	days := input.ForecastDays
	if days <= 0 {
		days = h.config.ForecastDays
	}

	forecast, err := h.fetchForecast(ctx)
	if err != nil {
		return nil, err
	}
	if len(forecast.Daily) == 0 {
		return nil, fmt.Errorf("%w: no daily forecast data in response", ErrWeatherAPIFailed)
	}
	if days > len(forecast.Daily) {
		days = len(forecast.Daily)
	}

	output := &Output{Days: make([]DayForecast, 0, days)}
	sum := 0.0
	for _, raw := range forecast.Daily[:days] {
		when := time.Unix(raw.Dt, 0).UTC()
		day := DayForecast{
			Date:                     when.Format("2006-01-02"),
			DayOfWeek:                when.Format("Monday"),
			MaxTempF:                 round1(raw.Temp.Max),
			MinTempF:                 round1(raw.Temp.Min),
			FeelsLikeDayF:            round1(raw.FeelsLike.Day),
			Humidity:                 raw.Humidity,
			PrecipitationProbability: raw.Pop * 100,
			WindSpeedMPH:             round1(raw.WindSpeed),
			CloudCoverage:            raw.Clouds,
		}
		if len(raw.Weather) > 0 {
			day.WeatherCondition = raw.Weather[0].Main
			day.WeatherDescription = raw.Weather[0].Description
		}
		day.DemandFactor = demandFactor(day)
		sum += day.DemandFactor
		output.Days = append(output.Days, day)
	}

	output.AverageDemandFactor = round2(sum / float64(len(output.Days)))
	output.OverallImpact = ImpactDecrease
	if output.AverageDemandFactor > 1.0 {
		output.OverallImpact = ImpactIncrease
	}

	h.logger.Info("weather demand forecast built", map[string]interface{}{
		"days":                len(output.Days),
		"averageDemandFactor": output.AverageDemandFactor,
		"overallImpact":       output.OverallImpact,
	})

	return output, nil
}

func (h *Handler) fetchForecast(ctx context.Context) (*onecallResponse, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.4f", h.config.Latitude))
	params.Set("lon", fmt.Sprintf("%.4f", h.config.Longitude))
	params.Set("exclude", "minutely,hourly,current,alerts")
	params.Set("units", "imperial")
	params.Set("appid", h.config.APIKey)
	endpoint := h.config.BaseURL + "/data/3.0/onecall?" + params.Encode()

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrWeatherAPITimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWeatherAPIFailed, err)
		}

		resp, lastErr = h.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, ErrWeatherAPITimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrWeatherAPITimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrWeatherAPIFailed, lastErr)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrWeatherAPIFailed)
	}
	defer resp.Body.Close()

	var forecast onecallResponse
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrWeatherAPIFailed, err)
	}
	return &forecast, nil
}

// demandFactor scores a day's ice cream demand relative to normal. Heat
// scales demand up, cold and rain suppress it, clear warm days get a boost.
// The result is clamped to [0.3, 3.0].
func demandFactor(day DayForecast) float64 {
	factor := 1.0

	if day.MaxTempF > 85 {
		factor *= 1.0 + (day.MaxTempF-85)*0.05
	} else if day.MaxTempF < 60 {
		factor *= 0.7
	}

	// High humidity makes warm days feel hotter.
	if day.Humidity > 70 && day.MaxTempF > 75 {
		factor *= 1.2
	}

	if day.PrecipitationProbability > 50 {
		factor *= 0.6
	} else if day.PrecipitationProbability > 25 {
		factor *= 0.8
	}

	if day.WeatherCondition == "Clear" && day.MaxTempF > 75 {
		factor *= 1.3
	}

	return round2(math.Max(0.3, math.Min(3.0, factor)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (h *Handler) asStandardError(err error) error {
	switch {
	case errors.Is(err, ErrWeatherAPITimeout):
		return commonerr.NewWeatherAPITimeoutError()
	case errors.Is(err, ErrWeatherAPIFailed):
		return commonerr.NewWeatherAPIFailedError(err)
	}
	return err
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
