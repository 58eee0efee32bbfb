// internal/workers/screening/screen-stocks/handler.go
package screenstocks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"assistant-workers/internal/common/database"
	commonerr "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/marketdata"
	"assistant-workers/internal/screening"
)

const (
	TaskType = "screen-stocks"
)

// PopulationProvider is the slice of the market-data layer this worker
// needs. Satisfied by marketdata.CachedProvider.
type PopulationProvider interface {
	FetchPopulation(ctx context.Context, sector string) ([]screening.Stock, error)
	Medians(ctx context.Context, sector string, requested []screening.Metric) (map[screening.Metric]float64, error)
}

type Handler struct {
	config   *Config
	provider PopulationProvider
	es       *database.ElasticsearchClient
	errors   *commonerr.ErrorHandler
	logger   logger.Logger
}

// NewHandler wires the screening engine to its collaborators. es may be nil
// when audit indexing is disabled.
func NewHandler(config *Config, provider PopulationProvider, es *database.ElasticsearchClient, log logger.Logger) *Handler {
	workerLog := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		provider: provider,
		es:       es,
		errors:   commonerr.NewErrorHandler(workerLog),
		logger:   workerLog,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(context.Background(), client, job, h.asStandardError(err))
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	intent := input.Intent

	population, err := h.provider.FetchPopulation(ctx, intent.Sector)
	if err != nil {
		return nil, err
	}

	filtered := screening.ApplyFilters(population, intent.Filters)
	sortMetric, _ := intent.Filters.SortMetric()

	ranked, err := screening.RankAndLimit(filtered, sortMetric, intent.Limit, h.config.DefaultLimit)
	if err != nil {
		return nil, err
	}

	var medians map[screening.Metric]float64
	if len(ranked) > 0 {
		medians, err = h.provider.Medians(ctx, intent.Sector, screening.DisplayMetrics(intent))
		if err != nil {
			return nil, err
		}
	}

	result := screening.AssembleWithMedians(ranked, medians, len(population), intent)

	h.logger.Info("screening complete", map[string]interface{}{
		"sessionId":    input.SessionID,
		"sector":       intent.Sector,
		"totalFound":   result.TotalFound,
		"afterFilters": result.AfterFilters,
		"success":      result.Success,
	})

	h.auditResult(ctx, input.SessionID, intent, result)

	return &Output{SessionID: input.SessionID, Screening: result}, nil
}

// auditResult indexes the completed screen for later analysis. Failures are
// logged and swallowed; auditing never affects the job outcome.
func (h *Handler) auditResult(ctx context.Context, sessionID string, intent screening.Intent, result screening.ResultSet) {
	if !h.config.AuditEnabled || h.es == nil {
		return
	}

	doc := auditDocument{
		SessionID:    sessionID,
		Sector:       intent.Sector,
		Filters:      intent.Filters,
		TotalFound:   result.TotalFound,
		AfterFilters: result.AfterFilters,
		Success:      result.Success,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.es.IndexDocument(ctx, h.config.AuditIndex, sessionID, doc); err != nil {
		h.logger.Warn("audit indexing failed", map[string]interface{}{
			"sessionId": sessionID,
			"index":     h.config.AuditIndex,
			"error":     err.Error(),
		})
	}
}

func (h *Handler) asStandardError(err error) error {
	var invalidKey *screening.InvalidFilterKeyError
	var invalidLimit *screening.InvalidLimitError
	var unavailable *marketdata.PopulationUnavailableError
	switch {
	case errors.As(err, &invalidKey):
		return commonerr.NewInvalidFilterKeyError(invalidKey.Key)
	case errors.As(err, &invalidLimit):
		return commonerr.NewInvalidLimitError(invalidLimit.Limit)
	case errors.As(err, &unavailable):
		return commonerr.NewPopulationUnavailableError(unavailable.Sector, unavailable.Err)
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
