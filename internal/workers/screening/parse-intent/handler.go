// internal/workers/screening/parse-intent/handler.go
package parseintent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"assistant-workers/internal/common/cache"
	commonerr "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/screening"
)

const (
	TaskType = "parse-intent"
)

var (
	ErrIntentParsingFailed = errors.New("INTENT_PARSING_FAILED")
	ErrIntentAPITimeout    = errors.New("INTENT_API_TIMEOUT")
)

// intentSchema describes the shape the intent API must return. Filter values
// must be numeric thresholds; filter keys are validated separately because
// their vocabulary is closed.
const intentSchema = `{
	"type": "object",
	"properties": {
		"intent": {"type": "string"},
		"sector": {"type": "string"},
		"limit": {"type": "integer"},
		"metrics": {"type": "array", "items": {"type": "string"}},
		"filters": {"type": "object", "additionalProperties": {"type": "number"}}
	}
}`

type Handler struct {
	config *Config
	client *http.Client
	store  cache.Store
	schema *gojsonschema.Schema
	errors *commonerr.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store cache.Store, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(intentSchema))
	if err != nil {
		return nil, fmt.Errorf("compile intent schema: %w", err)
	}

	workerLog := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		store:  store,
		schema: schema,
		errors: commonerr.NewErrorHandler(workerLog),
		logger: workerLog,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(context.Background(), client, job,
			commonerr.NewIntentParsingFailedError(fmt.Errorf("parse input: %w", err)))
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
	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	raw, err := h.parseQuery(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	validation, err := h.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil || !validation.Valid() {
		// The model produced something we cannot trust as an intent. Ask the
		// user to rephrase instead of failing the process.
		h.logger.Warn("intent response failed schema validation", map[string]interface{}{
			"sessionId": sessionID,
		})
		return &Output{
			SessionID: sessionID,
			Outcome:   OutcomeClarification,
			Clarification: &screening.Clarification{
				Message: "Could not interpret the query. Please rephrase your screening request.",
			},
		}, nil
	}

	var parsed screening.Intent
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// A bad filter key is a vocabulary violation, not a transport issue.
		var invalidKey *screening.InvalidFilterKeyError
		if errors.As(err, &invalidKey) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: decode intent: %v", ErrIntentParsingFailed, err)
	}

	resolution := screening.ResolveIntent(parsed, input.PriorIntent)
	if resolution.Clarification != nil {
		h.logger.Info("clarification needed", map[string]interface{}{
			"sessionId": sessionID,
			"message":   resolution.Clarification.Message,
		})
		return &Output{
			SessionID:     sessionID,
			Outcome:       OutcomeClarification,
			Clarification: resolution.Clarification,
		}, nil
	}

	h.logger.Info("intent resolved", map[string]interface{}{
		"sessionId": sessionID,
		"sector":    resolution.Intent.Sector,
		"filters":   len(resolution.Intent.Filters),
	})

	return &Output{
		SessionID: sessionID,
		Outcome:   OutcomeIntent,
		Intent:    resolution.Intent,
	}, nil
}

// parseQuery returns the raw intent JSON for the query, served from the
// response cache when the same query was parsed recently.
func (h *Handler) parseQuery(ctx context.Context, query string) ([]byte, error) {
	cacheKey := "intent:" + query
	if h.store != nil {
		if data, err := h.store.Get(ctx, cacheKey); err == nil {
			return data, nil
		}
	}

	requestBody := map[string]interface{}{
		"query": query,
	}
	if h.config.Model != "" {
		requestBody["model"] = h.config.Model
	}
	body, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrIntentAPITimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", h.config.LLMBaseURL+"/api/ai/parse-intent", bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if h.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
		}

		resp, lastErr = h.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, ErrIntentAPITimeout
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
			return nil, ErrIntentAPITimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, lastErr)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrIntentParsingFailed)
	}
	defer resp.Body.Close()

	var data bytes.Buffer
	if _, err := data.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrIntentParsingFailed, err)
	}
	raw := data.Bytes()

	if h.store != nil {
		if err := h.store.Set(ctx, cacheKey, raw, h.config.CacheTTL); err != nil {
			h.logger.Warn("intent cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return raw, nil
}

func (h *Handler) asStandardError(err error) error {
	var invalidKey *screening.InvalidFilterKeyError
	switch {
	case errors.As(err, &invalidKey):
		return commonerr.NewInvalidFilterKeyError(invalidKey.Key)
	case errors.Is(err, ErrIntentAPITimeout):
		return commonerr.NewIntentAPITimeoutError()
	case errors.Is(err, ErrIntentParsingFailed):
		return commonerr.NewIntentParsingFailedError(err)
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
