// internal/workers/screening/explain-results/handler.go
package explainresults

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerr "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/screening"
)

const (
	TaskType = "explain-results"
)

var (
	ErrLLMTimeout         = errors.New("LLM_TIMEOUT")
	ErrLLMSynthesisFailed = errors.New("LLM_SYNTHESIS_FAILED")
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
			commonerr.NewLLMSynthesisFailedError(fmt.Errorf("parse input: %w", err)))
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
	// A no-match result explains itself; do not spend an LLM call on it.
	if !input.Screening.Success {
		message := input.Screening.Message
		if message == "" {
			message = "No matching stocks found."
		}
		return &Output{SessionID: input.SessionID, Explanation: message}, nil
	}

	prompt := h.buildPrompt(input)
	explanation, err := h.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	h.logger.Info("explanation generated", map[string]interface{}{
		"sessionId": input.SessionID,
		"length":    len(explanation),
	})

	return &Output{SessionID: input.SessionID, Explanation: explanation}, nil
}

func (h *Handler) buildPrompt(input *Input) string {
	var b strings.Builder

	b.WriteString("You are a financial assistant. Explain the following stock screening result in plain language.\n")
	if input.Query != "" {
		fmt.Fprintf(&b, "The user asked: %q\n", input.Query)
	}
	fmt.Fprintf(&b, "Stocks screened: %d, matches shown: %d.\n\n", input.Screening.TotalFound, input.Screening.AfterFilters)

	for _, row := range input.Screening.Rows {
		if row.IsAggregate() {
			fmt.Fprintf(&b, "Sector median: %s\n", formatMetrics(row.Metrics))
			continue
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", row.Symbol, row.Name, formatMetrics(row.Metrics))
	}

	b.WriteString("\nCompare the stocks against the sector median and highlight what stands out. Keep it under 150 words.")
	return b.String()
}

// formatMetrics renders present metrics in the canonical order so prompts
// are deterministic.
func formatMetrics(metrics map[screening.Metric]float64) string {
	parts := make([]string, 0, len(metrics))
	for _, m := range screening.AllMetrics() {
		if v, ok := metrics[m]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.2f", m, v))
		}
	}
	return strings.Join(parts, ", ")
}

func (h *Handler) generate(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"prompt":      prompt,
		"max_tokens":  h.config.MaxTokens,
		"temperature": h.config.Temperature,
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
				return "", ErrLLMTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", h.config.LLMBaseURL+"/api/ai/generate", bytes.NewBuffer(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrLLMSynthesisFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if h.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
		}

		resp, lastErr = h.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return "", ErrLLMTimeout
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
			return "", ErrLLMTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrLLMSynthesisFailed, lastErr)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: no successful response after retries", ErrLLMSynthesisFailed)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrLLMSynthesisFailed, err)
	}
	if strings.TrimSpace(apiResponse.Response) == "" {
		return "", fmt.Errorf("%w: empty response", ErrLLMSynthesisFailed)
	}

	return apiResponse.Response, nil
}

func (h *Handler) asStandardError(err error) error {
	switch {
	case errors.Is(err, ErrLLMTimeout):
		return commonerr.NewLLMTimeoutError()
	case errors.Is(err, ErrLLMSynthesisFailed):
		return commonerr.NewLLMSynthesisFailedError(err)
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
