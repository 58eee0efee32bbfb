// internal/workers/supplychain/recommend-reorder/handler.go
package recommendreorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	commonerr "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
)

const (
	TaskType = "recommend-reorder"
)

var (
	ErrLLMTimeout           = errors.New("LLM_TIMEOUT")
	ErrRecommendationFailed = errors.New("LLM_SYNTHESIS_FAILED")
)

// jsonBlockPattern pulls the JSON object out of a fenced model response.
var jsonBlockPattern = regexp.MustCompile(`(?s)json\s*\n?(\{.*?\})`)

// recommendationSchema pins the decision contract the model must satisfy.
const recommendationSchema = `{
	"type": "object",
	"required": ["order_quantity", "supplier_name", "justification", "confidence_score"],
	"properties": {
		"order_quantity": {"type": "integer", "minimum": 0},
		"supplier_name": {"type": "string"},
		"justification": {"type": "string"},
		"confidence_score": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

type Handler struct {
	config *Config
	client *http.Client
	schema *gojsonschema.Schema
	errors *commonerr.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recommendationSchema))
	if err != nil {
		return nil, fmt.Errorf("compile recommendation schema: %w", err)
	}

	workerLog := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: &http.Client{},
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
	prompt := h.buildPrompt(input)

	response, err := h.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	recommendation, err := h.extractRecommendation(response)
	if err != nil {
		return nil, err
	}
	recommendation.ProductCode = input.ProductCode

	h.logger.Info("reorder recommendation made", map[string]interface{}{
		"productCode":   input.ProductCode,
		"orderQuantity": recommendation.OrderQuantity,
		"supplier":      recommendation.SupplierName,
		"confidence":    recommendation.ConfidenceScore,
	})

	return &Output{Recommendation: recommendation}, nil
}

func (h *Handler) buildPrompt(input *Input) string {
	var facts strings.Builder

	fmt.Fprintf(&facts, "PRODUCT: %s\n", input.Product.ProductName)
	fmt.Fprintf(&facts, "CURRENT INVENTORY: %d units\n", input.Product.CurrentInventory)
	fmt.Fprintf(&facts, "REORDER POINT: %d units\n", input.Product.ReorderPoint)
	fmt.Fprintf(&facts, "BASELINE FORECAST: %.0f units over %d days\n",
		input.BaselineForecast.TotalPredictedDemand, input.ForecastDays)
	fmt.Fprintf(&facts, "WEATHER DEMAND FACTOR: %.2fx\n", input.AverageDemandFactor)
	for _, s := range input.Suppliers {
		fmt.Fprintf(&facts, "SUPPLIER: %s, %d days lead time, MOQ of %d units, Cost of $%.2f/unit\n",
			s.SupplierName, s.LeadTimeDays, s.MinOrderQuantity, s.CostPerUnit)
	}

	return fmt.Sprintf(`You are a supply chain commander for an ice cream company. Make an ordering decision based on:

%s
Consider:
1. Projected demand (baseline x weather factor)
2. Current inventory vs reorder point
3. Supplier lead times and minimum order quantities
4. Cost optimization

Respond ONLY with valid JSON in this format:
`+"```json"+`
{
  "order_quantity": 300,
  "supplier_name": "Atlanta Dairy Supply",
  "justification": "...",
  "confidence_score": 0.0 - 1.0
}
`+"```", facts.String())
}

func (h *Handler) generate(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"prompt":      prompt,
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
			return "", fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
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
		return "", fmt.Errorf("%w: %v", ErrRecommendationFailed, lastErr)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: no successful response after retries", ErrRecommendationFailed)
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrRecommendationFailed, err)
	}
	return apiResponse.Response, nil
}

// extractRecommendation finds the JSON block in the model response and
// validates it against the decision schema before trusting any field.
func (h *Handler) extractRecommendation(response string) (Recommendation, error) {
	match := jsonBlockPattern.FindStringSubmatch(response)
	var raw string
	if match != nil {
		raw = match[1]
	} else if trimmed := strings.TrimSpace(response); strings.HasPrefix(trimmed, "{") {
		// Some models skip the fence and answer with bare JSON.
		raw = trimmed
	} else {
		return Recommendation{}, fmt.Errorf("%w: no JSON found in response", ErrRecommendationFailed)
	}

	validation, err := h.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Recommendation{}, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
	}
	if !validation.Valid() {
		issues := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			issues = append(issues, desc.String())
		}
		return Recommendation{}, fmt.Errorf("%w: schema violations: %s",
			ErrRecommendationFailed, strings.Join(issues, "; "))
	}

	var recommendation Recommendation
	if err := json.Unmarshal([]byte(raw), &recommendation); err != nil {
		return Recommendation{}, fmt.Errorf("%w: decode recommendation: %v", ErrRecommendationFailed, err)
	}
	return recommendation, nil
}

func (h *Handler) asStandardError(err error) error {
	switch {
	case errors.Is(err, ErrLLMTimeout):
		return commonerr.NewLLMTimeoutError()
	case errors.Is(err, ErrRecommendationFailed):
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
