// internal/workers/supplychain/fetch-sales-history/handler.go
package fetchsaleshistory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerr "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
)

const (
	TaskType = "fetch-sales-history"
)

var (
	ErrProductNotFound = errors.New("PRODUCT_NOT_FOUND")
	ErrQueryFailed     = errors.New("QUERY_EXECUTION_FAILED")
)

const productQuery = `
	SELECT p.product_code, p.product_name, p.category, p.unit_cost, p.selling_price,
	       COALESCE(i.current_stock, 0), COALESCE(i.reorder_point, 0), COALESCE(i.safety_stock, 0)
	FROM products p
	LEFT JOIN inventory i ON p.product_code = i.product_code
	WHERE p.product_code = $1`

const supplierQuery = `
	SELECT s.supplier_id, s.supplier_name, sp.lead_time_days, sp.min_order_quantity,
	       sp.cost_per_unit, sp.reliability_score
	FROM suppliers s
	JOIN supplier_products sp ON s.supplier_id = sp.supplier_id
	WHERE sp.product_code = $1
	ORDER BY sp.cost_per_unit ASC, sp.lead_time_days ASC`

const dailySalesQuery = `
	SELECT date, SUM(quantity)
	FROM sales
	WHERE product_code = $1 AND date >= CURRENT_DATE - $2 * INTERVAL '1 day'
	GROUP BY date
	ORDER BY date ASC`

type Handler struct {
	config *Config
	db     *sql.DB
	errors *commonerr.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	workerLog := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		db:     db,
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
			commonerr.NewQueryExecutionFailedError("parse_input", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, h.asStandardError(err, input.ProductCode))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	forecastDays := input.ForecastDays
	if forecastDays <= 0 {
		forecastDays = h.config.ForecastDays
	}

	product, err := h.fetchProduct(ctx, input.ProductCode)
	if err != nil {
		return nil, err
	}

	suppliers, err := h.fetchSuppliers(ctx, input.ProductCode)
	if err != nil {
		return nil, err
	}
	if len(suppliers) == 0 {
		h.logger.Warn("no suppliers on record", map[string]interface{}{
			"productCode": input.ProductCode,
		})
	}

	dailyTotals, err := h.fetchDailySales(ctx, input.ProductCode)
	if err != nil {
		return nil, err
	}

	summary := summarize(dailyTotals, h.config.SalesWindowDays)
	forecast := movingAverageForecast(dailyTotals, h.config.MovingAvgWindow, forecastDays)

	h.logger.Info("sales history assembled", map[string]interface{}{
		"productCode":     input.ProductCode,
		"salesDays":       len(dailyTotals),
		"suppliers":       len(suppliers),
		"predictedDemand": forecast.TotalPredictedDemand,
	})

	return &Output{
		ProductCode:      input.ProductCode,
		Product:          product,
		Suppliers:        suppliers,
		SalesSummary:     summary,
		BaselineForecast: forecast,
		ForecastDays:     forecastDays,
	}, nil
}

func (h *Handler) fetchProduct(ctx context.Context, productCode string) (Product, error) {
	var p Product
	err := h.db.QueryRowContext(ctx, productQuery, productCode).Scan(
		&p.ProductCode, &p.ProductName, &p.Category, &p.UnitCost, &p.SellingPrice,
		&p.CurrentInventory, &p.ReorderPoint, &p.SafetyStock,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productCode)
	}
	if err != nil {
		return Product{}, fmt.Errorf("%w: product lookup: %v", ErrQueryFailed, err)
	}
	return p, nil
}

func (h *Handler) fetchSuppliers(ctx context.Context, productCode string) ([]Supplier, error) {
	rows, err := h.db.QueryContext(ctx, supplierQuery, productCode)
	if err != nil {
		return nil, fmt.Errorf("%w: supplier lookup: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.SupplierID, &s.SupplierName, &s.LeadTimeDays,
			&s.MinOrderQuantity, &s.CostPerUnit, &s.ReliabilityScore); err != nil {
			return nil, fmt.Errorf("%w: supplier scan: %v", ErrQueryFailed, err)
		}
		suppliers = append(suppliers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: supplier rows: %v", ErrQueryFailed, err)
	}
	return suppliers, nil
}

type dailyTotal struct {
	date     time.Time
	quantity int
}

func (h *Handler) fetchDailySales(ctx context.Context, productCode string) ([]dailyTotal, error) {
	rows, err := h.db.QueryContext(ctx, dailySalesQuery, productCode, h.config.SalesWindowDays)
	if err != nil {
		return nil, fmt.Errorf("%w: sales lookup: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var totals []dailyTotal
	for rows.Next() {
		var d dailyTotal
		if err := rows.Scan(&d.date, &d.quantity); err != nil {
			return nil, fmt.Errorf("%w: sales scan: %v", ErrQueryFailed, err)
		}
		totals = append(totals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: sales rows: %v", ErrQueryFailed, err)
	}
	return totals, nil
}

func summarize(totals []dailyTotal, windowDays int) SalesSummary {
	summary := SalesSummary{WindowDays: windowDays}
	for _, d := range totals {
		summary.TotalUnits += d.quantity
		if d.quantity > summary.MaxDaily {
			summary.MaxDaily = d.quantity
		}
	}
	if len(totals) > 0 {
		summary.AverageDaily = round2(float64(summary.TotalUnits) / float64(len(totals)))
	}
	return summary
}

// movingAverageForecast projects the mean of the most recent window days
// flat over the forecast horizon, starting tomorrow. A product with no sales
// history forecasts zero demand rather than failing the pipeline.
func movingAverageForecast(totals []dailyTotal, window, forecastDays int) Forecast {
	avg := 0.0
	if len(totals) > 0 {
		start := len(totals) - window
		if start < 0 {
			start = 0
		}
		recent := totals[start:]
		sum := 0
		for _, d := range recent {
			sum += d.quantity
		}
		avg = round2(float64(sum) / float64(len(recent)))
	}

	forecast := Forecast{
		Days:      make([]ForecastDay, 0, forecastDays),
		ModelUsed: "moving_average",
	}
	tomorrow := time.Now().AddDate(0, 0, 1)
	for i := 0; i < forecastDays; i++ {
		forecast.Days = append(forecast.Days, ForecastDay{
			Date:            tomorrow.AddDate(0, 0, i).Format("2006-01-02"),
			PredictedDemand: avg,
		})
		forecast.TotalPredictedDemand += avg
	}
	forecast.TotalPredictedDemand = round2(forecast.TotalPredictedDemand)
	return forecast
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (h *Handler) asStandardError(err error, productCode string) error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return commonerr.NewProductNotFoundError(productCode)
	case errors.Is(err, ErrQueryFailed):
		return commonerr.NewQueryExecutionFailedError("sales_history", err)
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
