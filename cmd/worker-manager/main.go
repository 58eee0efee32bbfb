// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"assistant-workers/internal/common/aws"
	"assistant-workers/internal/common/cache"
	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/observability"
	"assistant-workers/internal/marketdata"

	// Stock Screening Workers (3)
	er "assistant-workers/internal/workers/screening/explain-results"
	pi "assistant-workers/internal/workers/screening/parse-intent"
	ss "assistant-workers/internal/workers/screening/screen-stocks"

	// Supply Chain Workers (4)
	fsh "assistant-workers/internal/workers/supplychain/fetch-sales-history"
	fw "assistant-workers/internal/workers/supplychain/fetch-weather"
	nd "assistant-workers/internal/workers/supplychain/notify-decision"
	rr "assistant-workers/internal/workers/supplychain/recommend-reorder"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zeebeClient := camundaClient.GetClient()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Shared Services ---
	intentCache := cache.NewRedisStore(redis, "screening")
	populationCache := cache.NewRedisStore(redis, "marketdata")

	constituents := marketdata.NewConstituentStore(pg)
	quotes := marketdata.NewQuoteClient(marketdata.QuoteClientConfig{
		BaseURL:     cfg.APIs.MarketData.BaseURL,
		APIKey:      cfg.APIs.MarketData.APIKey,
		Timeout:     config.GetDuration(cfg.APIs.MarketData.Timeout),
		Concurrency: cfg.Screening.FetchConcurrency,
		RatePerSec:  cfg.Screening.FetchRatePerSec,
	}, log)
	populationProvider := marketdata.NewCachedProvider(
		marketdata.NewFetchProvider(constituents, quotes),
		populationCache,
		time.Duration(cfg.Screening.PopulationTTL)*time.Second,
		log,
	)

	sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("failed to create SES client", zap.Error(err))
	}
	snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("failed to create SNS client", zap.Error(err))
	}

	zapLog.Info("All shared services initialized")

	// --- Register Stock Screening Workers (3) ---

	// Parse Intent
	if taskType := pi.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := pi.LoadConfig()
		wcfg.LLMBaseURL = cfg.APIs.LLM.BaseURL
		wcfg.APIKey = cfg.APIs.LLM.APIKey
		wcfg.Model = cfg.APIs.LLM.Model
		if cfg.APIs.LLM.Timeout > 0 {
			wcfg.Timeout = config.GetDuration(cfg.APIs.LLM.Timeout)
		}
		if cfg.Screening.IntentCacheTTL > 0 {
			wcfg.CacheTTL = time.Duration(cfg.Screening.IntentCacheTTL) * time.Second
		}
		handler, err := pi.NewHandler(wcfg, intentCache, log)
		if err != nil {
			zapLog.Fatal("failed to create parse-intent handler", zap.Error(err))
		}
		startWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, zapLog)
	}

	// Screen Stocks
	if taskType := ss.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := ss.LoadConfig()
		if cfg.Screening.DefaultLimit > 0 {
			wcfg.DefaultLimit = cfg.Screening.DefaultLimit
		}
		wcfg.AuditEnabled = cfg.Screening.AuditIndexEnabled
		if cfg.Screening.AuditIndexName != "" {
			wcfg.AuditIndex = cfg.Screening.AuditIndexName
		}
		handler := ss.NewHandler(wcfg, populationProvider, esClient, log)
		startWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, zapLog)
	}

	// Explain Results
	if taskType := er.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := er.LoadConfig()
		wcfg.LLMBaseURL = cfg.APIs.LLM.BaseURL
		wcfg.APIKey = cfg.APIs.LLM.APIKey
		wcfg.Model = cfg.APIs.LLM.Model
		if cfg.APIs.LLM.Timeout > 0 {
			wcfg.Timeout = config.GetDuration(cfg.APIs.LLM.Timeout)
		}
		handler := er.NewHandler(wcfg, log)
		startWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, zapLog)
	}

	// --- Register Supply Chain Workers (4) ---

	// Fetch Sales History
	if taskType := fsh.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := fsh.LoadConfig()
		if cfg.SupplyChain.SalesWindowDays > 0 {
			wcfg.SalesWindowDays = cfg.SupplyChain.SalesWindowDays
		}
		if cfg.SupplyChain.ForecastDays > 0 {
			wcfg.ForecastDays = cfg.SupplyChain.ForecastDays
		}
		if cfg.SupplyChain.MovingAvgWindow > 0 {
			wcfg.MovingAvgWindow = cfg.SupplyChain.MovingAvgWindow
		}
		handler := fsh.NewHandler(wcfg, pg.GetDB(), log)
		startWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, zapLog)
	}

	// Fetch Weather
	if taskType := fw.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := fw.LoadConfig()
		wcfg.BaseURL = cfg.APIs.Weather.BaseURL
		wcfg.APIKey = cfg.APIs.Weather.APIKey
		if cfg.APIs.Weather.Timeout > 0 {
			wcfg.Timeout = config.GetDuration(cfg.APIs.Weather.Timeout)
		}
		if cfg.SupplyChain.ForecastDays > 0 {
			wcfg.ForecastDays = cfg.SupplyChain.ForecastDays
		}
		handler := fw.NewHandler(wcfg, log)
		startWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, zapLog)
	}

	// Recommend Reorder
	if taskType := rr.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := rr.LoadConfig()
		wcfg.LLMBaseURL = cfg.APIs.LLM.BaseURL
		wcfg.APIKey = cfg.APIs.LLM.APIKey
		wcfg.Model = cfg.APIs.LLM.Model
		handler, err := rr.NewHandler(wcfg, log)
		if err != nil {
			zapLog.Fatal("failed to create recommend-reorder handler", zap.Error(err))
		}
		startWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, zapLog)
	}

	// Notify Decision
	if taskType := nd.TaskType; config.IsWorkerEnabled(cfg, taskType) {
		wcfg := nd.LoadConfig()
		wcfg.EmailEnabled = cfg.Notifications.Email.Enabled
		wcfg.FromEmail = cfg.Notifications.Email.FromEmail
		wcfg.SMSEnabled = cfg.Notifications.SMS.Enabled
		wcfg.SMSSenderID = cfg.Notifications.SMS.DefaultSMSSenderID
		wcfg.AWSRegion = cfg.Notifications.AWS.Region
		handler := nd.NewHandler(wcfg, sesClient, snsClient, log)
		startWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, zapLog)
	}

	zapLog.Info("All 7 workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", readinessHandler([]readinessCheck{
			{name: "zeebe", check: camundaClient.HealthCheck},
			{name: "postgres", check: pg.Ping},
		}))
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

// readinessHandler reports ready only while every dependency check passes,
// so the orchestrator stops routing work to a pod that lost its broker or
// database connection.
func readinessHandler(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		body := map[string]string{
			"time": time.Now().Format(time.RFC3339),
		}
		ready := true
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				body[c.name] = "unavailable"
				ready = false
			} else {
				body[c.name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if ready {
			body["status"] = "ready"
			w.WriteHeader(http.StatusOK)
		} else {
			body["status"] = "unavailable"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(body)
	}
}

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return
	}

	client.NewJobWorker().
		JobType(taskType).
		Handler(func(jobClient worker.JobClient, job entities.Job) {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
			start := time.Now()
			handlerFunc(jobClient, job)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
		}).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
}
