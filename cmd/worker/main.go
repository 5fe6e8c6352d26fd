package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/invoice-pipeline/internal/bootstrap"
	"github.com/kirillkom/invoice-pipeline/internal/config"
	"github.com/kirillkom/invoice-pipeline/internal/observability/logging"
	"github.com/kirillkom/invoice-pipeline/internal/observability/metrics"
)

const serviceName = "invoice-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Recognizer.SetObserver(workerMetrics.ProviderObserver(serviceName))

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeInvoiceReceived(ctx, func(handlerCtx context.Context, invoiceID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		workerMetrics.StartInvoice()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, invoiceID)

		// CreatedAt is set once at upload, so fetching the invoice after
		// processing still yields the original enqueue time.
		outcome := "unknown"
		if inv, lookupErr := app.Repo.GetByID(processCtx, invoiceID); lookupErr == nil {
			outcome = string(inv.Status)
			workerMetrics.ObserveQueueLag(serviceName, start.Sub(inv.CreatedAt))
		} else if processErr != nil {
			outcome = "failed"
		}
		workerMetrics.FinishInvoice(serviceName, outcome, time.Since(start))

		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
