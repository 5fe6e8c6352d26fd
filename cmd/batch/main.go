package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/invoice-pipeline/internal/config"
	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
	"github.com/kirillkom/invoice-pipeline/internal/export"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/extraction"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/recognizer"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/recognizer/localpdf"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/respcache"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/validate"
	"github.com/kirillkom/invoice-pipeline/internal/observability/logging"
)

const serviceName = "invoice-batch"

// batch extracts every PDF in a directory offline, writing one JSON file per
// extracted invoice and an XLSX run report with per-file outcomes.
func main() {
	dir := flag.String("dir", ".", "directory of PDF invoices to process")
	outDir := flag.String("out", "./batch-out", "directory for extraction JSON files")
	reportPath := flag.String("report", "./batch-out/report.xlsx", "path of the XLSX run report")
	flag.Parse()

	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	ctx := context.Background()
	recognizerSvc := newOfflineRecognizer(ctx, cfg)
	validator := validate.NewValidator(validate.Config{
		MinTextLength:        cfg.MinOCRLength,
		RequiredKeywordCount: cfg.RequiredKeywordCount,
		MinPricePatterns:     cfg.MinPricePatterns,
	})
	extractor := extraction.NewHybrid()

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("read input directory: %v", err)
	}

	var outcomes []export.FileOutcome
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		outcome := processFile(ctx, filepath.Join(*dir, entry.Name()), recognizerSvc, validator, extractor)
		if outcome.Status == domain.StatusExtracted {
			if err := writeResultJSON(*outDir, entry.Name(), outcome.Result); err != nil {
				slog.Error("write_result_json_failed", "file", entry.Name(), "error", err)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	report, err := export.BuildRunReport(outcomes)
	if err != nil {
		log.Fatalf("build run report: %v", err)
	}
	if err := os.WriteFile(*reportPath, report, 0o644); err != nil {
		log.Fatalf("write run report: %v", err)
	}

	extracted, excluded, failed := tally(outcomes)
	slog.Info("batch_run_complete",
		"files", len(outcomes),
		"extracted", extracted,
		"excluded", excluded,
		"failed", failed,
		"report", *reportPath,
	)
}

func newOfflineRecognizer(ctx context.Context, cfg config.Config) *recognizer.Service {
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		RetryBaseBackoff: time.Duration(cfg.RetryBaseBackoff) * time.Millisecond,
		RetryMaxBackoff:  time.Duration(cfg.RetryMaxBackoff) * time.Millisecond,
	})
	cache := respcache.New(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	cache.StartSweeper(ctx, 5*time.Minute)

	// Offline PDF parsing fails permanently or not at all.
	classifier := func(error) resilience.ErrorClassification {
		return resilience.ErrorClassification{}
	}
	return recognizer.NewService(localpdf.New(), cache, executor, classifier)
}

func processFile(
	ctx context.Context,
	path string,
	recognizerSvc *recognizer.Service,
	validator *validate.Validator,
	extractor *extraction.Hybrid,
) export.FileOutcome {
	filename := filepath.Base(path)
	outcome := export.FileOutcome{Filename: filename}

	payload, err := os.ReadFile(path)
	if err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Detail = err.Error()
		return outcome
	}

	response, err := recognizerSvc.Recognize(ctx, domain.NewDocument(payload))
	if err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Detail = err.Error()
		return outcome
	}

	verdict := validator.Validate(response.OCRText)
	if !verdict.Accepted {
		outcome.Status = domain.StatusExcluded
		outcome.Detail = verdict.Reason
		slog.Info("invoice_excluded", "file", filename, "reason", verdict.Reason)
		return outcome
	}

	result, _, err := extractor.Extract(ctx, response.OCRText, response.Structured)
	if err != nil {
		outcome.Status = domain.StatusFailed
		outcome.Detail = err.Error()
		return outcome
	}

	outcome.Status = domain.StatusExtracted
	outcome.Result = result
	return outcome
}

func writeResultJSON(outDir, filename string, result *domain.ExtractionResult) error {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	target := filepath.Join(outDir, base+".json")
	return os.WriteFile(target, raw, 0o644)
}

func tally(outcomes []export.FileOutcome) (extracted, excluded, failed int) {
	for _, outcome := range outcomes {
		switch outcome.Status {
		case domain.StatusExtracted:
			extracted++
		case domain.StatusExcluded:
			excluded++
		case domain.StatusFailed:
			failed++
		}
	}
	return extracted, excluded, failed
}
