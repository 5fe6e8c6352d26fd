package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadIncludesResilienceDefaults(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "")
	t.Setenv("RETRY_BASE_BACKOFF_MS", "")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "")
	t.Setenv("BREAKER_RESET_TIMEOUT_SECONDS", "")
	t.Setenv("CACHE_TTL_SECONDS", "")

	cfg := Load()
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected default retry attempts 3, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryBaseBackoff != 200 {
		t.Fatalf("expected default base backoff 200ms, got %d", cfg.RetryBaseBackoff)
	}
	if cfg.BreakerThreshold != 5 {
		t.Fatalf("expected default breaker threshold 5, got %d", cfg.BreakerThreshold)
	}
	if cfg.BreakerResetSecs != 60 {
		t.Fatalf("expected default breaker reset 60s, got %d", cfg.BreakerResetSecs)
	}
	if cfg.CacheTTLSeconds != 3600 {
		t.Fatalf("expected default cache ttl 3600s, got %d", cfg.CacheTTLSeconds)
	}
}

func TestLoadParsesValidationOverrides(t *testing.T) {
	t.Setenv("MIN_OCR_LENGTH", "250")
	t.Setenv("REQUIRED_KEYWORD_COUNT", "3")
	t.Setenv("MIN_PRICE_PATTERNS", "2")

	cfg := Load()
	if cfg.MinOCRLength != 250 {
		t.Fatalf("expected min ocr length 250, got %d", cfg.MinOCRLength)
	}
	if cfg.RequiredKeywordCount != 3 {
		t.Fatalf("expected required keyword count 3, got %d", cfg.RequiredKeywordCount)
	}
	if cfg.MinPricePatterns != 2 {
		t.Fatalf("expected min price patterns 2, got %d", cfg.MinPricePatterns)
	}
}

func TestLoadProviderURLDefaultIsBareHost(t *testing.T) {
	t.Setenv("PROVIDER_URL", "")

	cfg := Load()
	// The veryfi client appends /api/v8/partner/documents itself; a default
	// that already carries the path would double it on the wire.
	if cfg.ProviderURL != "https://api.veryfi.com" {
		t.Fatalf("expected bare provider host, got %q", cfg.ProviderURL)
	}
	if strings.Contains(cfg.ProviderURL, "/api/") {
		t.Fatalf("provider url default must not embed the documents path: %q", cfg.ProviderURL)
	}
}

func TestLoadFallsBackOnMalformedInt(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "not-a-number")

	cfg := Load()
	if cfg.RetryMaxAttempts != 3 {
		t.Fatalf("expected fallback retry attempts 3, got %d", cfg.RetryMaxAttempts)
	}
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
api_port: "8181"
provider:
  mode: localpdf
  timeout_seconds: 15
resilience:
  retry_max_attempts: 7
validation:
  min_ocr_length: 50
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("INVOICE_CONFIG_FILE", path)
	t.Setenv("API_PORT", "8080")

	cfg := Load()
	if cfg.APIPort != "8181" {
		t.Fatalf("expected file override for api port, got %q", cfg.APIPort)
	}
	if cfg.ProviderMode != "localpdf" {
		t.Fatalf("expected provider mode localpdf, got %q", cfg.ProviderMode)
	}
	if cfg.ProviderTimeout != 15 {
		t.Fatalf("expected provider timeout 15, got %d", cfg.ProviderTimeout)
	}
	if cfg.RetryMaxAttempts != 7 {
		t.Fatalf("expected retry attempts 7, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.MinOCRLength != 50 {
		t.Fatalf("expected min ocr length 50, got %d", cfg.MinOCRLength)
	}
	if cfg.NATSSubject != "invoices.process" {
		t.Fatalf("expected untouched nats subject default, got %q", cfg.NATSSubject)
	}
}

func TestLoadIgnoresMissingConfigFile(t *testing.T) {
	t.Setenv("INVOICE_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("expected env defaults when file is absent, got %q", cfg.APIPort)
	}
}
