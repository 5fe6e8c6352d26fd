package veryfi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

func TestRecognizeSubmitsEncodedPayload(t *testing.T) {
	var captured documentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v8/partner/documents" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Client-Id") != "cid" {
			t.Fatalf("missing client id header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"ocr_text":"Invoice text","vendor":{"name":"Acme Inc."},"tax":850,"subtotal":10000}`))
	}))
	defer server.Close()

	client := New(server.URL, "cid", "user", "key", time.Second)
	doc := domain.NewDocument([]byte("pdf-bytes"))
	resp, err := client.Recognize(context.Background(), doc)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(captured.FileData)
	if err != nil {
		t.Fatalf("decode file data: %v", err)
	}
	if string(raw) != "pdf-bytes" {
		t.Fatalf("unexpected payload %q", raw)
	}
	if resp.OCRText != "Invoice text" {
		t.Fatalf("unexpected ocr text %q", resp.OCRText)
	}
	if resp.Structured == nil || resp.Structured.VendorName != "Acme Inc." {
		t.Fatalf("expected structured vendor, got %+v", resp.Structured)
	}
	if resp.Structured.Tax != 850 || resp.Structured.Subtotal != 10000 {
		t.Fatalf("expected structured amounts, got %+v", resp.Structured)
	}
}

func TestRecognizeOmitsEmptyStructuredBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ocr_text":"just text"}`))
	}))
	defer server.Close()

	client := New(server.URL, "cid", "user", "key", time.Second)
	resp, err := client.Recognize(context.Background(), domain.NewDocument([]byte("x")))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if resp.Structured != nil {
		t.Fatalf("expected nil structured block, got %+v", resp.Structured)
	}
}

func TestRecognizeReturnsTypedStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service warming up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "cid", "user", "key", time.Second)
	_, err := client.Recognize(context.Background(), domain.NewDocument([]byte("x")))
	if err == nil {
		t.Fatalf("expected error")
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status code %d", statusErr.StatusCode)
	}
	if class := ClassifyError(err); !class.Retryable || !class.RecordFailure {
		t.Fatalf("503 must classify transient, got %+v", class)
	}
}

func TestRecognizePostsDocumentsPathOnce(t *testing.T) {
	var seenPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ocr_text":"just text"}`))
	}))
	defer server.Close()

	// Trailing slash on the configured host must not double up either.
	client := New(server.URL+"/", "cid", "user", "key", time.Second)
	if _, err := client.Recognize(context.Background(), domain.NewDocument([]byte("x"))); err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if seenPath != "/api/v8/partner/documents" {
		t.Fatalf("unexpected request path %q", seenPath)
	}
}

func TestClassifyErrorTransientOnClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := New(server.URL, "cid", "user", "key", 30*time.Millisecond)
	_, err := client.Recognize(context.Background(), domain.NewDocument([]byte("x")))
	if err == nil {
		t.Fatalf("expected timeout error")
	}

	class := ClassifyError(err)
	if !class.Retryable {
		t.Fatalf("client timeout must retry, got %+v for %v", class, err)
	}
	if !class.RecordFailure {
		t.Fatalf("client timeout must count against the breaker, got %+v for %v", class, err)
	}
}

func TestClassifyErrorCallerCancellationIsNotTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ocr_text":"just text"}`))
	}))
	defer server.Close()

	client := New(server.URL, "cid", "user", "key", time.Second)
	_, err := client.Recognize(ctx, domain.NewDocument([]byte("x")))
	if err == nil {
		t.Fatalf("expected cancellation error")
	}

	class := ClassifyError(err)
	if class.Retryable {
		t.Fatalf("caller cancellation must not retry, got %+v for %v", class, err)
	}
	if class.RecordFailure {
		t.Fatalf("caller cancellation must not trip the breaker, got %+v for %v", class, err)
	}
}

func TestClassifyErrorPermanentOn4xx(t *testing.T) {
	err := &HTTPStatusError{Operation: "process", StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized"}
	class := ClassifyError(err)
	if class.Retryable {
		t.Fatalf("auth error must not retry")
	}
	if class.RecordFailure {
		t.Fatalf("auth error must not trip the breaker")
	}
}
