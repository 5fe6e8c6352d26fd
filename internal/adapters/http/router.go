package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/invoice-pipeline/internal/config"
	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
	"github.com/kirillkom/invoice-pipeline/internal/core/ports"
)

type Router struct {
	cfg      config.Config
	ingestor ports.InvoiceIngestor
	reader   ports.InvoiceReader
}

func NewRouter(cfg config.Config, ingestor ports.InvoiceIngestor, reader ports.InvoiceReader) *Router {
	return &Router{
		cfg:      cfg,
		ingestor: ingestor,
		reader:   reader,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/invoices", rt.uploadInvoice)
	mux.HandleFunc("/v1/invoices/", rt.getInvoice)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIQueueWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	inv, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, inv)
}

// getInvoice serves both /v1/invoices/{id} and /v1/invoices/{id}/result.
// The latter returns only the extraction payload and 409 while the
// invoice has not reached a terminal state.
func (rt *Router) getInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/invoices/")
	id, wantResult := strings.CutSuffix(rest, "/result")
	id = strings.TrimSuffix(id, "/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invoice id is required"})
		return
	}

	inv, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if !wantResult {
		writeJSON(w, http.StatusOK, inv)
		return
	}

	switch inv.Status {
	case domain.StatusExtracted:
		writeJSON(w, http.StatusOK, inv.Result)
	case domain.StatusExcluded:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":           string(inv.Status),
			"rejection_reason": inv.RejectionReason,
		})
	case domain.StatusFailed:
		writeJSON(w, http.StatusOK, map[string]string{
			"status": string(inv.Status),
			"error":  inv.Error,
		})
	default:
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "invoice is not in a terminal state yet",
			"status": string(inv.Status),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
