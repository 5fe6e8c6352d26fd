package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type InvoiceStatus string

const (
	StatusReceived   InvoiceStatus = "received"
	StatusProcessing InvoiceStatus = "processing"
	StatusExtracted  InvoiceStatus = "extracted"
	StatusExcluded   InvoiceStatus = "excluded"
	StatusFailed     InvoiceStatus = "failed"
)

// Invoice is the persisted state of one uploaded document as it moves
// through the pipeline: received -> processing -> extracted | excluded | failed.
type Invoice struct {
	ID              string            `json:"id"`
	Filename        string            `json:"filename"`
	MimeType        string            `json:"mime_type"`
	StoragePath     string            `json:"storage_path"`
	Fingerprint     string            `json:"fingerprint"`
	Status          InvoiceStatus     `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	Error           string            `json:"error,omitempty"`
	Result          *ExtractionResult `json:"result,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Document is the immutable byte payload handed to the recognition provider.
// Identity is the fingerprint of its content.
type Document struct {
	Fingerprint string
	Bytes       []byte
}

func NewDocument(payload []byte) Document {
	return Document{
		Fingerprint: FingerprintBytes(payload),
		Bytes:       payload,
	}
}

// FingerprintBytes derives the content-addressed cache key for a payload.
func FingerprintBytes(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
