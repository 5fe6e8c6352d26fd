package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *InvoiceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	status TEXT NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	result JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
CREATE INDEX IF NOT EXISTS idx_invoices_fingerprint ON invoices(fingerprint);
CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoices (
	id, filename, mime_type, storage_path, fingerprint, status, rejection_reason, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		inv.ID, inv.Filename, inv.MimeType, inv.StoragePath, inv.Fingerprint,
		string(inv.Status), inv.RejectionReason, inv.Error, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, fingerprint, status, rejection_reason, error_message, result, created_at, updated_at
FROM invoices
WHERE id = $1
`, id)

	var inv domain.Invoice
	var status string
	var resultRaw []byte

	err := row.Scan(
		&inv.ID, &inv.Filename, &inv.MimeType, &inv.StoragePath, &inv.Fingerprint,
		&status, &inv.RejectionReason, &inv.Error, &resultRaw, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInvoiceNotFound, "get invoice", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}

	if len(resultRaw) > 0 {
		var result domain.ExtractionResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal extraction result: %w", err)
		}
		inv.Result = &result
	}
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}

// UpdateStatus records a state transition. The detail lands in
// rejection_reason for excluded invoices and error_message for failed ones.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, detail string) error {
	rejectionReason, errMessage := "", ""
	switch status {
	case domain.StatusExcluded:
		rejectionReason = detail
	case domain.StatusFailed:
		errMessage = detail
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE invoices
SET status = $2, rejection_reason = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), rejectionReason, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvoiceNotFound, "update invoice status", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *InvoiceRepository) SaveResult(ctx context.Context, id string, result *domain.ExtractionResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal extraction result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE invoices
SET result = $2, updated_at = $3
WHERE id = $1
`, id, resultJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save extraction result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save extraction result: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrInvoiceNotFound, "save extraction result", fmt.Errorf("id %s", id))
	}
	return nil
}
