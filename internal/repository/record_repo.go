package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/almashari/qrfatoora/internal/models"
	"go.uber.org/zap"
)

// RecordRepository persists decoded scan records
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new scan record and fills in its generated ID
func (r *RecordRepository) Create(ctx context.Context, record *models.ScanRecord) error {
	query := `
		INSERT INTO scan_records (
			session_id, invoice_number, seller_name, vat_number, invoice_date,
			subtotal, vat_amount, total_amount, payload_hash, status,
			manual_entry, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		record.SessionID,
		record.InvoiceNumber,
		record.SellerName,
		record.VATNumber,
		nullString(record.InvoiceDate),
		record.Subtotal,
		record.VATAmount,
		record.TotalAmount,
		nullString(record.PayloadHash),
		record.Status,
		record.ManualEntry,
		record.Notes,
	)
	if err != nil {
		r.logger.Error("Failed to create scan record", zap.Error(err))
		return fmt.Errorf("failed to create scan record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// GetByID retrieves a record by ID, returning nil when not found
func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*models.ScanRecord, error) {
	query := selectRecordColumns + ` WHERE id = ?`

	record, err := r.scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get scan record", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get scan record: %w", err)
	}
	return record, nil
}

// ListBySession returns a session's records in scan order
func (r *RecordRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.ScanRecord, error) {
	query := selectRecordColumns + ` WHERE session_id = ? ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		r.logger.Error("Failed to list scan records", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list scan records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ScanRecord, 0)
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ExistsByPayloadHash reports whether a session already holds a record
// decoded from the same raw payload
func (r *RecordRepository) ExistsByPayloadHash(ctx context.Context, sessionID, payloadHash string) (bool, error) {
	query := `SELECT COUNT(1) FROM scan_records WHERE session_id = ? AND payload_hash = ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, sessionID, payloadHash).Scan(&count); err != nil {
		r.logger.Error("Failed to check payload hash", zap.Error(err))
		return false, fmt.Errorf("failed to check payload hash: %w", err)
	}
	return count > 0, nil
}

// UpdateNotes sets the free-text notes on a record
func (r *RecordRepository) UpdateNotes(ctx context.Context, id int64, notes string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE scan_records SET notes = ? WHERE id = ?`, notes, id)
	if err != nil {
		r.logger.Error("Failed to update notes", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update notes: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a record from its session
func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scan_records WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete scan record", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete scan record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const selectRecordColumns = `
	SELECT id, session_id, invoice_number, seller_name, vat_number, invoice_date,
		subtotal, vat_amount, total_amount, payload_hash, status,
		manual_entry, notes, created_at
	FROM scan_records
`

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RecordRepository) scanRecord(row rowScanner) (*models.ScanRecord, error) {
	var record models.ScanRecord
	var invoiceDate, payloadHash sql.NullString

	err := row.Scan(
		&record.ID,
		&record.SessionID,
		&record.InvoiceNumber,
		&record.SellerName,
		&record.VATNumber,
		&invoiceDate,
		&record.Subtotal,
		&record.VATAmount,
		&record.TotalAmount,
		&payloadHash,
		&record.Status,
		&record.ManualEntry,
		&record.Notes,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.InvoiceDate = invoiceDate.String
	record.PayloadHash = payloadHash.String
	return &record, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
