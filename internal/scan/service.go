// Package scan ties the QR decoder to session bookkeeping: it decodes
// submitted payloads, suppresses duplicate scans, and persists the
// resulting records.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/almashari/qrfatoora/internal/models"
	"github.com/almashari/qrfatoora/internal/zatca"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound means the target session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotInvoice means the payload did not decode to a complete
	// invoice. Distinct from storage failures: the scan was understood
	// and rejected, nothing went wrong.
	ErrNotInvoice = errors.New("payload is not a recognized invoice QR")
	// ErrDuplicateScan means the same payload was already recorded in
	// the session, or was re-submitted within the cooldown window.
	ErrDuplicateScan = errors.New("payload already scanned in this session")
)

// SessionStore is the session persistence the service depends on.
type SessionStore interface {
	Create(ctx context.Context, session *models.ScanSession) error
	GetByID(ctx context.Context, id string) (*models.ScanSession, error)
	List(ctx context.Context) ([]*models.ScanSession, error)
}

// RecordStore is the record persistence the service depends on.
type RecordStore interface {
	Create(ctx context.Context, record *models.ScanRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.ScanRecord, error)
	ExistsByPayloadHash(ctx context.Context, sessionID, payloadHash string) (bool, error)
}

// ManualInvoice carries the fields of a hand-entered invoice.
type ManualInvoice struct {
	InvoiceNumber string   `json:"invoice_number"`
	SellerName    string   `json:"seller_name" binding:"required"`
	VATNumber     string   `json:"vat_number" binding:"required"`
	InvoiceDate   string   `json:"invoice_date"`
	VATAmount     *float64 `json:"vat_amount"`
	TotalAmount   float64  `json:"total_amount" binding:"required"`
}

// Service handles scan submission for sessions
type Service struct {
	sessions SessionStore
	records  RecordStore
	cooldown time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

// NewService creates a new scan service
func NewService(sessions SessionStore, records RecordStore, cooldown time.Duration, logger *zap.Logger) *Service {
	return &Service{
		sessions: sessions,
		records:  records,
		cooldown: cooldown,
		logger:   logger,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// PayloadHash derives the duplicate-detection key for a raw payload.
// Keyed off the scanned text itself, never off the synthesized invoice
// number, so re-scans of the same paper invoice always collide.
func PayloadHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateSession creates a new scan session
func (s *Service) CreateSession(ctx context.Context, name string) (*models.ScanSession, error) {
	session := &models.ScanSession{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("Scan session created",
		zap.String("session_id", session.ID),
		zap.String("name", session.Name))
	return session, nil
}

// Submit decodes a scanned payload and records it in the session.
func (s *Service) Submit(ctx context.Context, sessionID, raw string) (*models.ScanRecord, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	inv := zatca.ParseInvoiceQR(raw)
	if inv == nil {
		s.logger.Debug("Scan rejected", zap.String("session_id", sessionID))
		return nil, ErrNotInvoice
	}

	hash := PayloadHash(raw)

	// Cheap in-memory gate first: camera loops resubmit the same code
	// many times per second.
	if s.withinCooldown(sessionID, hash) {
		return nil, ErrDuplicateScan
	}

	exists, err := s.records.ExistsByPayloadHash(ctx, sessionID, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateScan
	}

	record := models.NewScanRecord(sessionID, inv, hash)
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist scan: %w", err)
	}

	s.logger.Info("Invoice scanned",
		zap.String("session_id", sessionID),
		zap.String("seller", record.SellerName),
		zap.Float64("total", record.TotalAmount))
	return record, nil
}

// SubmitManual records a hand-entered invoice in the session. Manual
// entries skip decoding and duplicate detection; the operator is trusted
// to have checked the paper invoice.
func (s *Service) SubmitManual(ctx context.Context, sessionID string, input ManualInvoice) (*models.ScanRecord, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if input.SellerName == "" || input.VATNumber == "" || input.TotalAmount == 0 {
		return nil, ErrNotInvoice
	}

	invoiceNumber := input.InvoiceNumber
	if invoiceNumber == "" {
		invoiceNumber = zatca.NewInvoiceNumber()
	}

	record := &models.ScanRecord{
		SessionID:     sessionID,
		InvoiceNumber: invoiceNumber,
		SellerName:    input.SellerName,
		VATNumber:     input.VATNumber,
		InvoiceDate:   input.InvoiceDate,
		VATAmount:     input.VATAmount,
		TotalAmount:   input.TotalAmount,
		Status:        models.StatusManual,
		ManualEntry:   true,
	}
	if input.VATAmount != nil {
		subtotal := input.TotalAmount - *input.VATAmount
		record.Subtotal = &subtotal
	}

	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist manual entry: %w", err)
	}

	s.logger.Info("Manual invoice recorded",
		zap.String("session_id", sessionID),
		zap.String("seller", record.SellerName))
	return record, nil
}

// withinCooldown reports and refreshes the last-seen time for a payload.
func (s *Service) withinCooldown(sessionID, hash string) bool {
	if s.cooldown <= 0 {
		return false
	}

	key := sessionID + ":" + hash
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if seen, ok := s.lastSeen[key]; ok && now.Sub(seen) < s.cooldown {
		return true
	}
	s.lastSeen[key] = now
	return false
}
