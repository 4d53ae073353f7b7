package models

import (
	"time"

	"github.com/almashari/qrfatoora/internal/zatca"
)

// Scan record statuses.
const (
	StatusScanned = "scanned"
	StatusManual  = "manual"
)

// ScanSession groups the records captured in one scanning sitting, e.g.
// one VAT filing period or one stack of paper invoices.
type ScanSession struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ScanRecord wraps a decoded invoice with session bookkeeping. PayloadHash
// is the SHA-256 of the raw scanned payload and is what duplicate
// detection keys off; the invoice number is synthesized for most payloads
// and is never used for identity.
type ScanRecord struct {
	ID            int64     `json:"id"`
	SessionID     string    `json:"session_id"`
	InvoiceNumber string    `json:"invoice_number"`
	SellerName    string    `json:"seller_name"`
	VATNumber     string    `json:"vat_number"`
	InvoiceDate   string    `json:"invoice_date,omitempty"`
	Subtotal      *float64  `json:"subtotal,omitempty"`
	VATAmount     *float64  `json:"vat_amount,omitempty"`
	TotalAmount   float64   `json:"total_amount"`
	PayloadHash   string    `json:"payload_hash,omitempty"`
	Status        string    `json:"status"`
	ManualEntry   bool      `json:"manual_entry"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewScanRecord builds a record from a decoded invoice.
func NewScanRecord(sessionID string, inv *zatca.Invoice, payloadHash string) *ScanRecord {
	return &ScanRecord{
		SessionID:     sessionID,
		InvoiceNumber: inv.InvoiceNumber,
		SellerName:    inv.SellerName,
		VATNumber:     inv.VATNumber,
		InvoiceDate:   inv.InvoiceDate,
		Subtotal:      inv.Subtotal,
		VATAmount:     inv.VATAmount,
		TotalAmount:   inv.TotalAmount,
		PayloadHash:   payloadHash,
		Status:        StatusScanned,
	}
}
