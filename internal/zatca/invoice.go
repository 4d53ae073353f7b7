// Package zatca decodes the QR payload printed on Saudi Arabian tax
// invoices (ZATCA phase-1 simplified invoice format). The payload is a
// base64-encoded TLV sequence; this package extracts the seller, VAT
// registration, timestamp and amount fields and validates them into an
// Invoice. Decoding is a total function: malformed input yields a nil
// Invoice, never an error or a panic.
package zatca

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Tags defined by the phase-1 QR specification. Tags outside this table
// (cryptographic stamp, public key, additional data) are skipped during
// interpretation but still walked over so the cursor stays aligned.
const (
	tagSellerName  byte = 1
	tagVATNumber   byte = 2
	tagTimestamp   byte = 3
	tagTotalAmount byte = 4
	tagVATAmount   byte = 5
)

// Invoice is the validated record decoded from an invoice QR payload.
// A non-nil Invoice always carries a seller name, a VAT registration
// number and a total amount; the remaining fields are present only when
// the payload supplied them.
type Invoice struct {
	InvoiceNumber string   `json:"invoice_number"`
	SellerName    string   `json:"seller_name"`
	VATNumber     string   `json:"vat_number"`
	InvoiceDate   string   `json:"invoice_date,omitempty"` // date-only, YYYY-MM-DD
	Subtotal      *float64 `json:"subtotal,omitempty"`
	VATAmount     *float64 `json:"vat_amount,omitempty"`
	TotalAmount   float64  `json:"total_amount"`
}

// invoiceBuilder accumulates fields as tags are interpreted. It is the
// only place a partially-filled record exists; Build either produces a
// complete Invoice or nothing.
type invoiceBuilder struct {
	sellerName  string
	vatNumber   string
	invoiceDate string
	totalAmount *float64
	vatAmount   *float64
}

func (b *invoiceBuilder) apply(field tlvField) {
	value := string(field.Value)

	switch field.Tag {
	case tagSellerName:
		b.sellerName = value
	case tagVATNumber:
		b.vatNumber = value
	case tagTimestamp:
		b.invoiceDate = dateOnly(value)
	case tagTotalAmount:
		b.totalAmount = parseAmount(value)
	case tagVATAmount:
		b.vatAmount = parseAmount(value)
	}
}

// build enforces the completeness gate: seller name, VAT number and a
// well-formed total are all required, otherwise the payload is rejected.
func (b *invoiceBuilder) build() *Invoice {
	if b.sellerName == "" || b.vatNumber == "" || b.totalAmount == nil {
		return nil
	}

	inv := &Invoice{
		InvoiceNumber: NewInvoiceNumber(),
		SellerName:    b.sellerName,
		VATNumber:     b.vatNumber,
		InvoiceDate:   b.invoiceDate,
		VATAmount:     b.vatAmount,
		TotalAmount:   *b.totalAmount,
	}

	if b.vatAmount != nil {
		subtotal := *b.totalAmount - *b.vatAmount
		inv.Subtotal = &subtotal
	}

	return inv
}

// parseAmount parses a decimal amount field. A value that does not parse
// is treated as absent rather than failing the whole decode.
func parseAmount(value string) *float64 {
	amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return nil
	}
	return &amount
}

// dateOnly reduces an ISO 8601 timestamp to its date portion.
func dateOnly(timestamp string) string {
	if i := strings.IndexByte(timestamp, 'T'); i >= 0 {
		return timestamp[:i]
	}
	return timestamp
}

// NewInvoiceNumber synthesizes an invoice number for payloads that carry
// none. The value is cosmetic: duplicate detection keys off the raw
// payload, never off this field.
func NewInvoiceNumber() string {
	return "INV-" + strings.ToUpper(uuid.NewString()[:8])
}

// ParseInvoiceQR decodes a scanned QR payload into an Invoice. The input
// may be base64-encoded or already-decoded bytes. A nil result means the
// payload is not a valid, complete invoice QR; there is no partial
// success and no error return.
func ParseInvoiceQR(raw string) *Invoice {
	builder := &invoiceBuilder{}
	for _, field := range scanTLV(preparePayload(raw)) {
		builder.apply(field)
	}
	return builder.build()
}

// IsValidInvoiceQR reports whether raw decodes to a complete invoice.
func IsValidInvoiceQR(raw string) bool {
	return ParseInvoiceQR(raw) != nil
}
