package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/almashari/qrfatoora/internal/export"
	"github.com/almashari/qrfatoora/internal/repository"
	"github.com/almashari/qrfatoora/internal/scan"
	"github.com/almashari/qrfatoora/internal/zatca"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the session and scan endpoints
type Handler struct {
	scans    *scan.Service
	sessions *repository.SessionRepository
	records  *repository.RecordRepository
	exporter *export.ExcelExporter
	logger   *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	scans *scan.Service,
	sessions *repository.SessionRepository,
	records *repository.RecordRepository,
	exporter *export.ExcelExporter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		scans:    scans,
		sessions: sessions,
		records:  records,
		exporter: exporter,
		logger:   logger,
	}
}

type createSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	session, err := h.scans.CreateSession(c.Request.Context(), req.Name)
	if err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions handles GET /sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession handles GET /sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session)
}

type submitScanRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// SubmitScan handles POST /sessions/:id/scans
func (h *Handler) SubmitScan(c *gin.Context) {
	var req submitScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}

	record, err := h.scans.Submit(c.Request.Context(), c.Param("id"), req.Payload)
	switch {
	case errors.Is(err, scan.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, scan.ErrNotInvoice):
		// A decode rejection, not a server failure: the code scanned
		// fine but is not a recognized invoice QR.
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not a recognized invoice QR"})
	case errors.Is(err, scan.ErrDuplicateScan):
		c.JSON(http.StatusConflict, gin.H{"error": "invoice already scanned in this session"})
	case err != nil:
		h.logger.Error("Failed to submit scan", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record scan"})
	default:
		c.JSON(http.StatusCreated, record)
	}
}

// SubmitManual handles POST /sessions/:id/records
func (h *Handler) SubmitManual(c *gin.Context) {
	var req scan.ManualInvoice
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seller_name, vat_number and total_amount are required"})
		return
	}

	record, err := h.scans.SubmitManual(c.Request.Context(), c.Param("id"), req)
	switch {
	case errors.Is(err, scan.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, scan.ErrNotInvoice):
		c.JSON(http.StatusBadRequest, gin.H{"error": "incomplete invoice fields"})
	case err != nil:
		h.logger.Error("Failed to record manual entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record entry"})
	default:
		c.JSON(http.StatusCreated, record)
	}
}

// ListRecords handles GET /sessions/:id/records
func (h *Handler) ListRecords(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	records, err := h.records.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

// UpdateNotes handles PATCH /records/:id/notes
func (h *Handler) UpdateNotes(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	var req updateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err = h.records.UpdateNotes(c.Request.Context(), id, req.Notes)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notes"})
	default:
		c.JSON(http.StatusOK, gin.H{"id": id, "notes": req.Notes})
	}
}

// DeleteRecord handles DELETE /records/:id
func (h *Handler) DeleteRecord(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	err = h.records.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete record"})
	default:
		c.Status(http.StatusNoContent)
	}
}

type validateRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// ValidatePayload handles POST /scans/validate. It lets the client show
// instant feedback before committing a scan to a session.
func (h *Handler) ValidatePayload(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": zatca.IsValidInvoiceQR(req.Payload)})
}

// ExportSession handles GET /sessions/:id/export
func (h *Handler) ExportSession(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	records, err := h.records.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}

	filename := fmt.Sprintf("invoices-%s.xlsx", session.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.Write(c.Writer, session, records); err != nil {
		h.logger.Error("Failed to export session", zap.String("session_id", sessionID), zap.Error(err))
		// Headers are already out; nothing sane to send at this point.
		c.Abort()
	}
}
