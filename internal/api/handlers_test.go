package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/almashari/qrfatoora/internal/export"
	"github.com/almashari/qrfatoora/internal/models"
	"github.com/almashari/qrfatoora/internal/repository"
	"github.com/almashari/qrfatoora/internal/scan"
	"github.com/almashari/qrfatoora/pkg/database"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations())

	sessionRepo := repository.NewSessionRepository(db.DB, logger)
	recordRepo := repository.NewRecordRepository(db.DB, logger)
	svc := scan.NewService(sessionRepo, recordRepo, 0, logger)
	exporter := export.NewExcelExporter(export.Config{SheetName: "Invoices"}, logger)

	return NewRouter(NewHandler(svc, sessionRepo, recordRepo, exporter, logger), logger)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions", gin.H{"name": "March filing"})
	require.Equal(t, http.StatusCreated, w.Code)

	var session models.ScanSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	return session.ID
}

func validQRPayload() string {
	var raw []byte
	add := func(tag byte, value string) {
		raw = append(raw, tag, byte(len(value)))
		raw = append(raw, value...)
	}
	add(1, "Acme Trading Co.")
	add(2, "300012345600003")
	add(3, "2024-01-10T08:00:00Z")
	add(4, "230.00")
	add(5, "30.00")
	return base64.StdEncoding.EncodeToString(raw)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestScanLifecycle(t *testing.T) {
	router := newTestRouter(t)
	sessionID := createSession(t, router)

	// First scan is recorded.
	w := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/scans", sessionID),
		gin.H{"payload": validQRPayload()})
	require.Equal(t, http.StatusCreated, w.Code)

	var record models.ScanRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "Acme Trading Co.", record.SellerName)
	assert.Equal(t, 230.00, record.TotalAmount)

	// Re-scan of the same code conflicts.
	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/scans", sessionID),
		gin.H{"payload": validQRPayload()})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Garbage payload is a rejection, not a server error.
	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/scans", sessionID),
		gin.H{"payload": "just some text"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// The session lists exactly the one record.
	w = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/sessions/%s/records", sessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		Records []models.ScanRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Len(t, listing.Records, 1)

	// Annotate it.
	w = doJSON(t, router, http.MethodPatch,
		fmt.Sprintf("/api/v1/records/%d/notes", record.ID),
		gin.H{"notes": "lunch with client"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScanUnknownSession(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost,
		"/api/v1/sessions/does-not-exist/scans",
		gin.H{"payload": validQRPayload()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestManualEntry(t *testing.T) {
	router := newTestRouter(t)
	sessionID := createSession(t, router)

	w := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/records", sessionID),
		gin.H{
			"seller_name":  "Corner Store",
			"vat_number":   "300099999900003",
			"total_amount": 115.00,
			"vat_amount":   15.00,
		})
	require.Equal(t, http.StatusCreated, w.Code)

	var record models.ScanRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.True(t, record.ManualEntry)
	require.NotNil(t, record.Subtotal)
	assert.InDelta(t, 100.00, *record.Subtotal, 0.001)
}

func TestValidateEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/scans/validate",
		gin.H{"payload": validQRPayload()})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "true")

	w = doJSON(t, router, http.MethodPost, "/api/v1/scans/validate",
		gin.H{"payload": "nope"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "false")
}

func TestExportSession(t *testing.T) {
	router := newTestRouter(t)
	sessionID := createSession(t, router)

	w := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/scans", sessionID),
		gin.H{"payload": validQRPayload()})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/v1/sessions/%s/export", sessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, w.Body.Len())
}
