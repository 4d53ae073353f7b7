package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/almashari/qrfatoora/internal/models"
	"go.uber.org/zap"
)

// SessionRepository persists scan sessions
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.ScanSession) error {
	query := `INSERT INTO scan_sessions (id, name) VALUES (?, ?)`

	if _, err := r.db.ExecContext(ctx, query, session.ID, session.Name); err != nil {
		r.logger.Error("Failed to create session", zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID, returning nil when not found
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.ScanSession, error) {
	query := `SELECT id, name, created_at FROM scan_sessions WHERE id = ?`

	var session models.ScanSession
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Name,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get session", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// List returns all sessions, newest first
func (r *SessionRepository) List(ctx context.Context) ([]*models.ScanSession, error) {
	query := `SELECT id, name, created_at FROM scan_sessions ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list sessions", zap.Error(err))
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.ScanSession, 0)
	for rows.Next() {
		var session models.ScanSession
		if err := rows.Scan(&session.ID, &session.Name, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}
