package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okeev/mailsched/internal/models"
)

// AttemptRepository is the append-only ledger of delivery attempts. Rows are
// never updated or deleted.
type AttemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create records a delivery attempt. The timestamp is assigned here, at write
// time, never by the caller.
func (r *AttemptRepository) Create(campaignID string, outcome models.Outcome, response string) (*models.Attempt, error) {
	a := &models.Attempt{
		ID:             uuid.New().String(),
		CampaignID:     campaignID,
		Outcome:        outcome,
		ServerResponse: response,
		AttemptedAt:    time.Now().UTC(),
	}

	_, err := r.db.Exec(`
		INSERT INTO attempts (id, campaign_id, outcome, server_response, attempted_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.CampaignID, a.Outcome, a.ServerResponse, a.AttemptedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}
	return a, nil
}

// GetLast returns the most recent attempt for a campaign, or nil when the
// campaign has never been sent.
func (r *AttemptRepository) GetLast(campaignID string) (*models.Attempt, error) {
	a := &models.Attempt{}
	var response sql.NullString
	err := r.db.QueryRow(`
		SELECT id, campaign_id, outcome, server_response, attempted_at
		FROM attempts
		WHERE campaign_id = ?
		ORDER BY attempted_at DESC, id DESC
		LIMIT 1`, campaignID,
	).Scan(&a.ID, &a.CampaignID, &a.Outcome, &response, &a.AttemptedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if response.Valid {
		a.ServerResponse = response.String
	}
	return a, nil
}

// GetLastSuccess returns the most recent successful attempt for a campaign,
// or nil when it has never delivered. This is the baseline the selector
// measures the periodicity interval from: a failed attempt does not push the
// next send out by a full period, it is retried on the next tick.
func (r *AttemptRepository) GetLastSuccess(campaignID string) (*models.Attempt, error) {
	a := &models.Attempt{}
	var response sql.NullString
	err := r.db.QueryRow(`
		SELECT id, campaign_id, outcome, server_response, attempted_at
		FROM attempts
		WHERE campaign_id = ? AND outcome = ?
		ORDER BY attempted_at DESC, id DESC
		LIMIT 1`, campaignID, models.AttemptSuccess,
	).Scan(&a.ID, &a.CampaignID, &a.Outcome, &response, &a.AttemptedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if response.Valid {
		a.ServerResponse = response.String
	}
	return a, nil
}

// HasSuccess reports whether the campaign has at least one successful attempt.
func (r *AttemptRepository) HasSuccess(campaignID string) (bool, error) {
	var n int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM attempts WHERE campaign_id = ? AND outcome = ?`,
		campaignID, models.AttemptSuccess,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByCampaign returns the campaign's attempts, newest first.
func (r *AttemptRepository) ListByCampaign(campaignID string, limit int) ([]models.Attempt, error) {
	query := `
		SELECT id, campaign_id, outcome, server_response, attempted_at
		FROM attempts
		WHERE campaign_id = ?
		ORDER BY attempted_at DESC, id DESC`
	args := []any{campaignID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []models.Attempt{}
	for rows.Next() {
		var a models.Attempt
		var response sql.NullString
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Outcome, &response, &a.AttemptedAt); err != nil {
			return nil, err
		}
		if response.Valid {
			a.ServerResponse = response.String
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}
