package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okeev/mailsched/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign in the created status.
func (r *CampaignRepository) Create(c *models.Campaign) error {
	c.ID = uuid.New().String()
	if c.Status == "" {
		c.Status = models.StatusCreated
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO campaigns (id, message_id, status, periodicity, start_at, end_at, owner, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MessageID, c.Status, c.Periodicity, c.StartAt, c.EndAt, c.Owner, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID returns a campaign by ID, or nil when it does not exist.
func (r *CampaignRepository) GetByID(id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	var endAt sql.NullTime
	var owner sql.NullString
	err := r.db.QueryRow(`
		SELECT id, message_id, status, periodicity, start_at, end_at, owner, created_at, updated_at
		FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.MessageID, &c.Status, &c.Periodicity, &c.StartAt, &endAt, &owner, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if endAt.Valid {
		t := endAt.Time
		c.EndAt = &t
	}
	if owner.Valid {
		c.Owner = owner.String
	}
	return c, nil
}

// ListActive returns campaigns the scheduler still scans, i.e. those in the
// created or started status.
func (r *CampaignRepository) ListActive() ([]models.Campaign, error) {
	rows, err := r.db.Query(`
		SELECT id, message_id, status, periodicity, start_at, end_at, owner, created_at, updated_at
		FROM campaigns
		WHERE status IN (?, ?)
		ORDER BY created_at`,
		models.StatusCreated, models.StatusStarted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		var endAt sql.NullTime
		var owner sql.NullString
		err := rows.Scan(&c.ID, &c.MessageID, &c.Status, &c.Periodicity, &c.StartAt, &endAt, &owner, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if endAt.Valid {
			t := endAt.Time
			c.EndAt = &t
		}
		if owner.Valid {
			c.Owner = owner.String
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

// UpdateStatus sets the campaign status. The scheduler is the only writer of
// this field for active campaigns.
func (r *CampaignRepository) UpdateStatus(id string, status models.Status) error {
	res, err := r.db.Exec(`UPDATE campaigns SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("campaign %s not found", id)
	}
	return nil
}

// SetEndAt updates the campaign's end window (admin collaborator surface).
func (r *CampaignRepository) SetEndAt(id string, endAt *time.Time) error {
	_, err := r.db.Exec(`UPDATE campaigns SET end_at = ?, updated_at = ? WHERE id = ?`,
		endAt, time.Now().UTC(), id)
	return err
}

// AddRecipient adds a client to the campaign's recipient set. Membership is
// evaluated at send time, so additions take effect on the next send.
func (r *CampaignRepository) AddRecipient(campaignID, clientID string) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO campaign_recipients (campaign_id, client_id) VALUES (?, ?)`,
		campaignID, clientID)
	if err != nil {
		return fmt.Errorf("failed to add recipient: %w", err)
	}
	return nil
}

// RemoveRecipient removes a client from the campaign's recipient set.
func (r *CampaignRepository) RemoveRecipient(campaignID, clientID string) error {
	_, err := r.db.Exec(`
		DELETE FROM campaign_recipients WHERE campaign_id = ? AND client_id = ?`,
		campaignID, clientID)
	return err
}

// ResolveRecipients returns the email addresses of the campaign's current
// recipient set, a snapshot as of the query.
func (r *CampaignRepository) ResolveRecipients(campaignID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT c.email
		FROM campaign_recipients cr
		JOIN clients c ON c.id = cr.client_id
		WHERE cr.campaign_id = ?
		ORDER BY c.email`, campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}

	return emails, rows.Err()
}

// ResolveMessage returns the subject and body of the campaign's message as
// currently stored. Message edits are visible on the next send.
func (r *CampaignRepository) ResolveMessage(campaignID string) (subject, body string, err error) {
	err = r.db.QueryRow(`
		SELECT m.subject, m.body
		FROM campaigns c
		JOIN messages m ON m.id = c.message_id
		WHERE c.id = ?`, campaignID,
	).Scan(&subject, &body)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("campaign %s has no message", campaignID)
	}
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
