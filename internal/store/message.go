package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okeev/mailsched/internal/models"
)

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create creates a new message
func (r *MessageRepository) Create(m *models.Message) error {
	m.ID = uuid.New().String()
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO messages (id, subject, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Subject, m.Body, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID returns a message by ID, or nil when it does not exist.
func (r *MessageRepository) GetByID(id string) (*models.Message, error) {
	m := &models.Message{}
	var body sql.NullString
	err := r.db.QueryRow(`
		SELECT id, subject, body, created_at, updated_at
		FROM messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.Subject, &body, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if body.Valid {
		m.Body = body.String
	}
	return m, nil
}

// Update updates a message. Campaigns referencing it pick the change up on
// their next send.
func (r *MessageRepository) Update(m *models.Message) error {
	m.UpdatedAt = time.Now().UTC()
	_, err := r.db.Exec(`
		UPDATE messages SET subject = ?, body = ?, updated_at = ? WHERE id = ?`,
		m.Subject, m.Body, m.UpdatedAt, m.ID,
	)
	return err
}
