package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okeev/mailsched/internal/models"
)

type ClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create creates a new client
func (r *ClientRepository) Create(c *models.Client) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO clients (id, email, full_name, comment, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.FullName, c.Comment, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByID returns a client by ID, or nil when it does not exist.
func (r *ClientRepository) GetByID(id string) (*models.Client, error) {
	c := &models.Client{}
	var fullName, comment sql.NullString
	err := r.db.QueryRow(`
		SELECT id, email, full_name, comment, created_at
		FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Email, &fullName, &comment, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fullName.Valid {
		c.FullName = fullName.String
	}
	if comment.Valid {
		c.Comment = comment.String
	}
	return c, nil
}

// Update updates a client's details. The new address is used by every
// campaign the client belongs to from the next send on.
func (r *ClientRepository) Update(c *models.Client) error {
	res, err := r.db.Exec(`
		UPDATE clients SET email = ?, full_name = ?, comment = ? WHERE id = ?`,
		c.Email, c.FullName, c.Comment, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("client %s not found", c.ID)
	}
	return nil
}
