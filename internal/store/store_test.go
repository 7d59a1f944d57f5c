package store

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okeev/mailsched/internal/models"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	raw, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { raw.Close() })

	if _, err := raw.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	db := &DB{raw}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// seedCampaign creates a message and a campaign referencing it.
func seedCampaign(t *testing.T, db *DB, p models.Periodicity, start time.Time, end *time.Time) *models.Campaign {
	t.Helper()

	messages := NewMessageRepository(db.DB)
	campaigns := NewCampaignRepository(db.DB)

	msg := &models.Message{Subject: "Weekly digest", Body: "Hello!"}
	if err := messages.Create(msg); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	c := &models.Campaign{
		MessageID:   msg.ID,
		Periodicity: p,
		StartAt:     start,
		EndAt:       end,
	}
	if err := campaigns.Create(c); err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	return c
}

func seedClient(t *testing.T, db *DB, email string) *models.Client {
	t.Helper()

	clients := NewClientRepository(db.DB)
	c := &models.Client{Email: email, FullName: "Test Client"}
	if err := clients.Create(c); err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}
}
