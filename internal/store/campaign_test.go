package store

import (
	"testing"
	"time"

	"github.com/okeev/mailsched/internal/models"
)

func TestCampaignCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	created := seedCampaign(t, db, models.PeriodicityWeekly, start, &end)

	got, err := campaigns.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil for existing campaign")
	}
	if got.Status != models.StatusCreated {
		t.Errorf("new campaign status = %q, want %q", got.Status, models.StatusCreated)
	}
	if got.Periodicity != models.PeriodicityWeekly {
		t.Errorf("periodicity = %q, want %q", got.Periodicity, models.PeriodicityWeekly)
	}
	if !got.StartAt.Equal(start) {
		t.Errorf("start_at = %v, want %v", got.StartAt, start)
	}
	if got.EndAt == nil || !got.EndAt.Equal(end) {
		t.Errorf("end_at = %v, want %v", got.EndAt, end)
	}

	missing, err := campaigns.GetByID("nope")
	if err != nil {
		t.Fatalf("GetByID(missing) error = %v", err)
	}
	if missing != nil {
		t.Error("GetByID(missing) should return nil")
	}
}

func TestCampaignNilEndAt(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)

	created := seedCampaign(t, db, models.PeriodicityDaily, time.Now().UTC(), nil)

	got, err := campaigns.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.EndAt != nil {
		t.Errorf("end_at = %v, want nil", got.EndAt)
	}
}

func TestListActiveFiltersTerminalStatuses(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)
	now := time.Now().UTC()

	c1 := seedCampaign(t, db, models.PeriodicityDaily, now, nil)
	c2 := seedCampaign(t, db, models.PeriodicityDaily, now, nil)
	c3 := seedCampaign(t, db, models.PeriodicityDaily, now, nil)
	c4 := seedCampaign(t, db, models.PeriodicityDaily, now, nil)

	if err := campaigns.UpdateStatus(c2.ID, models.StatusStarted); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := campaigns.UpdateStatus(c3.ID, models.StatusStopped); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := campaigns.UpdateStatus(c4.ID, models.StatusCompleted); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	active, err := campaigns.ListActive()
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("ListActive() returned %d campaigns, want 2", len(active))
	}
	ids := map[string]bool{active[0].ID: true, active[1].ID: true}
	if !ids[c1.ID] || !ids[c2.ID] {
		t.Errorf("ListActive() = %v, want campaigns %s and %s", ids, c1.ID, c2.ID)
	}
}

func TestUpdateStatusUnknownCampaign(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)

	if err := campaigns.UpdateStatus("missing", models.StatusStarted); err == nil {
		t.Error("UpdateStatus(missing) should fail")
	}
}

func TestResolveRecipientsIsLiveMembership(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)

	c := seedCampaign(t, db, models.PeriodicityDaily, time.Now().UTC(), nil)
	alice := seedClient(t, db, "alice@example.com")
	bob := seedClient(t, db, "bob@example.com")

	if err := campaigns.AddRecipient(c.ID, alice.ID); err != nil {
		t.Fatalf("AddRecipient() error = %v", err)
	}

	emails, err := campaigns.ResolveRecipients(c.ID)
	if err != nil {
		t.Fatalf("ResolveRecipients() error = %v", err)
	}
	if len(emails) != 1 || emails[0] != "alice@example.com" {
		t.Fatalf("ResolveRecipients() = %v, want [alice@example.com]", emails)
	}

	// Membership changes between sends are picked up by the next resolve.
	if err := campaigns.AddRecipient(c.ID, bob.ID); err != nil {
		t.Fatalf("AddRecipient() error = %v", err)
	}
	if err := campaigns.RemoveRecipient(c.ID, alice.ID); err != nil {
		t.Fatalf("RemoveRecipient() error = %v", err)
	}

	emails, err = campaigns.ResolveRecipients(c.ID)
	if err != nil {
		t.Fatalf("ResolveRecipients() error = %v", err)
	}
	if len(emails) != 1 || emails[0] != "bob@example.com" {
		t.Errorf("ResolveRecipients() after membership change = %v, want [bob@example.com]", emails)
	}
}

func TestAddRecipientIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)

	c := seedCampaign(t, db, models.PeriodicityDaily, time.Now().UTC(), nil)
	alice := seedClient(t, db, "alice@example.com")

	for i := 0; i < 2; i++ {
		if err := campaigns.AddRecipient(c.ID, alice.ID); err != nil {
			t.Fatalf("AddRecipient() #%d error = %v", i+1, err)
		}
	}

	emails, err := campaigns.ResolveRecipients(c.ID)
	if err != nil {
		t.Fatalf("ResolveRecipients() error = %v", err)
	}
	if len(emails) != 1 {
		t.Errorf("ResolveRecipients() = %v, want a single entry", emails)
	}
}

func TestResolveMessageSeesEdits(t *testing.T) {
	db := setupTestDB(t)
	campaigns := NewCampaignRepository(db.DB)
	messages := NewMessageRepository(db.DB)

	c := seedCampaign(t, db, models.PeriodicityDaily, time.Now().UTC(), nil)

	subject, body, err := campaigns.ResolveMessage(c.ID)
	if err != nil {
		t.Fatalf("ResolveMessage() error = %v", err)
	}
	if subject != "Weekly digest" || body != "Hello!" {
		t.Fatalf("ResolveMessage() = (%q, %q)", subject, body)
	}

	// No snapshot isolation: edits are visible on the next resolve.
	msg, err := messages.GetByID(c.MessageID)
	if err != nil || msg == nil {
		t.Fatalf("GetByID() = (%v, %v)", msg, err)
	}
	msg.Subject = "Updated digest"
	msg.Body = "New content"
	if err := messages.Update(msg); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	subject, body, err = campaigns.ResolveMessage(c.ID)
	if err != nil {
		t.Fatalf("ResolveMessage() error = %v", err)
	}
	if subject != "Updated digest" || body != "New content" {
		t.Errorf("ResolveMessage() after edit = (%q, %q)", subject, body)
	}
}
