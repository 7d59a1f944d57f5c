// Package models defines the entities shared by the store and the scheduler.
package models

import (
	"fmt"
	"time"
)

// Periodicity is the minimum spacing between successive sends of a campaign.
type Periodicity string

const (
	PeriodicityDaily   Periodicity = "daily"
	PeriodicityWeekly  Periodicity = "weekly"
	PeriodicityMonthly Periodicity = "monthly"
)

// Interval returns the send interval for the periodicity. Monthly is a fixed
// 28 days, not calendar-month arithmetic.
func (p Periodicity) Interval() (time.Duration, error) {
	switch p {
	case PeriodicityDaily:
		return 24 * time.Hour, nil
	case PeriodicityWeekly:
		return 7 * 24 * time.Hour, nil
	case PeriodicityMonthly:
		return 28 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown periodicity %q", string(p))
	}
}

// Valid reports whether the periodicity is one of the known values.
func (p Periodicity) Valid() bool {
	_, err := p.Interval()
	return err == nil
}

// Status is the campaign lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
)

// Active reports whether a campaign in this status is still scanned by the
// scheduler. Completed and Stopped are terminal.
func (s Status) Active() bool {
	return s == StatusCreated || s == StatusStarted
}

// Outcome is the result of a single delivery attempt.
type Outcome string

const (
	AttemptSuccess Outcome = "success"
	AttemptFailed  Outcome = "failed"
)

// Campaign is a recurring mailing: a message sent to a set of clients on a
// periodic schedule inside an optional [StartAt, EndAt] window.
type Campaign struct {
	ID          string      `json:"id"`
	MessageID   string      `json:"message_id"`
	Status      Status      `json:"status"`
	Periodicity Periodicity `json:"periodicity"`
	StartAt     time.Time   `json:"start_at"`
	EndAt       *time.Time  `json:"end_at,omitempty"` // nil = runs indefinitely
	Owner       string      `json:"owner,omitempty"`  // attribution only
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Ended reports whether the campaign's send window has closed.
func (c *Campaign) Ended(now time.Time) bool {
	return c.EndAt != nil && now.After(*c.EndAt)
}

// Message is the subject and body a campaign sends. Campaigns reference
// messages; an edit is visible on the campaign's next send.
type Message struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is a mailing recipient.
type Client struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Attempt is an immutable record of one send invocation for a campaign.
// Attempts are created only by the dispatcher and never mutated.
type Attempt struct {
	ID             string    `json:"id"`
	CampaignID     string    `json:"campaign_id"`
	Outcome        Outcome   `json:"outcome"`
	ServerResponse string    `json:"server_response,omitempty"`
	AttemptedAt    time.Time `json:"attempted_at"`
}
