package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/okeev/mailsched/internal/mailer"
	"github.com/okeev/mailsched/internal/metrics"
	"github.com/okeev/mailsched/internal/models"
)

// CampaignStore is the campaign surface the scheduler consumes.
type CampaignStore interface {
	ListActive() ([]models.Campaign, error)
	UpdateStatus(id string, status models.Status) error
	ResolveRecipients(campaignID string) ([]string, error)
	ResolveMessage(campaignID string) (subject, body string, err error)
}

// AttemptStore is the append-only delivery ledger. GetLastSuccess is the
// selector baseline: failed attempts do not advance it, so a failed campaign
// is retried on the next tick rather than after a full period.
type AttemptStore interface {
	Create(campaignID string, outcome models.Outcome, response string) (*models.Attempt, error)
	GetLastSuccess(campaignID string) (*models.Attempt, error)
	HasSuccess(campaignID string) (bool, error)
}

// Executor performs one send for a campaign and records the outcome in the
// ledger. Transport failures are captured in the attempt, never returned; a
// non-nil error means a store failure and no attempt was recorded.
type Executor struct {
	campaigns CampaignStore
	attempts  AttemptStore
	mailer    mailer.Mailer
	from      string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewExecutor creates a new dispatch executor
func NewExecutor(campaigns CampaignStore, attempts AttemptStore, m mailer.Mailer, from string, mx *metrics.Metrics, logger *slog.Logger) *Executor {
	return &Executor{
		campaigns: campaigns,
		attempts:  attempts,
		mailer:    m,
		from:      from,
		metrics:   mx,
		logger:    logger.With("component", "executor"),
	}
}

// Dispatch resolves the campaign's message and current recipient snapshot,
// sends the batch and writes the attempt. Recipients added after the snapshot
// is taken are excluded from this particular send.
func (e *Executor) Dispatch(ctx context.Context, c *models.Campaign) (*models.Attempt, error) {
	subject, body, err := e.campaigns.ResolveMessage(c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve message: %w", err)
	}

	recipients, err := e.campaigns.ResolveRecipients(c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	start := time.Now()
	sendErr := e.mailer.Send(ctx, &mailer.Message{
		From:    e.from,
		To:      recipients,
		Subject: subject,
		Body:    body,
	})
	e.metrics.SendDurationSeconds.Observe(time.Since(start).Seconds())

	outcome := models.AttemptSuccess
	response := fmt.Sprintf("delivered to %d recipients", len(recipients))
	if sendErr != nil {
		outcome = models.AttemptFailed
		response = sendErr.Error()
		e.logger.Warn("send failed",
			"campaign_id", c.ID,
			"recipients", len(recipients),
			"temporary", mailer.IsTemporaryError(sendErr),
			"error", sendErr,
		)
	}

	attempt, err := e.attempts.Create(c.ID, outcome, response)
	if err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}
	e.metrics.AttemptsTotal.WithLabelValues(string(outcome)).Inc()

	return attempt, nil
}
