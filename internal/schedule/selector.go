// Package schedule decides whether a campaign is due to send. It is a pure
// function of the campaign, its last attempt and the current time, so it can
// be tested without a clock or a store.
package schedule

import (
	"time"

	"github.com/okeev/mailsched/internal/models"
)

// IsDue reports whether the campaign should be sent at now.
//
// A campaign whose end window has passed is never due; the caller is expected
// to retire it. With a nil last attempt a campaign is due as soon as its start
// time is reached. Otherwise the campaign is due once a full periodicity
// interval has elapsed since that attempt. Callers pass the last successful
// attempt, so a failed send does not push the schedule back.
//
// A malformed periodicity returns an error; callers treat that as "not due"
// and surface it for operator attention rather than retrying blindly.
func IsDue(c *models.Campaign, last *models.Attempt, now time.Time) (bool, error) {
	interval, err := c.Periodicity.Interval()
	if err != nil {
		return false, err
	}

	if c.Ended(now) {
		return false, nil
	}
	if now.Before(c.StartAt) {
		return false, nil
	}
	if last == nil {
		return true, nil
	}
	return !now.Before(last.AttemptedAt.Add(interval)), nil
}

// NextDue returns the earliest instant at which the campaign can become due.
// With no prior attempt that is the campaign's start time.
func NextDue(c *models.Campaign, last *models.Attempt) (time.Time, error) {
	interval, err := c.Periodicity.Interval()
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return c.StartAt, nil
	}
	return last.AttemptedAt.Add(interval), nil
}
