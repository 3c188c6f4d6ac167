package app

import (
	"context"
	"fmt"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
	"birthday_notification_bot/internal/domain/notify"
	"birthday_notification_bot/internal/domain/user"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// ReminderService computes the due-set for one tick of a reminder job and
// dispatches it. Idempotency comes from delivery markers, not from timing:
// a late, coalesced or repeated tick can only add one marker per occurrence.
type ReminderService interface {
	RunDailyCheck(ctx context.Context) error
	RunWeeklyCheck(ctx context.Context) error
}

// ReminderConfig carries the user-local send thresholds.
type ReminderConfig struct {
	DailySendHour      int          // dispatch daily reminders at/after this local hour
	WeeklySendHour     int          // dispatch weekly digests at/after this local hour
	WeeklySendDay      time.Weekday // day of week for the weekly digest
	UpcomingWindowDays int          // weekly digest covers daysUntil in [0, window]
}

type ReminderServiceImpl struct {
	users      user.Repository
	birthdays  birthday.Repository
	markers    delivery.Repository
	dispatcher notify.Dispatcher
	clock      Clock
	cfg        ReminderConfig
	logger     *logrus.Entry
}

func NewReminderService(
	ur user.Repository,
	br birthday.Repository,
	dr delivery.Repository,
	dispatcher notify.Dispatcher,
	clock Clock,
	cfg ReminderConfig,
	logger *logrus.Entry,
) *ReminderServiceImpl {
	return &ReminderServiceImpl{
		users:      ur,
		birthdays:  br,
		markers:    dr,
		dispatcher: dispatcher,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// RunDailyCheck dispatches "birthday is today" reminders for every user whose
// local clock has passed the daily send hour.
func (s *ReminderServiceImpl) RunDailyCheck(ctx context.Context) error {
	now := s.clock.Now()
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	var tally tickTally
	for _, u := range users {
		localNow := now.In(u.Location())
		if localNow.Hour() < s.cfg.DailySendHour {
			continue
		}

		records, err := s.birthdays.ListActive(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("failed to list active birthdays for user %d: %w", u.ID, err)
		}

		for _, rec := range records {
			if !birthday.IsToday(rec.Birthdate, localNow) {
				continue
			}
			occurrence := birthday.NextOccurrence(rec.Birthdate, localNow)
			age, ageKnown := birthday.Age(rec.Birthdate, localNow)
			p := notify.Payload{
				Job:      delivery.JobDaily,
				Name:     rec.Name,
				Category: rec.Category,
				ImageURL: rec.ImageURL.String,
				Note:     rec.Note.String,
			}
			if ageKnown {
				p.Age = &age
			}
			tally.count(s.dispatchOne(ctx, u.ID, rec.ID, delivery.JobDaily, delivery.DailyKey(occurrence), p, now))
		}
	}

	s.logTickSummary(delivery.JobDaily, tally)
	return nil
}

// RunWeeklyCheck dispatches the upcoming-birthdays digest on the configured
// weekday, covering occurrences within the upcoming window.
func (s *ReminderServiceImpl) RunWeeklyCheck(ctx context.Context) error {
	now := s.clock.Now()
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	var tally tickTally
	for _, u := range users {
		localNow := now.In(u.Location())
		if localNow.Weekday() != s.cfg.WeeklySendDay || localNow.Hour() < s.cfg.WeeklySendHour {
			continue
		}

		records, err := s.birthdays.ListActive(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("failed to list active birthdays for user %d: %w", u.ID, err)
		}

		periodKey := delivery.WeeklyKey(localNow)
		for _, rec := range records {
			du := birthday.DaysUntil(rec.Birthdate, localNow)
			if du > s.cfg.UpcomingWindowDays {
				continue
			}
			occurrence := birthday.NextOccurrence(rec.Birthdate, localNow)
			age, ageKnown := birthday.Age(rec.Birthdate, occurrence)
			p := notify.Payload{
				Job:       delivery.JobWeekly,
				Name:      rec.Name,
				Category:  rec.Category,
				DaysUntil: du,
				ImageURL:  rec.ImageURL.String,
				Note:      rec.Note.String,
			}
			if ageKnown {
				p.Age = &age
			}
			tally.count(s.dispatchOne(ctx, u.ID, rec.ID, delivery.JobWeekly, periodKey, p, now))
		}
	}

	s.logTickSummary(delivery.JobWeekly, tally)
	return nil
}

// dispatchOutcome classifies what happened to one recipient within a tick.
type dispatchOutcome int

const (
	outcomeSent        dispatchOutcome = iota
	outcomeAlreadySent                 // marker present, normal on repeat sweeps
	outcomeSkipped                     // record vanished between snapshot and dispatch
	outcomeFailed
)

type tickTally struct {
	sent    int
	already int
	skipped int
	failed  int
}

func (t *tickTally) count(o dispatchOutcome) {
	switch o {
	case outcomeSent:
		t.sent++
	case outcomeAlreadySent:
		t.already++
	case outcomeSkipped:
		t.skipped++
	case outcomeFailed:
		t.failed++
	}
}

func (s *ReminderServiceImpl) logTickSummary(job delivery.JobType, t tickTally) {
	s.logger.WithFields(logrus.Fields{
		"job":          job,
		"sent":         t.sent,
		"already_sent": t.already,
		"skipped":      t.skipped,
		"failed":       t.failed,
	}).Info("Reminder tick finished")
}

// dispatchOne performs the per-recipient sequence: marker check, fresh active
// check, dispatch, then marker write. The marker is only written after a
// successful send, so a failed recipient stays in the next tick's due-set.
// Any per-recipient failure is logged and isolated from the rest of the batch.
func (s *ReminderServiceImpl) dispatchOne(
	ctx context.Context,
	recipientID, birthdayID int64,
	job delivery.JobType,
	periodKey string,
	p notify.Payload,
	now time.Time,
) dispatchOutcome {
	logCtx := s.logger.WithFields(logrus.Fields{
		"job":         job,
		"recipient":   recipientID,
		"birthday_id": birthdayID,
		"period_key":  periodKey,
	})

	already, err := s.markers.Exists(ctx, birthdayID, job, periodKey)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check delivery marker; skipping recipient")
		return outcomeFailed
	}
	if already {
		return outcomeAlreadySent
	}

	// The due-set snapshot may be stale; skip records deleted mid-tick.
	fresh, err := s.birthdays.GetByID(ctx, birthdayID)
	if err != nil || fresh.IsDeleted {
		if err != nil && err != idb.ErrBirthdayNotFound {
			logCtx.WithError(err).Error("Failed to re-check birthday record before dispatch")
		}
		return outcomeSkipped
	}

	if err := s.dispatcher.Send(recipientID, p); err != nil {
		logCtx.WithError(err).Error("Failed to dispatch reminder; will retry on next tick")
		return outcomeFailed
	}

	marker := &delivery.Marker{BirthdayID: birthdayID, Job: job, PeriodKey: periodKey, SentAt: now}
	if err := s.markers.Create(ctx, marker); err != nil {
		if err == idb.ErrDuplicateMarker {
			logCtx.Warn("Delivery marker already present after dispatch; concurrent tick likely")
			return outcomeSent
		}
		logCtx.WithError(err).Error("Failed to record delivery marker after dispatch")
		return outcomeSent
	}
	return outcomeSent
}
