package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"birthday_notification_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const tickTimeout = 5 * time.Minute

// ReminderScheduler drives the two recurring reminder jobs against wall-clock
// time. It only schedules ticks; due-set computation and idempotency live in
// the ReminderService. Missed firings are not replayed: the next tick works
// from current state and the delivery markers make that safe.
type ReminderScheduler struct {
	cronEngine     *cron.Cron
	reminders      app.ReminderService
	logger         *logrus.Entry
	cronSpecDaily  string
	cronSpecWeekly string

	// Overlap control: at most one in-flight execution per job type.
	dailyRunning  atomic.Bool
	weeklyRunning atomic.Bool
}

func NewReminderScheduler(
	reminders app.ReminderService,
	logger *logrus.Entry,
	cronSpecDaily string,
	cronSpecWeekly string,
) *ReminderScheduler {
	return &ReminderScheduler{
		cronEngine:     cron.New(cron.WithLocation(time.UTC)),
		reminders:      reminders,
		logger:         logger,
		cronSpecDaily:  cronSpecDaily,
		cronSpecWeekly: cronSpecWeekly,
	}
}

// Start registers both cron jobs and starts the engine.
func (s *ReminderScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.cronSpecDaily, s.runDailyTick); err != nil {
		return err
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpecWeekly, s.runWeeklyTick); err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"cron_daily":  s.cronSpecDaily,
		"cron_weekly": s.cronSpecWeekly,
	}).Info("Reminder scheduler started")
	return nil
}

// runDailyTick executes one daily tick unless a previous one is still in
// flight. A tick failure is logged; the next tick is still scheduled.
func (s *ReminderScheduler) runDailyTick() {
	if !s.dailyRunning.CompareAndSwap(false, true) {
		s.logger.Warn("Daily tick skipped: previous tick still running")
		return
	}
	defer s.dailyRunning.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	if err := s.reminders.RunDailyCheck(ctx); err != nil {
		s.logger.WithError(err).Error("Daily reminder tick failed")
	}
}

func (s *ReminderScheduler) runWeeklyTick() {
	if !s.weeklyRunning.CompareAndSwap(false, true) {
		s.logger.Warn("Weekly tick skipped: previous tick still running")
		return
	}
	defer s.weeklyRunning.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	if err := s.reminders.RunWeeklyCheck(ctx); err != nil {
		s.logger.WithError(err).Error("Weekly reminder tick failed")
	}
}

// Stop halts scheduling and waits for any running tick to finish.
func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Reminder scheduler stopped")
}
