package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"birthday_notification_bot/internal/domain/notify"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type sentReminder struct {
	recipientID int64
	payload     notify.Payload
}

// fakeDispatcher records every send and can be told to fail for given names.
type fakeDispatcher struct {
	mu        sync.Mutex
	sent      []sentReminder
	failNames map[string]bool
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{failNames: make(map[string]bool)}
}

func (d *fakeDispatcher) Send(recipientID int64, p notify.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNames[p.Name] {
		return fmt.Errorf("simulated delivery failure for %s", p.Name)
	}
	d.sent = append(d.sent, sentReminder{recipientID: recipientID, payload: p})
	return nil
}

func (d *fakeDispatcher) sentNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.sent))
	for _, s := range d.sent {
		names = append(names, s.payload.Name)
	}
	return names
}

type reminderFixture struct {
	users      *idb.InMemoryUserRepository
	birthdays  *idb.InMemoryBirthdayRepository
	markers    *idb.InMemoryDeliveryRepository
	dispatcher *fakeDispatcher
	birthdaySv *BirthdayService
}

func newReminderFixture(t *testing.T, now time.Time) (*reminderFixture, func(clock Clock) *ReminderServiceImpl) {
	t.Helper()
	f := &reminderFixture{
		users:      idb.NewInMemoryUserRepository("UTC"),
		birthdays:  idb.NewInMemoryBirthdayRepository(),
		markers:    idb.NewInMemoryDeliveryRepository(),
		dispatcher: newFakeDispatcher(),
	}
	f.birthdaySv = NewBirthdayService(f.users, f.birthdays, fixedClock{t: now}, testLogger())

	build := func(clock Clock) *ReminderServiceImpl {
		return NewReminderService(f.users, f.birthdays, f.markers, f.dispatcher, clock, ReminderConfig{
			DailySendHour:      9,
			WeeklySendHour:     8,
			WeeklySendDay:      time.Sunday,
			UpcomingWindowDays: 7,
		}, testLogger())
	}
	return f, build
}

func (f *reminderFixture) seed(t *testing.T, ctx context.Context, req CreateRequest) {
	t.Helper()
	if _, err := f.birthdaySv.Create(ctx, req); err != nil {
		t.Fatalf("failed to seed birthday %s: %v", req.Name, err)
	}
}

// 2025-06-15 is a Sunday.
var tickTime = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func TestDailyCheckSendsOncePerOccurrence(t *testing.T) {
	ctx := context.Background()
	f, build := newReminderFixture(t, tickTime)
	svc := build(fixedClock{t: tickTime})

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-15"})
	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Boris", Birthdate: "06-15"})
	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Clara", Birthdate: "1990-06-20"})

	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("RunDailyCheck returned error: %v", err)
	}

	names := f.dispatcher.sentNames()
	if len(names) != 2 {
		t.Fatalf("sent %v, want exactly Anna and Boris", names)
	}
	if f.markers.Count() != 2 {
		t.Errorf("marker count = %d, want 2", f.markers.Count())
	}

	// A repeated tick within the same occurrence must not re-send.
	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("second RunDailyCheck returned error: %v", err)
	}
	if got := len(f.dispatcher.sentNames()); got != 2 {
		t.Errorf("repeat tick re-sent reminders: %d sends total", got)
	}
}

func TestDailyCheckPayload(t *testing.T) {
	ctx := context.Background()
	f, build := newReminderFixture(t, tickTime)
	svc := build(fixedClock{t: tickTime})

	f.seed(t, ctx, CreateRequest{
		OwnerID: 7, Name: "Anna", Birthdate: "1990-06-15", Category: "family", Note: "loves tulips",
	})

	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("RunDailyCheck returned error: %v", err)
	}
	if len(f.dispatcher.sent) != 1 {
		t.Fatalf("sent %d reminders, want 1", len(f.dispatcher.sent))
	}

	got := f.dispatcher.sent[0]
	if got.recipientID != 7 {
		t.Errorf("recipient = %d, want 7", got.recipientID)
	}
	if got.payload.Age == nil || *got.payload.Age != 35 {
		t.Errorf("age = %v, want 35", got.payload.Age)
	}
	if got.payload.Note != "loves tulips" {
		t.Errorf("note = %q, want the stored note", got.payload.Note)
	}
}

func TestDailyCheckRetriesFailedRecipientNextTick(t *testing.T) {
	ctx := context.Background()
	f, build := newReminderFixture(t, tickTime)
	svc := build(fixedClock{t: tickTime})

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-15"})
	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Boris", Birthdate: "1985-06-15"})
	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Clara", Birthdate: "1970-06-15"})

	f.dispatcher.failNames["Boris"] = true
	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("RunDailyCheck returned error: %v", err)
	}

	// The failing recipient gets no marker; the others are unaffected.
	if got := len(f.dispatcher.sentNames()); got != 2 {
		t.Fatalf("sent %d reminders, want 2", got)
	}
	if f.markers.Count() != 2 {
		t.Errorf("marker count = %d, want 2", f.markers.Count())
	}

	// Next tick retries only the failed one.
	f.dispatcher.failNames["Boris"] = false
	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("second RunDailyCheck returned error: %v", err)
	}
	names := f.dispatcher.sentNames()
	if len(names) != 3 || names[2] != "Boris" {
		t.Errorf("sends after retry = %v, want exactly one extra send for Boris", names)
	}
	if f.markers.Count() != 3 {
		t.Errorf("marker count = %d, want 3", f.markers.Count())
	}
}

func TestDailyCheckHonorsLocalSendHour(t *testing.T) {
	ctx := context.Background()
	// 07:00 UTC: before the send hour in UTC, already 16:00 in Tokyo.
	early := time.Date(2025, time.June, 15, 7, 0, 0, 0, time.UTC)
	f, build := newReminderFixture(t, early)
	svc := build(fixedClock{t: early})

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-15"})
	f.seed(t, ctx, CreateRequest{OwnerID: 2, Name: "Kenji", Birthdate: "1990-06-15"})
	if err := f.birthdaySv.SetTimezone(ctx, 2, "Asia/Tokyo"); err != nil {
		t.Fatalf("SetTimezone returned error: %v", err)
	}

	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("RunDailyCheck returned error: %v", err)
	}
	names := f.dispatcher.sentNames()
	if len(names) != 1 || names[0] != "Kenji" {
		t.Fatalf("sent %v, want only the Tokyo user's reminder", names)
	}

	// Once UTC passes the send hour, the remaining user is picked up.
	later := build(fixedClock{t: early.Add(3 * time.Hour)})
	if err := later.RunDailyCheck(ctx); err != nil {
		t.Fatalf("later RunDailyCheck returned error: %v", err)
	}
	if got := len(f.dispatcher.sentNames()); got != 2 {
		t.Errorf("sends after the later sweep = %d, want 2", got)
	}
}

func TestDailyCheckSkipsDeletedRecords(t *testing.T) {
	ctx := context.Background()
	f, build := newReminderFixture(t, tickTime)
	svc := build(fixedClock{t: tickTime})

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-15"})
	records, _ := f.birthdays.ListActive(ctx, 1)
	if err := f.birthdays.SoftDelete(ctx, records[0].ID, tickTime); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}

	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("RunDailyCheck returned error: %v", err)
	}
	if got := len(f.dispatcher.sentNames()); got != 0 {
		t.Errorf("sent %d reminders for a deleted record, want 0", got)
	}
	if f.markers.Count() != 0 {
		t.Errorf("marker count = %d, want 0", f.markers.Count())
	}
}

func TestDailyCheckExcludesDeletedUsers(t *testing.T) {
	ctx := context.Background()
	f, build := newReminderFixture(t, tickTime)
	svc := build(fixedClock{t: tickTime})

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-15"})
	f.seed(t, ctx, CreateRequest{OwnerID: 2, Name: "Boris", Birthdate: "1985-06-15"})
	if err := f.users.SoftDelete(ctx, 2, tickTime); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}

	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("RunDailyCheck returned error: %v", err)
	}
	names := f.dispatcher.sentNames()
	if len(names) != 1 || names[0] != "Anna" {
		t.Errorf("sent %v, want only the active user's reminder", names)
	}
	if f.markers.Count() != 1 {
		t.Errorf("marker count = %d, want 1", f.markers.Count())
	}
}

func TestTickSummarySeparatesRepeatSweeps(t *testing.T) {
	ctx := context.Background()
	f, _ := newReminderFixture(t, tickTime)
	core, hook := logtest.NewNullLogger()
	svc := NewReminderService(f.users, f.birthdays, f.markers, f.dispatcher, fixedClock{t: tickTime}, ReminderConfig{
		DailySendHour:      9,
		WeeklySendHour:     8,
		WeeklySendDay:      time.Sunday,
		UpcomingWindowDays: 7,
	}, logrus.NewEntry(core))

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-15"})
	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Boris", Birthdate: "1985-06-15"})

	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("RunDailyCheck returned error: %v", err)
	}
	summary := lastTickSummary(t, hook)
	if summary.Data["sent"] != 2 || summary.Data["already_sent"] != 0 || summary.Data["failed"] != 0 {
		t.Errorf("first sweep summary = %v, want sent=2 already_sent=0 failed=0", summary.Data)
	}

	// The repeat sweep finds markers for both; that is not a failure.
	if err := svc.RunDailyCheck(ctx); err != nil {
		t.Fatalf("second RunDailyCheck returned error: %v", err)
	}
	summary = lastTickSummary(t, hook)
	if summary.Data["sent"] != 0 || summary.Data["already_sent"] != 2 || summary.Data["failed"] != 0 {
		t.Errorf("repeat sweep summary = %v, want sent=0 already_sent=2 failed=0", summary.Data)
	}
}

func lastTickSummary(t *testing.T, hook *logtest.Hook) *logrus.Entry {
	t.Helper()
	entries := hook.AllEntries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Message == "Reminder tick finished" {
			return entries[i]
		}
	}
	t.Fatal("no tick summary entry was logged")
	return nil
}

func TestWeeklyCheckWindowMembership(t *testing.T) {
	ctx := context.Background()
	f, build := newReminderFixture(t, tickTime)
	svc := build(fixedClock{t: tickTime})

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-15"})  // today
	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Boris", Birthdate: "1985-06-22"}) // edge of window
	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Clara", Birthdate: "1970-06-23"}) // just outside

	if err := svc.RunWeeklyCheck(ctx); err != nil {
		t.Fatalf("RunWeeklyCheck returned error: %v", err)
	}

	names := f.dispatcher.sentNames()
	if len(names) != 2 {
		t.Fatalf("sent %v, want Anna and Boris only", names)
	}
	for _, s := range f.dispatcher.sent {
		switch s.payload.Name {
		case "Anna":
			if s.payload.DaysUntil != 0 {
				t.Errorf("Anna DaysUntil = %d, want 0", s.payload.DaysUntil)
			}
		case "Boris":
			if s.payload.DaysUntil != 7 {
				t.Errorf("Boris DaysUntil = %d, want 7", s.payload.DaysUntil)
			}
			// The digest reports the age being turned at the occurrence.
			if s.payload.Age == nil || *s.payload.Age != 40 {
				t.Errorf("Boris age = %v, want 40", s.payload.Age)
			}
		}
	}

	// Same ISO week, same markers: the repeat tick is a no-op.
	if err := svc.RunWeeklyCheck(ctx); err != nil {
		t.Fatalf("second RunWeeklyCheck returned error: %v", err)
	}
	if got := len(f.dispatcher.sentNames()); got != 2 {
		t.Errorf("repeat weekly tick re-sent reminders: %d sends total", got)
	}
}

func TestWeeklyCheckOnlyFiresOnConfiguredWeekday(t *testing.T) {
	ctx := context.Background()
	monday := time.Date(2025, time.June, 16, 10, 0, 0, 0, time.UTC)
	f, build := newReminderFixture(t, monday)
	svc := build(fixedClock{t: monday})

	f.seed(t, ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-17"})

	if err := svc.RunWeeklyCheck(ctx); err != nil {
		t.Fatalf("RunWeeklyCheck returned error: %v", err)
	}
	if got := len(f.dispatcher.sentNames()); got != 0 {
		t.Errorf("weekly digest fired on a Monday: %d sends", got)
	}
}
