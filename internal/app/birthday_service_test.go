package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestBirthdayService(now time.Time) (*BirthdayService, *idb.InMemoryBirthdayRepository, *idb.InMemoryUserRepository) {
	users := idb.NewInMemoryUserRepository("UTC")
	birthdays := idb.NewInMemoryBirthdayRepository()
	svc := NewBirthdayService(users, birthdays, fixedClock{t: now}, testLogger())
	return svc, birthdays, users
}

var testNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

func TestCreateBirthday(t *testing.T) {
	svc, _, users := newTestBirthdayService(testNow)
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateRequest{
		OwnerID:   42,
		Name:      "  Anna  ",
		Birthdate: "1990-03-12",
		Category:  "Family",
		ImageURL:  "https://example.com/a.jpg",
		Note:      "loves tulips",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if rec.ID == 0 {
		t.Errorf("expected a generated ID")
	}
	if rec.Name != "Anna" {
		t.Errorf("Name = %q, want trimmed %q", rec.Name, "Anna")
	}
	if rec.Category != birthday.CategoryFamily {
		t.Errorf("Category = %q, want %q", rec.Category, birthday.CategoryFamily)
	}
	if !rec.ImageURL.Valid || rec.ImageURL.String != "https://example.com/a.jpg" {
		t.Errorf("ImageURL = %+v, want the given URL", rec.ImageURL)
	}

	// The owner row must exist after the first create.
	if _, err := users.GetByID(ctx, 42); err != nil {
		t.Errorf("owner user was not ensured: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestBirthdayService(testNow)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{
			name:    "empty name",
			req:     CreateRequest{OwnerID: 1, Name: "   ", Birthdate: "1990-03-12"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "overlong name",
			req:     CreateRequest{OwnerID: 1, Name: strings.Repeat("x", 101), Birthdate: "1990-03-12"},
			wantErr: ErrInvalidName,
		},
		{
			name:    "impossible date",
			req:     CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "2025-02-30"},
			wantErr: birthday.ErrUnparseableDate,
		},
		{
			name:    "year too old",
			req:     CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1899-03-12"},
			wantErr: ErrImplausibleYear,
		},
		{
			name:    "year in the future",
			req:     CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "2030-03-12"},
			wantErr: ErrImplausibleYear,
		},
		{
			name:    "bad image url",
			req:     CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-03-12", ImageURL: "not-a-url"},
			wantErr: ErrInvalidImageURL,
		},
	}

	for _, tc := range tests {
		if _, err := svc.Create(ctx, tc.req); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: Create error = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestCreateWithUnknownYear(t *testing.T) {
	svc, _, _ := newTestBirthdayService(testNow)

	rec, err := svc.Create(context.Background(), CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "03-12"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if rec.Birthdate.YearKnown() {
		t.Errorf("expected an unknown birth year, got %d", rec.Birthdate.Year)
	}
	if _, ok := birthday.Age(rec.Birthdate, testNow); ok {
		t.Errorf("age must be unknown when the birth year is unknown")
	}
}

func TestUpdatePatchSemantics(t *testing.T) {
	svc, _, _ := newTestBirthdayService(testNow)
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateRequest{
		OwnerID: 1, Name: "Anna", Birthdate: "1990-03-12", Category: "family", Note: "old note",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	newName := "Anna Smith"
	emptyNote := ""
	updated, err := svc.Update(ctx, rec.ID, UpdatePatch{Name: &newName, Note: &emptyNote})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.Name != "Anna Smith" {
		t.Errorf("Name = %q, want %q", updated.Name, "Anna Smith")
	}
	// nil field stays untouched, empty string clears.
	if updated.Category != birthday.CategoryFamily {
		t.Errorf("Category changed unexpectedly to %q", updated.Category)
	}
	if updated.Birthdate != rec.Birthdate {
		t.Errorf("Birthdate changed unexpectedly to %v", updated.Birthdate)
	}
	if updated.Note.Valid {
		t.Errorf("Note = %+v, want cleared", updated.Note)
	}
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	svc, birthdays, _ := newTestBirthdayService(testNow)
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-03-12"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := svc.SoftDelete(ctx, rec.ID); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}
	first, err := birthdays.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if !first.IsDeleted || !first.DeletedAt.Valid {
		t.Fatalf("record not marked deleted: %+v", first)
	}

	// A second delete is a no-op and keeps the original deletion timestamp.
	if err := svc.SoftDelete(ctx, rec.ID); err != nil {
		t.Fatalf("second SoftDelete returned error: %v", err)
	}
	second, _ := birthdays.GetByID(ctx, rec.ID)
	if !second.DeletedAt.Time.Equal(first.DeletedAt.Time) {
		t.Errorf("deleted_at changed on repeat delete: %v vs %v", second.DeletedAt.Time, first.DeletedAt.Time)
	}

	// Deleted records leave the active listing but not the full one.
	active, _ := svc.ListActive(ctx, 1)
	if len(active) != 0 {
		t.Errorf("active listing still contains %d records", len(active))
	}
	all, _ := svc.ListAll(ctx, 1, true)
	if len(all) != 1 {
		t.Errorf("full listing contains %d records, want 1", len(all))
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	svc, birthdays, _ := newTestBirthdayService(testNow)
	ctx := context.Background()

	rec, err := svc.Create(ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-03-12"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Restoring a live record is an invalid-state error.
	if err := svc.Restore(ctx, rec.ID); !errors.Is(err, idb.ErrBirthdayNotDeleted) {
		t.Errorf("Restore on live record = %v, want ErrBirthdayNotDeleted", err)
	}

	if err := svc.SoftDelete(ctx, rec.ID); err != nil {
		t.Fatalf("SoftDelete returned error: %v", err)
	}
	if err := svc.Restore(ctx, rec.ID); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}

	restored, _ := birthdays.GetByID(ctx, rec.ID)
	if restored.IsDeleted || restored.DeletedAt.Valid {
		t.Errorf("record still flagged deleted after restore: %+v", restored)
	}
	active, _ := svc.ListActive(ctx, 1)
	if len(active) != 1 {
		t.Errorf("active listing contains %d records after restore, want 1", len(active))
	}
}

func TestByNameResolution(t *testing.T) {
	svc, _, _ := newTestBirthdayService(testNow)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateRequest{OwnerID: 1, Name: "Anna", Birthdate: "1990-03-12"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Create(ctx, CreateRequest{OwnerID: 1, Name: "anna", Birthdate: "1985-07-01"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Case-insensitive match over two records must refuse to guess.
	var ambiguous *AmbiguousNameError
	if _, err := svc.SoftDeleteByName(ctx, 1, "ANNA"); !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousNameError, got %v", err)
	}
	if len(ambiguous.Matches) != 2 {
		t.Errorf("ambiguous matches = %d, want 2", len(ambiguous.Matches))
	}

	if _, err := svc.SoftDeleteByName(ctx, 1, "Boris"); !errors.Is(err, idb.ErrBirthdayNotFound) {
		t.Errorf("unknown name error = %v, want ErrBirthdayNotFound", err)
	}

	// A unique name resolves, deletes and restores by name.
	if _, err := svc.Create(ctx, CreateRequest{OwnerID: 1, Name: "Boris", Birthdate: "1970-01-01"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	found, err := svc.GetByName(ctx, 1, "BORIS")
	if err != nil {
		t.Fatalf("GetByName returned error: %v", err)
	}
	if found.Name != "Boris" {
		t.Errorf("GetByName resolved %q, want Boris", found.Name)
	}
	deleted, err := svc.SoftDeleteByName(ctx, 1, "boris")
	if err != nil {
		t.Fatalf("SoftDeleteByName returned error: %v", err)
	}
	if deleted.Name != "Boris" {
		t.Errorf("deleted record name = %q, want Boris", deleted.Name)
	}
	if _, err := svc.RestoreByName(ctx, 1, "Boris"); err != nil {
		t.Fatalf("RestoreByName returned error: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestBirthdayService(testNow)
	ctx := context.Background()

	seed := []CreateRequest{
		{OwnerID: 1, Name: "Anna", Birthdate: "1990-03-12", Category: "family"},
		{OwnerID: 1, Name: "Boris", Birthdate: "1985-06-20", Category: "work"},
		{OwnerID: 1, Name: "Clara", Birthdate: "06-01", Category: "work"},
		{OwnerID: 2, Name: "Dmitri", Birthdate: "1991-06-05", Category: "work"},
	}
	for _, req := range seed {
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("Create(%s) returned error: %v", req.Name, err)
		}
	}

	june, err := svc.ListByMonth(ctx, 1, time.June)
	if err != nil {
		t.Fatalf("ListByMonth returned error: %v", err)
	}
	if len(june) != 2 {
		t.Errorf("ListByMonth(June) = %d records, want 2", len(june))
	}

	work, err := svc.ListByCategory(ctx, 1, "WORK")
	if err != nil {
		t.Fatalf("ListByCategory returned error: %v", err)
	}
	if len(work) != 2 {
		t.Errorf("ListByCategory(work) = %d records, want 2", len(work))
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestBirthdayService(testNow)
	ctx := context.Background()

	seed := []CreateRequest{
		{OwnerID: 1, Name: "Anna", Birthdate: "1990-06-20", Category: "family"},
		{OwnerID: 1, Name: "Boris", Birthdate: "1980-12-01", Category: "work"},
		{OwnerID: 1, Name: "Clara", Birthdate: "03-12", Category: "friend"},
	}
	for _, req := range seed {
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("Create(%s) returned error: %v", req.Name, err)
		}
	}

	stats, err := svc.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalBirthdays != 3 {
		t.Errorf("TotalBirthdays = %d, want 3", stats.TotalBirthdays)
	}
	if stats.UpcomingThisMonth != 1 {
		t.Errorf("UpcomingThisMonth = %d, want 1", stats.UpcomingThisMonth)
	}
	if stats.Next == nil || stats.Next.Name != "Anna" {
		t.Errorf("Next = %+v, want Anna", stats.Next)
	}
	// Clara has no known year and must not enter the age aggregates.
	if stats.MinAge != 34 || stats.MaxAge != 44 {
		t.Errorf("age range = [%d, %d], want [34, 44]", stats.MinAge, stats.MaxAge)
	}
}

func TestSetTimezone(t *testing.T) {
	svc, _, users := newTestBirthdayService(testNow)
	ctx := context.Background()

	if err := svc.SetTimezone(ctx, 1, "Not/AZone"); err == nil {
		t.Errorf("expected an error for an unknown timezone")
	}
	if err := svc.SetTimezone(ctx, 1, "Europe/Berlin"); err != nil {
		t.Fatalf("SetTimezone returned error: %v", err)
	}
	u, err := users.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if u.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q, want Europe/Berlin", u.Timezone)
	}
}
