package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/user"
)

// ErrAdminNotAuthorized is returned when a non-superadmin invokes an admin
// operation.
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// OwnedRecord pairs a birthday record with its owner for admin views.
type OwnedRecord struct {
	Record *birthday.Record
	Owner  *user.User
}

// CategoryShare is one slice of the category breakdown.
type CategoryShare struct {
	Count      int
	Percentage float64
}

// AnalyticsReport aggregates the whole store for the superadmin.
type AnalyticsReport struct {
	TotalUsers          int
	TotalBirthdays      int
	ActiveBirthdays     int
	DeletedBirthdays    int
	CategoryBreakdown   map[birthday.Category]CategoryShare
	MonthlyDistribution map[time.Month]int
	AverageAge          float64
	MinAge              int
	MaxAge              int
	WithImage           int
	WithNote            int
}

// AdminService exposes cross-user read operations: listing, CSV export and
// the analytics report. All calls are gated on the configured superadmin ID.
type AdminService struct {
	users        user.Repository
	birthdays    birthday.Repository
	superadminID int64
	clock        Clock
}

func NewAdminService(ur user.Repository, br birthday.Repository, superadminID int64, clock Clock) *AdminService {
	return &AdminService{users: ur, birthdays: br, superadminID: superadminID, clock: clock}
}

// ListActiveUsers returns every non-deleted user, for broadcast-style fanout.
func (s *AdminService) ListActiveUsers(ctx context.Context, performingID int64) ([]*user.User, error) {
	if performingID != s.superadminID {
		return nil, ErrAdminNotAuthorized
	}
	return s.users.ListActive(ctx)
}

// ListAllBirthdays returns every user's records, optionally including
// soft-deleted rows.
func (s *AdminService) ListAllBirthdays(ctx context.Context, performingID int64, includeDeleted bool) ([]*OwnedRecord, error) {
	if performingID != s.superadminID {
		return nil, ErrAdminNotAuthorized
	}

	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]*OwnedRecord, 0)
	for _, u := range users {
		records, err := s.birthdays.ListAll(ctx, u.ID, includeDeleted)
		if err != nil {
			return nil, fmt.Errorf("failed to list birthdays for user %d: %w", u.ID, err)
		}
		for _, rec := range records {
			result = append(result, &OwnedRecord{Record: rec, Owner: u})
		}
	}
	return result, nil
}

// ExportCSV renders all records as CSV for download by the superadmin.
func (s *AdminService) ExportCSV(ctx context.Context, performingID int64, includeDeleted bool) ([]byte, error) {
	records, err := s.ListAllBirthdays(ctx, performingID, includeDeleted)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{
		"ID", "User ID", "Username", "Name", "Birth Date", "Category",
		"Image URL", "Notes", "Created At", "Is Deleted", "Deleted At",
	}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, or := range records {
		rec := or.Record
		deletedAt := ""
		if rec.DeletedAt.Valid {
			deletedAt = rec.DeletedAt.Time.Format("2006-01-02 15:04:05")
		}
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			strconv.FormatInt(rec.OwnerID, 10),
			or.Owner.Username.String,
			rec.Name,
			rec.Birthdate.String(),
			string(rec.Category),
			rec.ImageURL.String,
			rec.Note.String,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			strconv.FormatBool(rec.IsDeleted),
			deletedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// AnalyticsReport aggregates counts, category and month distributions and
// age statistics over the whole store.
func (s *AdminService) AnalyticsReport(ctx context.Context, performingID int64) (*AnalyticsReport, error) {
	all, err := s.ListAllBirthdays(ctx, performingID, true)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	report := &AnalyticsReport{
		CategoryBreakdown:   make(map[birthday.Category]CategoryShare),
		MonthlyDistribution: make(map[time.Month]int),
	}

	owners := make(map[int64]struct{})
	categoryCounts := make(map[birthday.Category]int)
	var ages []int

	for _, or := range all {
		rec := or.Record
		owners[rec.OwnerID] = struct{}{}
		report.TotalBirthdays++
		if rec.IsDeleted {
			report.DeletedBirthdays++
			continue
		}
		report.ActiveBirthdays++
		categoryCounts[rec.Category]++
		report.MonthlyDistribution[rec.Birthdate.Month]++
		if rec.ImageURL.Valid {
			report.WithImage++
		}
		if rec.Note.Valid {
			report.WithNote++
		}
		if age, ok := birthday.Age(rec.Birthdate, now); ok {
			ages = append(ages, age)
		}
	}

	report.TotalUsers = len(owners)
	for _, cat := range birthday.Categories {
		count := categoryCounts[cat]
		share := CategoryShare{Count: count}
		if report.ActiveBirthdays > 0 {
			share.Percentage = float64(count) / float64(report.ActiveBirthdays) * 100
		}
		report.CategoryBreakdown[cat] = share
	}

	if len(ages) > 0 {
		sum := 0
		report.MinAge, report.MaxAge = ages[0], ages[0]
		for _, a := range ages {
			sum += a
			if a < report.MinAge {
				report.MinAge = a
			}
			if a > report.MaxAge {
				report.MaxAge = a
			}
		}
		report.AverageAge = float64(sum) / float64(len(ages))
	}
	return report, nil
}
