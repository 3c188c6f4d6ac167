package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/user"
	idb "birthday_notification_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

const maxNameLength = 100

// Validation errors surfaced synchronously to the caller; never retried.
var (
	ErrInvalidName     = fmt.Errorf("name must be non-empty and at most %d characters", maxNameLength)
	ErrImplausibleYear = fmt.Errorf("birth year must be %d or later and not in the future", birthday.MinPlausibleYear)
	ErrInvalidImageURL = fmt.Errorf("image reference must be a well-formed http(s) URL")
)

// AmbiguousNameError reports that a by-name lookup matched several records;
// the caller must disambiguate instead of the service guessing.
type AmbiguousNameError struct {
	Name    string
	Matches []*birthday.Record
}

func (e *AmbiguousNameError) Error() string {
	return fmt.Sprintf("name %q matches %d birthday records", e.Name, len(e.Matches))
}

// CreateRequest is a fully assembled create call; the transport layer's
// multi-step flow collects it before invoking Create once.
type CreateRequest struct {
	OwnerID   int64
	Name      string
	Birthdate string // "YYYY-MM-DD", or "MM-DD" when the year is unknown
	Category  string
	ImageURL  string
	Note      string
}

// UpdatePatch carries partial update semantics: nil fields stay untouched,
// empty strings clear optional fields.
type UpdatePatch struct {
	Name      *string
	Birthdate *string
	Category  *string
	ImageURL  *string
	Note      *string
}

// BirthdayService is the lifecycle manager for birthday records: it validates
// and sequences mutations before delegating to the store.
type BirthdayService struct {
	users     user.Repository
	birthdays birthday.Repository
	clock     Clock
	logger    *logrus.Entry
}

func NewBirthdayService(ur user.Repository, br birthday.Repository, clock Clock, logger *logrus.Entry) *BirthdayService {
	return &BirthdayService{users: ur, birthdays: br, clock: clock, logger: logger}
}

func (s *BirthdayService) Create(ctx context.Context, req CreateRequest) (*birthday.Record, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	date, err := birthday.ParseDate(strings.TrimSpace(req.Birthdate))
	if err != nil {
		return nil, err
	}
	if date.YearKnown() && !birthday.PlausibleYear(date.Year, s.clock.Now()) {
		return nil, ErrImplausibleYear
	}

	imageURL := strings.TrimSpace(req.ImageURL)
	if imageURL != "" && !validImageURL(imageURL) {
		return nil, ErrInvalidImageURL
	}

	if _, err := s.users.Ensure(ctx, req.OwnerID, "", ""); err != nil {
		return nil, fmt.Errorf("failed to ensure owner user: %w", err)
	}

	rec := &birthday.Record{
		OwnerID:   req.OwnerID,
		Name:      name,
		Birthdate: date,
		Category:  birthday.NormalizeCategory(req.Category),
		ImageURL:  optionalString(imageURL),
		Note:      optionalString(strings.TrimSpace(req.Note)),
	}
	if err := s.birthdays.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create birthday record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"owner_id":    rec.OwnerID,
		"birthday_id": rec.ID,
		"category":    rec.Category,
	}).Info("Birthday record created")
	return rec, nil
}

func (s *BirthdayService) Update(ctx context.Context, id int64, patch UpdatePatch) (*birthday.Record, error) {
	rec, err := s.birthdays.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len(name) > maxNameLength {
			return nil, ErrInvalidName
		}
		rec.Name = name
	}
	if patch.Birthdate != nil {
		date, err := birthday.ParseDate(strings.TrimSpace(*patch.Birthdate))
		if err != nil {
			return nil, err
		}
		if date.YearKnown() && !birthday.PlausibleYear(date.Year, s.clock.Now()) {
			return nil, ErrImplausibleYear
		}
		rec.Birthdate = date
	}
	if patch.Category != nil {
		rec.Category = birthday.NormalizeCategory(*patch.Category)
	}
	if patch.ImageURL != nil {
		imageURL := strings.TrimSpace(*patch.ImageURL)
		if imageURL != "" && !validImageURL(imageURL) {
			return nil, ErrInvalidImageURL
		}
		rec.ImageURL = optionalString(imageURL)
	}
	if patch.Note != nil {
		rec.Note = optionalString(strings.TrimSpace(*patch.Note))
	}

	if err := s.birthdays.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update birthday record %d: %w", id, err)
	}
	return rec, nil
}

// SoftDelete flags the record as deleted. Deleting an already-deleted record
// is a no-op.
func (s *BirthdayService) SoftDelete(ctx context.Context, id int64) error {
	return s.birthdays.SoftDelete(ctx, id, s.clock.Now())
}

// SoftDeleteByName resolves an owner's active record by name and deletes it.
// Multiple matches yield an AmbiguousNameError listing the candidates.
func (s *BirthdayService) SoftDeleteByName(ctx context.Context, ownerID int64, name string) (*birthday.Record, error) {
	rec, err := s.resolveByName(ctx, ownerID, name, false)
	if err != nil {
		return nil, err
	}
	if err := s.birthdays.SoftDelete(ctx, rec.ID, s.clock.Now()); err != nil {
		return nil, err
	}
	return rec, nil
}

// Restore clears the deletion flag; restoring a record that is not deleted
// is an invalid-state error.
func (s *BirthdayService) Restore(ctx context.Context, id int64) error {
	return s.birthdays.Restore(ctx, id)
}

// RestoreByName resolves an owner's deleted record by name and restores it.
func (s *BirthdayService) RestoreByName(ctx context.Context, ownerID int64, name string) (*birthday.Record, error) {
	rec, err := s.resolveByName(ctx, ownerID, name, true)
	if err != nil {
		return nil, err
	}
	if err := s.birthdays.Restore(ctx, rec.ID); err != nil {
		return nil, err
	}
	rec.IsDeleted = false
	rec.DeletedAt = sql.NullTime{}
	return rec, nil
}

// GetByName resolves an owner's single active record by name, surfacing
// ambiguity the same way the by-name delete and restore do.
func (s *BirthdayService) GetByName(ctx context.Context, ownerID int64, name string) (*birthday.Record, error) {
	return s.resolveByName(ctx, ownerID, name, false)
}

func (s *BirthdayService) resolveByName(ctx context.Context, ownerID int64, name string, deleted bool) (*birthday.Record, error) {
	matches, err := s.birthdays.FindByName(ctx, ownerID, strings.TrimSpace(name), deleted)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve birthday by name: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, idb.ErrBirthdayNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, &AmbiguousNameError{Name: name, Matches: matches}
	}
}

func (s *BirthdayService) ListActive(ctx context.Context, ownerID int64) ([]*birthday.Record, error) {
	return s.birthdays.ListActive(ctx, ownerID)
}

func (s *BirthdayService) ListAll(ctx context.Context, ownerID int64, includeDeleted bool) ([]*birthday.Record, error) {
	return s.birthdays.ListAll(ctx, ownerID, includeDeleted)
}

func (s *BirthdayService) ListByCategory(ctx context.Context, ownerID int64, category string) ([]*birthday.Record, error) {
	cat := birthday.NormalizeCategory(category)
	records, err := s.birthdays.ListActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	filtered := make([]*birthday.Record, 0, len(records))
	for _, rec := range records {
		if rec.Category == cat {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func (s *BirthdayService) ListByMonth(ctx context.Context, ownerID int64, month time.Month) ([]*birthday.Record, error) {
	records, err := s.birthdays.ListActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	filtered := make([]*birthday.Record, 0, len(records))
	for _, rec := range records {
		if rec.Birthdate.Month == month {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// SetTimezone records the owner's IANA timezone after validating it.
func (s *BirthdayService) SetTimezone(ctx context.Context, ownerID int64, timezone string) error {
	if !user.ValidTimezone(timezone) {
		return fmt.Errorf("unknown timezone %q", timezone)
	}
	if _, err := s.users.Ensure(ctx, ownerID, "", ""); err != nil {
		return fmt.Errorf("failed to ensure owner user: %w", err)
	}
	return s.users.SetTimezone(ctx, ownerID, timezone)
}

// NextBirthday is the soonest upcoming record in a user's stats.
type NextBirthday struct {
	Name      string
	Date      birthday.Date
	DaysUntil int
	Category  birthday.Category
}

// UserStats summarizes one user's active records.
type UserStats struct {
	TotalBirthdays      int
	UpcomingThisMonth   int
	Next                *NextBirthday
	CategoryBreakdown   map[birthday.Category]int
	MonthlyDistribution map[time.Month]int
	AverageAge          float64
	MinAge              int
	MaxAge              int
}

// Stats computes summary statistics over the owner's active records,
// evaluated on the owner's local calendar date.
func (s *BirthdayService) Stats(ctx context.Context, ownerID int64) (*UserStats, error) {
	records, err := s.birthdays.ListActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	localNow := s.clock.Now()
	if u, err := s.users.GetByID(ctx, ownerID); err == nil {
		localNow = localNow.In(u.Location())
	}

	stats := &UserStats{
		TotalBirthdays:      len(records),
		CategoryBreakdown:   make(map[birthday.Category]int),
		MonthlyDistribution: make(map[time.Month]int),
	}

	var ages []int
	for _, rec := range records {
		stats.CategoryBreakdown[rec.Category]++
		stats.MonthlyDistribution[rec.Birthdate.Month]++

		if rec.Birthdate.Month == localNow.Month() && rec.Birthdate.Day >= localNow.Day() {
			stats.UpcomingThisMonth++
		}

		du := birthday.DaysUntil(rec.Birthdate, localNow)
		if stats.Next == nil || du < stats.Next.DaysUntil {
			stats.Next = &NextBirthday{Name: rec.Name, Date: rec.Birthdate, DaysUntil: du, Category: rec.Category}
		}

		if age, ok := birthday.Age(rec.Birthdate, localNow); ok {
			ages = append(ages, age)
		}
	}

	if len(ages) > 0 {
		sum := 0
		stats.MinAge, stats.MaxAge = ages[0], ages[0]
		for _, a := range ages {
			sum += a
			if a < stats.MinAge {
				stats.MinAge = a
			}
			if a > stats.MaxAge {
				stats.MaxAge = a
			}
		}
		stats.AverageAge = float64(sum) / float64(len(ages))
	}
	return stats, nil
}

func validImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func optionalString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
