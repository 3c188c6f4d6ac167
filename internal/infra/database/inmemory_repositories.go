package database

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
	"birthday_notification_bot/internal/domain/user"
)

// In-memory implementations of the repositories, safe for concurrent use.
// They back the test suite and the `memory://` DATABASE_URL for local runs
// without a database server.

type InMemoryUserRepository struct {
	mu              sync.RWMutex
	defaultTimezone string
	store           map[int64]*user.User
}

func NewInMemoryUserRepository(defaultTimezone string) *InMemoryUserRepository {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &InMemoryUserRepository{defaultTimezone: defaultTimezone, store: make(map[int64]*user.User)}
}

func (r *InMemoryUserRepository) Ensure(ctx context.Context, id int64, username, firstName string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.store[id]
	if !ok {
		u = &user.User{ID: id, Timezone: r.defaultTimezone, CreatedAt: time.Now().UTC()}
		r.store[id] = u
	}
	if username != "" {
		u.Username = sql.NullString{String: username, Valid: true}
	}
	if firstName != "" {
		u.FirstName = sql.NullString{String: firstName, Valid: true}
	}
	out := *u
	return &out, nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.store[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *InMemoryUserRepository) SetTimezone(ctx context.Context, id int64, timezone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.store[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Timezone = timezone
	return nil
}

func (r *InMemoryUserRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.store[id]
	if !ok {
		return ErrUserNotFound
	}
	if u.IsDeleted {
		return nil
	}
	u.IsDeleted = true
	u.DeletedAt = sql.NullTime{Time: at, Valid: true}
	return nil
}

func (r *InMemoryUserRepository) ListActive(ctx context.Context) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*user.User, 0, len(r.store))
	for _, u := range r.store {
		if u.IsDeleted {
			continue
		}
		out := *u
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type InMemoryBirthdayRepository struct {
	mu     sync.RWMutex
	nextID int64
	store  map[int64]*birthday.Record
}

func NewInMemoryBirthdayRepository() *InMemoryBirthdayRepository {
	return &InMemoryBirthdayRepository{nextID: 1, store: make(map[int64]*birthday.Record)}
}

func (r *InMemoryBirthdayRepository) Create(ctx context.Context, rec *birthday.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	rec.ID = r.nextID
	r.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	stored := *rec
	r.store[rec.ID] = &stored
	return nil
}

func (r *InMemoryBirthdayRepository) GetByID(ctx context.Context, id int64) (*birthday.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.store[id]
	if !ok {
		return nil, ErrBirthdayNotFound
	}
	out := *rec
	return &out, nil
}

func (r *InMemoryBirthdayRepository) Update(ctx context.Context, rec *birthday.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.store[rec.ID]
	if !ok {
		return ErrBirthdayNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	rec.CreatedAt = stored.CreatedAt
	rec.IsDeleted = stored.IsDeleted
	rec.DeletedAt = stored.DeletedAt
	updated := *rec
	r.store[rec.ID] = &updated
	return nil
}

func (r *InMemoryBirthdayRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.store[id]
	if !ok {
		return ErrBirthdayNotFound
	}
	if rec.IsDeleted {
		return nil // keep original deleted_at
	}
	rec.IsDeleted = true
	rec.DeletedAt = sql.NullTime{Time: at, Valid: true}
	return nil
}

func (r *InMemoryBirthdayRepository) Restore(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.store[id]
	if !ok {
		return ErrBirthdayNotFound
	}
	if !rec.IsDeleted {
		return ErrBirthdayNotDeleted
	}
	rec.IsDeleted = false
	rec.DeletedAt = sql.NullTime{}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryBirthdayRepository) ListActive(ctx context.Context, ownerID int64) ([]*birthday.Record, error) {
	return r.list(func(rec *birthday.Record) bool {
		return rec.OwnerID == ownerID && !rec.IsDeleted
	})
}

func (r *InMemoryBirthdayRepository) ListAll(ctx context.Context, ownerID int64, includeDeleted bool) ([]*birthday.Record, error) {
	return r.list(func(rec *birthday.Record) bool {
		return rec.OwnerID == ownerID && (includeDeleted || !rec.IsDeleted)
	})
}

func (r *InMemoryBirthdayRepository) ListAllUsersActive(ctx context.Context) ([]*birthday.Record, error) {
	return r.list(func(rec *birthday.Record) bool { return !rec.IsDeleted })
}

func (r *InMemoryBirthdayRepository) FindByName(ctx context.Context, ownerID int64, name string, deleted bool) ([]*birthday.Record, error) {
	return r.list(func(rec *birthday.Record) bool {
		return rec.OwnerID == ownerID && rec.IsDeleted == deleted && strings.EqualFold(rec.Name, name)
	})
}

func (r *InMemoryBirthdayRepository) list(match func(*birthday.Record) bool) ([]*birthday.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*birthday.Record, 0)
	for _, rec := range r.store {
		if match(rec) {
			out := *rec
			records = append(records, &out)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

type markerKey struct {
	birthdayID int64
	job        delivery.JobType
	periodKey  string
}

type InMemoryDeliveryRepository struct {
	mu     sync.Mutex
	nextID int64
	store  map[markerKey]*delivery.Marker
}

func NewInMemoryDeliveryRepository() *InMemoryDeliveryRepository {
	return &InMemoryDeliveryRepository{nextID: 1, store: make(map[markerKey]*delivery.Marker)}
}

func (r *InMemoryDeliveryRepository) Exists(ctx context.Context, birthdayID int64, job delivery.JobType, periodKey string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.store[markerKey{birthdayID, job, periodKey}]
	return ok, nil
}

func (r *InMemoryDeliveryRepository) Create(ctx context.Context, m *delivery.Marker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := markerKey{m.BirthdayID, m.Job, m.PeriodKey}
	if _, ok := r.store[key]; ok {
		return ErrDuplicateMarker
	}
	m.ID = r.nextID
	r.nextID++
	stored := *m
	r.store[key] = &stored
	return nil
}

// Count reports the number of stored markers; used by tests and diagnostics.
func (r *InMemoryDeliveryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.store)
}

var (
	_ user.Repository     = (*InMemoryUserRepository)(nil)
	_ birthday.Repository = (*InMemoryBirthdayRepository)(nil)
	_ delivery.Repository = (*InMemoryDeliveryRepository)(nil)
)
