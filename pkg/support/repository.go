package support

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"gorm.io/gorm"
)

var ErrTicketNotFound = fmt.Errorf("support ticket: %w", apperr.ErrNotFound)

// Store persists tickets.
type Store interface {
	Create(ctx context.Context, t *Ticket) error
	List(ctx context.Context) ([]Ticket, error)
	Resolve(ctx context.Context, id int64, at time.Time) (*Ticket, error)
}

type Repository struct {
	db    *gorm.DB
	table string
}

func NewRepository(db *gorm.DB, table string) *Repository {
	if table == "" {
		table = Ticket{}.TableName()
	}
	return &Repository{db: db, table: table}
}

func (r *Repository) AutoMigrate() error {
	return r.db.Table(r.table).AutoMigrate(&Ticket{})
}

func (r *Repository) Create(ctx context.Context, t *Ticket) error {
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	return r.db.WithContext(ctx).Table(r.table).Create(t).Error
}

func (r *Repository) List(ctx context.Context) ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.WithContext(ctx).Table(r.table).
		Order("created_at DESC").Order("id DESC").
		Find(&tickets).Error
	return tickets, err
}

func (r *Repository) Resolve(ctx context.Context, id int64, at time.Time) (*Ticket, error) {
	result := r.db.WithContext(ctx).Table(r.table).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrTicketNotFound
	}

	var t Ticket
	err := r.db.WithContext(ctx).Table(r.table).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	return &t, err
}

// MemoryStore keeps tickets in process for the memory driver.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	tickets map[int64]Ticket
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[int64]Ticket), clock: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, t *Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = m.clock().UTC()
	t.UpdatedAt = t.CreatedAt
	m.tickets[t.ID] = *t
	return nil
}

func (m *MemoryStore) List(context.Context) ([]Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Ticket, 0, len(m.tickets))
	for _, t := range m.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) Resolve(_ context.Context, id int64, at time.Time) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrTicketNotFound
	}
	t.ResolvedAt = &at
	t.UpdatedAt = at
	m.tickets[id] = t
	return &t, nil
}
