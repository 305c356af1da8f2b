package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/resolvehub/complaint-engine/internal/domain"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// MemoryStaffRepository is an in-memory implementation of StaffRepository.
type MemoryStaffRepository struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

// NewMemoryStaffRepository creates a store seeded with members.
func NewMemoryStaffRepository(members ...domain.StaffMember) *MemoryStaffRepository {
	r := &MemoryStaffRepository{staff: make(map[string]domain.StaffMember, len(members))}
	for _, m := range members {
		r.staff[m.ID] = m
	}
	return r
}

func (r *MemoryStaffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.staff[staff.ID]; ok {
		return fmt.Errorf("%w: staff %s", apperrors.ErrDuplicate, staff.ID)
	}
	if err := r.checkEmailLocked(staff.ID, staff.Email); err != nil {
		return err
	}
	now := time.Now().UTC()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	r.staff[staff.ID] = *staff
	return nil
}

func (r *MemoryStaffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (r *MemoryStaffRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.TrimSpace(email)
	for _, m := range r.staff {
		if email != "" && strings.EqualFold(m.Email, email) {
			return &m, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemoryStaffRepository) Update(ctx context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.staff[staff.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if err := r.checkEmailLocked(staff.ID, staff.Email); err != nil {
		return err
	}
	staff.Points = current.Points
	staff.CreatedAt = current.CreatedAt
	staff.UpdatedAt = time.Now().UTC()
	r.staff[staff.ID] = *staff
	return nil
}

func (r *MemoryStaffRepository) checkEmailLocked(id, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	for _, m := range r.staff {
		if m.ID != id && strings.EqualFold(m.Email, email) {
			return fmt.Errorf("%w: email %s", apperrors.ErrDuplicate, email)
		}
	}
	return nil
}

func (r *MemoryStaffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.StaffMember
	for _, m := range r.staff {
		if filter.Role != nil && m.Role != *filter.Role {
			continue
		}
		if filter.Department != nil && m.Department != *filter.Department {
			continue
		}
		if filter.City != nil && m.City != *filter.City {
			continue
		}
		if filter.Active != nil && m.Active != *filter.Active {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (r *MemoryStaffRepository) AddPoints(ctx context.Context, id string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.staff[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	m.Points += delta
	if m.Points < 0 {
		m.Points = 0
	}
	m.UpdatedAt = time.Now().UTC()
	r.staff[id] = m
	return m.Points, nil
}
