package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// MemoryComplaintRepository is an in-memory implementation of ComplaintRepository.
type MemoryComplaintRepository struct {
	mu         sync.RWMutex
	complaints map[string]*domain.Complaint
}

// NewMemoryComplaintRepository creates an empty in-memory complaint store.
func NewMemoryComplaintRepository() *MemoryComplaintRepository {
	return &MemoryComplaintRepository{complaints: make(map[string]*domain.Complaint)}
}

// Create stores a copy of the complaint at version 1.
func (r *MemoryComplaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	c.Version = 1
	if c.AssignedUsers == nil {
		c.AssignedUsers = []string{}
	}
	r.complaints[c.ID] = c.Clone()
	return nil
}

// GetByID returns a copy of the complaint or pgx.ErrNoRows.
func (r *MemoryComplaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.complaints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c.Clone(), nil
}

// List returns copies ordered by creation time, then ID.
func (r *MemoryComplaintRepository) List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Complaint
	for _, c := range r.complaints {
		if matchesComplaint(c, filter) {
			result = append(result, *c.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

// UpdateIf applies patch when the stored version still equals expectedVersion.
func (r *MemoryComplaintRepository) UpdateIf(ctx context.Context, id string, expectedVersion int64, patch ComplaintPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.complaints[id]
	if !ok || c.Version != expectedVersion {
		return false, nil
	}
	if patch.IsEmpty() {
		return true, nil
	}
	next := c.Clone()
	applyPatch(next, patch)
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	r.complaints[id] = next
	return true, nil
}

// CountByAssignee counts complaints assigned to staffID in any of statuses.
func (r *MemoryComplaintRepository) CountByAssignee(ctx context.Context, staffID string, statuses []domain.ComplaintStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, c := range r.complaints {
		if c.AssignedTo == nil || *c.AssignedTo != staffID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, c.Status) {
			continue
		}
		count++
	}
	return count, nil
}

func applyPatch(c *domain.Complaint, p ComplaintPatch) {
	if p.Department != nil {
		c.Department = *p.Department
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.AssignedTo != nil {
		v := *p.AssignedTo
		c.AssignedTo = &v
	} else if p.ClearAssignee {
		c.AssignedTo = nil
	}
	if p.AddAssignedUser != nil && !c.HasAssignedUser(*p.AddAssignedUser) {
		c.AssignedUsers = append(c.AssignedUsers, *p.AddAssignedUser)
	}
	if p.BreachedAt != nil && c.SLA.BreachedAt == nil {
		v := *p.BreachedAt
		c.SLA.BreachedAt = &v
	}
	if p.TimeRemaining != nil {
		c.SLA.TimeRemaining = *p.TimeRemaining
	}
	if p.EvaluatedAt != nil {
		v := *p.EvaluatedAt
		c.SLA.LastEvaluatedAt = &v
	}
	if p.Escalation != nil {
		holder := domain.Complaint{Escalation: *p.Escalation}
		c.Escalation = holder.Clone().Escalation
	}
	if p.ResolvedAt != nil {
		v := *p.ResolvedAt
		c.ResolvedAt = &v
	}
	if p.ResolvedBy != nil {
		v := *p.ResolvedBy
		c.ResolvedBy = &v
	}
	if p.PointsAwarded != nil {
		c.PointsAwarded = *p.PointsAwarded
	}
}

func matchesComplaint(c *domain.Complaint, f ComplaintFilter) bool {
	if f.City != nil && c.City != *f.City {
		return false
	}
	if f.ReporterID != nil && c.ReporterID != *f.ReporterID {
		return false
	}
	if f.Department != nil && c.Department != *f.Department {
		return false
	}
	if f.DepartmentMissing && !c.Department.IsMissing() {
		return false
	}
	if f.AssignedTo != nil && (c.AssignedTo == nil || *c.AssignedTo != *f.AssignedTo) {
		return false
	}
	if f.ResolvedBy != nil && (c.ResolvedBy == nil || *c.ResolvedBy != *f.ResolvedBy) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
		return false
	}
	return true
}

func containsStatus(statuses []domain.ComplaintStatus, status domain.ComplaintStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
