package repository

import (
	"context"
	"sync"
	"time"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// MemoryComplaintHistoryRepository keeps audit entries in insertion order.
type MemoryComplaintHistoryRepository struct {
	mu      sync.RWMutex
	entries []domain.ComplaintHistory
}

// NewMemoryComplaintHistoryRepository creates an empty history store.
func NewMemoryComplaintHistoryRepository() *MemoryComplaintHistoryRepository {
	return &MemoryComplaintHistoryRepository{}
}

func (r *MemoryComplaintHistoryRepository) Create(ctx context.Context, history *domain.ComplaintHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, *history)
	return nil
}

func (r *MemoryComplaintHistoryRepository) ListByComplaint(ctx context.Context, complaintID string) ([]domain.ComplaintHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.ComplaintHistory
	for _, entry := range r.entries {
		if entry.ComplaintID == complaintID {
			result = append(result, entry)
		}
	}
	return result, nil
}
