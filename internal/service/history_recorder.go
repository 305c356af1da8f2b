package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/repository"
)

// HistoryRecorder appends audit entries for complaint changes. A failed append is
// logged; the complaint change it describes is already committed.
type HistoryRecorder struct {
	repo   repository.ComplaintHistoryRepository
	logger *zap.Logger
}

// NewHistoryRecorder creates a recorder. A nil repo disables auditing.
func NewHistoryRecorder(repo repository.ComplaintHistoryRepository, logger *zap.Logger) *HistoryRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryRecorder{repo: repo, logger: logger}
}

// Record stores one change made by actor.
func (h *HistoryRecorder) Record(ctx context.Context, complaintID string, actor events.Actor, changeType domain.ComplaintChangeType, oldValue, newValue map[string]any) {
	if h == nil || h.repo == nil {
		return
	}
	entry := &domain.ComplaintHistory{
		ID:            uuid.NewString(),
		ComplaintID:   complaintID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.StaffID,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if err := h.repo.Create(ctx, entry); err != nil {
		h.logger.Warn("record complaint history",
			zap.String("complaint_id", complaintID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}
