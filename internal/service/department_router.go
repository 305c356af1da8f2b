package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/observability"
	"github.com/resolvehub/complaint-engine/internal/repository"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// DepartmentRouter maps complaint categories onto departments.
type DepartmentRouter struct {
	table      map[string]domain.Department
	complaints repository.ComplaintRepository
	history    *HistoryRecorder
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// DepartmentRouterDependencies bundles collaborators for the router.
type DepartmentRouterDependencies struct {
	Rules         config.Rules
	ComplaintRepo repository.ComplaintRepository
	History       *HistoryRecorder
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// BackfillReport summarizes one correction pass.
type BackfillReport struct {
	Scanned   int      `json:"scanned"`
	Updated   int      `json:"updated"`
	Conflicts int      `json:"conflicts"`
	Unknown   []string `json:"unknown_complaint_ids"`
}

// NewDepartmentRouter builds the router from a validated rules table.
func NewDepartmentRouter(deps DepartmentRouterDependencies) *DepartmentRouter {
	table := make(map[string]domain.Department, len(deps.Rules.Departments))
	for category, dept := range deps.Rules.Departments {
		table[config.NormalizeCategory(category)] = dept
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentRouter{
		table:      table,
		complaints: deps.ComplaintRepo,
		history:    deps.History,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Resolve returns the department for category. Unknown categories yield
// DepartmentUnassigned together with ErrUnknownCategory.
func (r *DepartmentRouter) Resolve(category string) (domain.Department, error) {
	if dept, ok := r.table[config.NormalizeCategory(category)]; ok {
		return dept, nil
	}
	r.metrics.RecordUnknownCategory()
	r.logger.Warn("unknown complaint category", zap.String("category", category))
	return domain.DepartmentUnassigned, fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, category)
}

// Backfill routes every complaint whose department is still empty. Complaints with a
// department, including manual overrides, are never read for writing, and unknown
// categories are left untouched for review.
func (r *DepartmentRouter) Backfill(ctx context.Context) (BackfillReport, error) {
	report := BackfillReport{Unknown: []string{}}
	pending, err := r.complaints.List(ctx, repository.ComplaintFilter{DepartmentMissing: true})
	if err != nil {
		return report, fmt.Errorf("list unrouted complaints: %w", err)
	}
	report.Scanned = len(pending)

	for i := range pending {
		complaint := &pending[i]
		dept, err := r.Resolve(complaint.Category)
		if err != nil {
			report.Unknown = append(report.Unknown, complaint.ID)
			continue
		}
		updated, err := r.setDepartment(ctx, complaint, dept)
		switch {
		case errors.Is(err, apperrors.ErrConcurrentWriteConflict):
			report.Conflicts++
		case err != nil:
			return report, err
		case updated:
			report.Updated++
		}
	}
	r.logger.Info("department backfill finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("updated", report.Updated),
		zap.Int("unknown", len(report.Unknown)),
		zap.Int("conflicts", report.Conflicts))
	return report, nil
}

func (r *DepartmentRouter) setDepartment(ctx context.Context, complaint *domain.Complaint, dept domain.Department) (bool, error) {
	current := complaint
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.complaints.UpdateIf(ctx, current.ID, current.Version, repository.ComplaintPatch{Department: &dept})
		if err != nil {
			return false, fmt.Errorf("route complaint %s: %w", current.ID, err)
		}
		if ok {
			r.history.Record(ctx, current.ID, events.SystemActor, domain.ChangeTypeDepartment,
				map[string]any{"department": nil},
				map[string]any{"department": dept})
			return true, nil
		}
		fresh, err := r.complaints.GetByID(ctx, current.ID)
		if err != nil {
			return false, fmt.Errorf("reload complaint %s: %w", current.ID, err)
		}
		if !fresh.Department.IsMissing() {
			r.metrics.RecordConflict("backfill", "superseded")
			return false, nil
		}
		current = fresh
	}
	r.metrics.RecordConflict("backfill", "deferred")
	return false, fmt.Errorf("route complaint %s: %w", complaint.ID, apperrors.ErrConcurrentWriteConflict)
}
