package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/repository"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// ComplaintService coordinates complaint workflows.
type ComplaintService struct {
	complaints  repository.ComplaintRepository
	staff       repository.StaffRepository
	historyRepo repository.ComplaintHistoryRepository
	history     *HistoryRecorder
	router      *DepartmentRouter
	clock       *SLAClock
	assignments *AssignmentService
	scorer      *GamificationService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	StaffRepo     repository.StaffRepository
	HistoryRepo   repository.ComplaintHistoryRepository
	History       *HistoryRecorder
	Router        *DepartmentRouter
	Clock         *SLAClock
	Assignments   *AssignmentService
	Scorer        *GamificationService
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Now           func() time.Time
}

// ComplaintCreateInput describes complaint creation payload.
type ComplaintCreateInput struct {
	Category    string
	City        string
	Title       string
	Description string
	Priority    domain.ComplaintPriority
}

// ComplaintDetails is a complaint with its live SLA view and escalation target.
type ComplaintDetails struct {
	Complaint   *domain.Complaint
	SLA         SLAEvaluation
	EscalatedTo *domain.StaffMember
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ComplaintService{
		complaints:  deps.ComplaintRepo,
		staff:       deps.StaffRepo,
		historyRepo: deps.HistoryRepo,
		history:     deps.History,
		router:      deps.Router,
		clock:       deps.Clock,
		assignments: deps.Assignments,
		scorer:      deps.Scorer,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		now:         now,
	}
}

// CreateComplaint routes, schedules and assigns a new complaint. Unknown categories
// and missing staff leave the complaint Unassigned or unowned, never rejected.
func (s *ComplaintService) CreateComplaint(ctx context.Context, reporterID string, input ComplaintCreateInput) (*domain.Complaint, error) {
	details := map[string]any{}
	if strings.TrimSpace(input.Category) == "" {
		details["category"] = "required"
	}
	if strings.TrimSpace(input.City) == "" {
		details["city"] = "required"
	}
	if strings.TrimSpace(input.Title) == "" {
		details["title"] = "required"
	}
	if input.Priority == "" {
		input.Priority = domain.ComplaintPriorityMedium
	}
	if !validPriority(input.Priority) {
		details["priority"] = "must be one of LOW, MEDIUM, HIGH, URGENT"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid complaint", details)
	}

	dept, err := s.router.Resolve(input.Category)
	if err != nil && !errors.Is(err, apperrors.ErrUnknownCategory) {
		return nil, apperrors.MapError(err)
	}

	createdAt := s.now()
	complaint := &domain.Complaint{
		ID:            uuid.NewString(),
		ReporterID:    reporterID,
		Category:      strings.TrimSpace(input.Category),
		Department:    dept,
		City:          strings.TrimSpace(input.City),
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Status:        domain.ComplaintStatusOpen,
		Priority:      input.Priority,
		AssignedUsers: []string{},
		CreatedAt:     createdAt,
	}
	complaint.SLA.Deadline = s.clock.Deadline(complaint)
	complaint.SLA.TimeRemaining = complaint.SLA.Deadline.Sub(createdAt)

	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, apperrors.MapError(err)
	}
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:        events.EventComplaintCreated,
		ComplaintID: complaint.ID,
		Actor:       events.SystemActor,
		Payload: events.ComplaintCreatedPayload{
			Category:   complaint.Category,
			Department: complaint.Department,
			City:       complaint.City,
			Priority:   complaint.Priority,
			Deadline:   complaint.SLA.Deadline,
			ReporterID: reporterID,
		},
	})

	if dept == domain.DepartmentUnassigned {
		return complaint, nil
	}
	if _, err := s.assignments.Assign(ctx, complaint.City, dept, domain.ActiveStatuses); err != nil {
		s.logger.Info("complaint left unassigned",
			zap.String("complaint_id", complaint.ID),
			zap.Error(err))
		return complaint, nil
	}
	fresh, err := s.complaints.GetByID(ctx, complaint.ID)
	if err != nil {
		return complaint, nil
	}
	return fresh, nil
}

// GetComplaint fetches a complaint by id.
func (s *ComplaintService) GetComplaint(ctx context.Context, id string) (*domain.Complaint, error) {
	complaint, err := s.complaints.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("complaint", map[string]any{"complaint_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return complaint, nil
}

// GetDetails returns the read-model view of a complaint at the current time.
func (s *ComplaintService) GetDetails(ctx context.Context, id string) (*ComplaintDetails, error) {
	complaint, err := s.GetComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	details := &ComplaintDetails{
		Complaint: complaint,
		SLA:       s.clock.Evaluate(complaint, s.now()),
	}
	if complaint.Escalation.EscalatedTo != nil {
		authority, err := s.staff.GetByID(ctx, *complaint.Escalation.EscalatedTo)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		details.EscalatedTo = authority
	}
	return details, nil
}

// CanView reports whether viewer may read complaint. Citizens see only their own reports.
func CanView(viewer *domain.StaffMember, complaint *domain.Complaint) bool {
	if viewer == nil || complaint == nil {
		return false
	}
	if viewer.Role == domain.StaffRoleCitizen {
		return complaint.ReporterID == viewer.ID
	}
	return true
}

// ListComplaints returns complaints matching filter, narrowed to the viewer's own
// reports for citizens.
func (s *ComplaintService) ListComplaints(ctx context.Context, viewer *domain.StaffMember, filter repository.ComplaintFilter) ([]domain.Complaint, error) {
	if viewer == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if viewer.Role == domain.StaffRoleCitizen {
		filter.ReporterID = &viewer.ID
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	complaints, err := s.complaints.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return complaints, nil
}

// ListHistory returns the audit trail of a complaint.
func (s *ComplaintService) ListHistory(ctx context.Context, id string) ([]domain.ComplaintHistory, error) {
	if _, err := s.GetComplaint(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.historyRepo.ListByComplaint(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ChangeStatus moves a complaint forward. Entering RESOLVED or CLOSED from an active
// status freezes its SLA snapshot, records the resolver and awards points.
func (s *ComplaintService) ChangeStatus(ctx context.Context, actor *domain.StaffMember, id string, next domain.ComplaintStatus) (*domain.Complaint, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	if actor.Role != domain.StaffRoleStaff && actor.Role != domain.StaffRoleAdmin {
		return nil, apperrors.NewForbidden("insufficient role for status change")
	}
	if !next.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}
	complaint, err := s.GetComplaint(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.StaffRoleAdmin && !complaint.HasAssignedUser(actor.ID) {
		return nil, apperrors.NewForbidden("complaint not assigned to staff")
	}
	if !complaint.Status.CanTransitionTo(next) {
		return nil, apperrors.MapError(fmt.Errorf("%w: %s to %s", apperrors.ErrInvalidTransition, complaint.Status, next))
	}

	now := s.now()
	resolving := !complaint.Status.IsTerminal() && next.IsTerminal()
	patch := repository.ComplaintPatch{Status: &next}
	var points int
	if resolving {
		eval := s.clock.Evaluate(complaint, now)
		remaining := eval.TimeRemaining
		patch.TimeRemaining = &remaining
		patch.EvaluatedAt = &now
		if eval.NewlyBreached {
			patch.BreachedAt = eval.BreachedAt
			complaint.SLA.BreachedAt = eval.BreachedAt
		}
		patch.ResolvedAt = &now
		patch.ResolvedBy = &actor.ID
		points = s.scorer.Award(complaint, now)
		patch.PointsAwarded = &points
	}

	ok, err := s.complaints.UpdateIf(ctx, complaint.ID, complaint.Version, patch)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, apperrors.MapError(fmt.Errorf("update complaint %s: %w", complaint.ID, apperrors.ErrConcurrentWriteConflict))
	}
	updated, err := s.GetComplaint(ctx, complaint.ID)
	if err != nil {
		return nil, err
	}

	staffActor := events.StaffActor(actor.ID)
	s.history.Record(ctx, complaint.ID, staffActor, domain.ChangeTypeStatus,
		map[string]any{"status": complaint.Status},
		map[string]any{"status": next})
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:        events.EventComplaintStatusChanged,
		ComplaintID: complaint.ID,
		Actor:       staffActor,
		Payload: events.ComplaintStatusChangedPayload{
			OldStatus:  complaint.Status,
			NewStatus:  next,
			ReporterID: complaint.ReporterID,
		},
	})
	if resolving {
		s.completeResolution(ctx, updated, actor, staffActor)
	}
	return updated, nil
}

func (s *ComplaintService) completeResolution(ctx context.Context, complaint *domain.Complaint, resolver *domain.StaffMember, actor events.Actor) {
	awarded, err := s.scorer.OnResolved(ctx, complaint, resolver)
	if err != nil {
		s.logger.Error("award points",
			zap.String("complaint_id", complaint.ID),
			zap.String("staff_id", resolver.ID),
			zap.Error(err))
		return
	}
	s.history.Record(ctx, complaint.ID, actor, domain.ChangeTypePoints,
		nil,
		map[string]any{"staff_id": resolver.ID, "points": awarded, "total": resolver.Points})
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:        events.EventComplaintResolved,
		ComplaintID: complaint.ID,
		Actor:       actor,
		Payload: events.ComplaintResolvedPayload{
			ResolvedBy:    resolver.ID,
			PointsAwarded: awarded,
			TotalPoints:   resolver.Points,
			ReporterID:    complaint.ReporterID,
			Breached:      complaint.SLA.BreachedAt != nil,
		},
	})
}

func validPriority(p domain.ComplaintPriority) bool {
	switch p {
	case domain.ComplaintPriorityLow, domain.ComplaintPriorityMedium, domain.ComplaintPriorityHigh, domain.ComplaintPriorityUrgent:
		return true
	}
	return false
}
