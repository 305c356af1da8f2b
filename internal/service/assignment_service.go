package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/observability"
	"github.com/resolvehub/complaint-engine/internal/repository"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// AssignmentService binds complaints to staff and resolves escalation authorities.
type AssignmentService struct {
	complaints repository.ComplaintRepository
	staff      repository.StaffRepository
	tiers      map[domain.EscalationLevel]config.EscalationTier
	history    *HistoryRecorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	StaffRepo     repository.StaffRepository
	Tiers         []config.EscalationTier
	History       *HistoryRecorder
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// AssignResult reports the outcome of one assignment pass.
type AssignResult struct {
	StaffID      string `json:"staff_id"`
	Matched      int    `json:"matched"`
	UpdatedCount int    `json:"updated_count"`
	Conflicts    int    `json:"conflicts"`
}

// ReconcileResult reports how complaints held by owners who no longer qualify were moved.
type ReconcileResult struct {
	Checked    int `json:"checked"`
	Reassigned int `json:"reassigned"`
	Released   int `json:"released"`
	Conflicts  int `json:"conflicts"`
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	tiers := make(map[domain.EscalationLevel]config.EscalationTier, len(deps.Tiers))
	for _, tier := range deps.Tiers {
		tiers[tier.Level] = tier
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		complaints: deps.ComplaintRepo,
		staff:      deps.StaffRepo,
		tiers:      tiers,
		history:    deps.History,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Assign binds every complaint in {city, department, status ∈ statuses} to one staff
// member. An empty statuses slice means OPEN and IN_PROGRESS.
func (s *AssignmentService) Assign(ctx context.Context, city string, department domain.Department, statuses []domain.ComplaintStatus) (AssignResult, error) {
	return s.AssignAs(ctx, events.SystemActor, city, department, statuses)
}

// AssignAs is Assign with the change attributed to actor.
func (s *AssignmentService) AssignAs(ctx context.Context, actor events.Actor, city string, department domain.Department, statuses []domain.ComplaintStatus) (AssignResult, error) {
	var result AssignResult
	if len(statuses) == 0 {
		statuses = domain.ActiveStatuses
	}
	filter := repository.ComplaintFilter{City: &city, Department: &department, Statuses: statuses}

	candidates, err := s.staff.List(ctx, repository.StaffFilter{
		Role:       ptr(domain.StaffRoleStaff),
		Department: &department,
		City:       &city,
		Active:     ptr(true),
	})
	if err != nil {
		return result, fmt.Errorf("list eligible staff: %w", err)
	}
	if len(candidates) == 0 {
		s.metrics.RecordNoEligibleStaff()
		s.logger.Info("no eligible staff", zap.String("city", city), zap.String("department", string(department)))
		return result, fmt.Errorf("%w: city=%s department=%s", apperrors.ErrNoEligibleStaff, city, department)
	}

	scope, err := s.complaints.List(ctx, filter)
	if err != nil {
		return result, fmt.Errorf("list complaints in scope: %w", err)
	}
	result.Matched = len(scope)

	owned := make(map[string]int, len(candidates))
	for _, c := range scope {
		if c.AssignedTo != nil {
			owned[*c.AssignedTo]++
		}
	}
	chosen, err := s.selectCandidate(ctx, candidates, owned)
	if err != nil {
		return result, err
	}
	result.StaffID = chosen.ID

	for i := range scope {
		updated, err := s.bind(ctx, actor, &scope[i], chosen.ID, filter)
		switch {
		case errors.Is(err, apperrors.ErrConcurrentWriteConflict):
			result.Conflicts++
		case err != nil:
			return result, err
		case updated:
			result.UpdatedCount++
		}
	}
	s.metrics.RecordAssignments(result.UpdatedCount)
	return result, nil
}

// Reconcile re-binds every active complaint in complaints whose owner is gone, inactive,
// no longer staff, or outside the complaint's department and city. The replacement is the
// member Assign would pick for that scope; without one the owner is cleared so the
// complaint is retried as an orphan.
func (s *AssignmentService) Reconcile(ctx context.Context, actor events.Actor, complaints []domain.Complaint) (ReconcileResult, error) {
	var result ReconcileResult
	type scope struct {
		city       string
		department domain.Department
	}
	owners := map[string]*domain.StaffMember{}
	replacements := map[scope]*domain.StaffMember{}

	for i := range complaints {
		c := &complaints[i]
		if c.AssignedTo == nil || c.Status.IsTerminal() {
			continue
		}
		result.Checked++
		ownerID := *c.AssignedTo
		owner, loaded := owners[ownerID]
		if !loaded {
			var err error
			if owner, err = s.loadOwner(ctx, ownerID); err != nil {
				return result, err
			}
			owners[ownerID] = owner
		}
		if ownerEligible(owner, c) {
			continue
		}

		key := scope{c.City, c.Department}
		target, found := replacements[key]
		if !found {
			var err error
			if target, err = s.replacementFor(ctx, c.City, c.Department); err != nil {
				return result, err
			}
			replacements[key] = target
		}
		changed, err := s.rebind(ctx, actor, c, ownerID, target)
		switch {
		case errors.Is(err, apperrors.ErrConcurrentWriteConflict):
			result.Conflicts++
		case err != nil:
			return result, err
		case !changed:
		case target != nil:
			result.Reassigned++
		default:
			result.Released++
		}
	}
	s.metrics.RecordAssignments(result.Reassigned)
	if result.Reassigned+result.Released > 0 {
		s.logger.Info("owners reconciled",
			zap.Int("checked", result.Checked),
			zap.Int("reassigned", result.Reassigned),
			zap.Int("released", result.Released),
			zap.Int("conflicts", result.Conflicts))
	}
	return result, nil
}

func (s *AssignmentService) loadOwner(ctx context.Context, id string) (*domain.StaffMember, error) {
	owner, err := s.staff.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load owner %s: %w", id, err)
	}
	return owner, nil
}

// replacementFor returns nil when the scope has no eligible member.
func (s *AssignmentService) replacementFor(ctx context.Context, city string, department domain.Department) (*domain.StaffMember, error) {
	if department.IsMissing() || department == domain.DepartmentUnassigned {
		return nil, nil
	}
	candidates, err := s.staff.List(ctx, repository.StaffFilter{
		Role:       ptr(domain.StaffRoleStaff),
		Department: &department,
		City:       &city,
		Active:     ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible staff: %w", err)
	}
	if len(candidates) == 0 {
		s.metrics.RecordNoEligibleStaff()
		return nil, nil
	}
	scope, err := s.complaints.List(ctx, repository.ComplaintFilter{City: &city, Department: &department, Statuses: domain.ActiveStatuses})
	if err != nil {
		return nil, fmt.Errorf("list complaints in scope: %w", err)
	}
	owned := make(map[string]int, len(candidates))
	for _, c := range scope {
		if c.AssignedTo != nil {
			owned[*c.AssignedTo]++
		}
	}
	return s.selectCandidate(ctx, candidates, owned)
}

// rebind moves complaint from ownerID to target, or clears the owner when target is nil.
// A conflicting write is retried once while the complaint is still active and held by
// ownerID; otherwise the concurrent change wins.
func (s *AssignmentService) rebind(ctx context.Context, actor events.Actor, complaint *domain.Complaint, ownerID string, target *domain.StaffMember) (bool, error) {
	patch := repository.ComplaintPatch{ClearAssignee: true}
	if target != nil {
		patch = repository.ComplaintPatch{AssignedTo: &target.ID, AddAssignedUser: &target.ID}
	}
	current := complaint
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.complaints.UpdateIf(ctx, current.ID, current.Version, patch)
		if err != nil {
			return false, fmt.Errorf("rebind complaint %s: %w", current.ID, err)
		}
		if ok {
			if target != nil {
				s.recordAssignment(ctx, actor, current, target.ID)
			} else {
				s.history.Record(ctx, current.ID, actor, domain.ChangeTypeAssignee,
					map[string]any{"assigned_to": current.AssignedTo},
					map[string]any{"assigned_to": nil})
			}
			return true, nil
		}
		fresh, err := s.complaints.GetByID(ctx, current.ID)
		if err != nil {
			return false, fmt.Errorf("reload complaint %s: %w", current.ID, err)
		}
		if fresh.Status.IsTerminal() || !isOwnedBy(fresh, ownerID) ||
			fresh.City != complaint.City || fresh.Department != complaint.Department {
			s.metrics.RecordConflict("rebind", "superseded")
			return false, nil
		}
		current = fresh
	}
	s.metrics.RecordConflict("rebind", "deferred")
	s.logger.Info("rebind deferred after conflict", zap.String("complaint_id", complaint.ID))
	return false, fmt.Errorf("rebind complaint %s: %w", complaint.ID, apperrors.ErrConcurrentWriteConflict)
}

// ResolveAuthority returns who a complaint reaching level is routed to, following the
// configured tier for that level within the complaint's city.
func (s *AssignmentService) ResolveAuthority(ctx context.Context, complaint *domain.Complaint, level domain.EscalationLevel) (*domain.StaffMember, error) {
	tier, ok := s.tiers[level]
	if !ok {
		return nil, fmt.Errorf("%w: no authority tier for level %s", apperrors.ErrNoEligibleStaff, level)
	}
	filter := repository.StaffFilter{
		Role:   ptr(tier.Role),
		City:   ptr(complaint.City),
		Active: ptr(true),
	}
	if tier.SameDepartment {
		if complaint.Department.IsMissing() || complaint.Department == domain.DepartmentUnassigned {
			return nil, fmt.Errorf("%w: complaint %s has no department", apperrors.ErrNoEligibleStaff, complaint.ID)
		}
		filter.Department = ptr(complaint.Department)
	}
	candidates, err := s.staff.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list authorities: %w", err)
	}
	if len(candidates) == 0 {
		s.metrics.RecordNoEligibleStaff()
		return nil, fmt.Errorf("%w: %s %s in %s", apperrors.ErrNoEligibleStaff, tier.Role, complaint.Department, complaint.City)
	}
	return s.selectCandidate(ctx, candidates, nil)
}

// selectCandidate prefers the member already owning the most complaints in scope, then
// the lightest open load, then the smallest ID. Owning first keeps repeat calls stable.
func (s *AssignmentService) selectCandidate(ctx context.Context, candidates []domain.StaffMember, owned map[string]int) (*domain.StaffMember, error) {
	if len(candidates) == 1 {
		return &candidates[0], nil
	}
	load := make(map[string]int, len(candidates))
	for _, c := range candidates {
		n, err := s.complaints.CountByAssignee(ctx, c.ID, domain.ActiveStatuses)
		if err != nil {
			return nil, fmt.Errorf("count load for %s: %w", c.ID, err)
		}
		load[c.ID] = n
	}
	sorted := append([]domain.StaffMember(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].ID, sorted[j].ID
		if owned[a] != owned[b] {
			return owned[a] > owned[b]
		}
		if load[a] != load[b] {
			return load[a] < load[b]
		}
		return a < b
	})
	return &sorted[0], nil
}

// bind writes the assignment conditioned on the version read. On a conflict the
// complaint is re-read and, if it still belongs to the scope, written once more.
func (s *AssignmentService) bind(ctx context.Context, actor events.Actor, complaint *domain.Complaint, staffID string, filter repository.ComplaintFilter) (bool, error) {
	current := complaint
	for attempt := 0; attempt < 2; attempt++ {
		if isAssignedTo(current, staffID) {
			return false, nil
		}
		patch := repository.ComplaintPatch{AssignedTo: &staffID, AddAssignedUser: &staffID}
		ok, err := s.complaints.UpdateIf(ctx, current.ID, current.Version, patch)
		if err != nil {
			return false, fmt.Errorf("assign complaint %s: %w", current.ID, err)
		}
		if ok {
			s.recordAssignment(ctx, actor, current, staffID)
			return true, nil
		}
		fresh, err := s.complaints.GetByID(ctx, current.ID)
		if err != nil {
			return false, fmt.Errorf("reload complaint %s: %w", current.ID, err)
		}
		if !inScope(fresh, filter) {
			s.metrics.RecordConflict("assign", "out_of_scope")
			return false, nil
		}
		current = fresh
	}
	s.metrics.RecordConflict("assign", "deferred")
	s.logger.Info("assignment deferred after conflict", zap.String("complaint_id", complaint.ID))
	return false, fmt.Errorf("assign complaint %s: %w", complaint.ID, apperrors.ErrConcurrentWriteConflict)
}

func (s *AssignmentService) recordAssignment(ctx context.Context, actor events.Actor, complaint *domain.Complaint, staffID string) {
	s.history.Record(ctx, complaint.ID, actor, domain.ChangeTypeAssignee,
		map[string]any{"assigned_to": complaint.AssignedTo},
		map[string]any{"assigned_to": staffID})
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:        events.EventComplaintAssigned,
		ComplaintID: complaint.ID,
		Actor:       actor,
		Payload: events.ComplaintAssignedPayload{
			AssigneeStaffID:  staffID,
			PreviousAssignee: complaint.AssignedTo,
			Department:       complaint.Department,
			City:             complaint.City,
		},
	})
}

// ownerEligible mirrors the candidate filter used by Assign.
func ownerEligible(owner *domain.StaffMember, c *domain.Complaint) bool {
	return owner != nil && owner.Active && owner.Role == domain.StaffRoleStaff &&
		owner.Department == c.Department && owner.City == c.City
}

func isOwnedBy(c *domain.Complaint, staffID string) bool {
	return c.AssignedTo != nil && *c.AssignedTo == staffID
}

func isAssignedTo(c *domain.Complaint, staffID string) bool {
	return c.AssignedTo != nil && *c.AssignedTo == staffID && c.HasAssignedUser(staffID)
}

func inScope(c *domain.Complaint, f repository.ComplaintFilter) bool {
	if f.City != nil && c.City != *f.City {
		return false
	}
	if f.Department != nil && c.Department != *f.Department {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if c.Status == status {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T {
	return &v
}
