package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/repository"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// StaffService manages the account directory used for assignment and escalation.
type StaffService struct {
	staff       repository.StaffRepository
	complaints  repository.ComplaintRepository
	assignments *AssignmentService
	logger      *zap.Logger
}

// StaffDependencies bundles collaborators. Without ComplaintRepo and Assignments,
// profile changes do not re-bind owned complaints.
type StaffDependencies struct {
	StaffRepo     repository.StaffRepository
	ComplaintRepo repository.ComplaintRepository
	Assignments   *AssignmentService
	Logger        *zap.Logger
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role       *domain.StaffRole
	Department *domain.Department
	City       *string
	Active     *bool
	Limit      int
	Offset     int
}

// StaffCreateInput describes a new account. An empty ID is generated.
type StaffCreateInput struct {
	ID         string
	Name       string
	Email      string
	Role       domain.StaffRole
	Department domain.Department
	City       string
}

// StaffUpdateInput lists the profile fields an update may change. Nil fields are untouched.
type StaffUpdateInput struct {
	Name       *string
	Email      *string
	Role       *domain.StaffRole
	Department *domain.Department
	City       *string
	Active     *bool
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		staff:       deps.StaffRepo,
		complaints:  deps.ComplaintRepo,
		assignments: deps.Assignments,
		logger:      logger,
	}
}

func requireAdmin(actor *domain.StaffMember) error {
	if actor == nil || actor.Role != domain.StaffRoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateStaffMember adds a new active account.
func (s *StaffService) CreateStaffMember(ctx context.Context, actor *domain.StaffMember, input StaffCreateInput) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	member := &domain.StaffMember{
		ID:         strings.TrimSpace(input.ID),
		Name:       strings.TrimSpace(input.Name),
		Email:      strings.TrimSpace(input.Email),
		Role:       input.Role,
		Department: input.Department,
		City:       strings.TrimSpace(input.City),
		Active:     true,
	}
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	if err := validateStaffMember(member); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, member.ID, member.Email); err != nil {
		return nil, err
	}
	if err := s.staff.Create(ctx, member); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("staff account created",
		zap.String("staff_id", member.ID),
		zap.String("role", string(member.Role)),
		zap.String("actor_id", actor.ID))
	return member, nil
}

// ListStaffMembers lists accounts with filters.
func (s *StaffService) ListStaffMembers(ctx context.Context, actor *domain.StaffMember, filters StaffListFilters) ([]domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	if filters.Limit > 200 {
		filters.Limit = 200
	}
	members, err := s.staff.List(ctx, repository.StaffFilter{
		Role:       filters.Role,
		Department: filters.Department,
		City:       filters.City,
		Active:     filters.Active,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return members, nil
}

// GetStaffMemberByID fetches an account.
func (s *StaffService) GetStaffMemberByID(ctx context.Context, actor *domain.StaffMember, id string) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	member, err := s.staff.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("staff member", map[string]any{"id": id})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return member, nil
}

// UpdateStaffMember changes profile fields. Points are never touched here. An admin
// cannot demote or deactivate their own account. When the change leaves the member
// ineligible for complaints they own, those complaints move to an eligible member of
// the same scope, or lose their owner when the scope has none.
func (s *StaffService) UpdateStaffMember(ctx context.Context, actor *domain.StaffMember, id string, input StaffUpdateInput) (*domain.StaffMember, error) {
	member, err := s.GetStaffMemberByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	before := *member
	if input.Name != nil {
		member.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		member.Email = strings.TrimSpace(*input.Email)
	}
	if input.Role != nil {
		member.Role = *input.Role
	}
	if input.Department != nil {
		member.Department = *input.Department
	}
	if input.City != nil {
		member.City = strings.TrimSpace(*input.City)
	}
	if input.Active != nil {
		member.Active = *input.Active
	}
	if member.ID == actor.ID && (member.Role != domain.StaffRoleAdmin || !member.Active) {
		return nil, apperrors.NewConflict("cannot demote or deactivate own account", map[string]any{"id": id})
	}
	if err := validateStaffMember(member); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, member.ID, member.Email); err != nil {
		return nil, err
	}
	if err := s.staff.Update(ctx, member); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("staff account updated",
		zap.String("staff_id", member.ID),
		zap.Bool("active", member.Active),
		zap.String("actor_id", actor.ID))

	if eligibilityChanged(&before, member) {
		s.rebindOwned(ctx, actor, member.ID)
	}
	return member, nil
}

func eligibilityChanged(before, after *domain.StaffMember) bool {
	return before.Role != after.Role || before.Department != after.Department ||
		before.City != after.City || before.Active != after.Active
}

// rebindOwned hands the member's active complaints to the assignment resolver, which
// keeps the ones the member still qualifies for. The profile change is already stored,
// so failures are logged and left to the sweep, which reconciles owners every tick.
func (s *StaffService) rebindOwned(ctx context.Context, actor *domain.StaffMember, staffID string) {
	if s.complaints == nil || s.assignments == nil {
		return
	}
	owned, err := s.complaints.List(ctx, repository.ComplaintFilter{AssignedTo: &staffID, Statuses: domain.ActiveStatuses})
	if err != nil {
		s.logger.Error("list owned complaints failed", zap.String("staff_id", staffID), zap.Error(err))
		return
	}
	if len(owned) == 0 {
		return
	}
	result, err := s.assignments.Reconcile(ctx, events.StaffActor(actor.ID), owned)
	if err != nil {
		s.logger.Error("rebind owned complaints failed", zap.String("staff_id", staffID), zap.Error(err))
		return
	}
	s.logger.Info("owned complaints re-bound",
		zap.String("staff_id", staffID),
		zap.Int("reassigned", result.Reassigned),
		zap.Int("released", result.Released),
		zap.Int("conflicts", result.Conflicts))
}

func (s *StaffService) ensureEmailFree(ctx context.Context, id, email string) error {
	if email == "" {
		return nil
	}
	existing, err := s.staff.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return apperrors.MapError(err)
	case existing.ID != id:
		return apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
	}
	return nil
}

func validateStaffMember(m *domain.StaffMember) error {
	details := map[string]any{}
	if m.Name == "" {
		details["name"] = "required"
	}
	if m.Email != "" {
		if _, err := mail.ParseAddress(m.Email); err != nil {
			details["email"] = "invalid address"
		}
	}
	if !m.Role.Valid() {
		details["role"] = "must be one of citizen, staff, admin"
	}
	if m.Department != "" && (!m.Department.Valid() || m.Department == domain.DepartmentUnassigned) {
		details["department"] = "unknown department"
	}
	if m.Role != domain.StaffRoleCitizen && m.City == "" {
		details["city"] = "required for staff and admin accounts"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid staff member", details)
	}
	return nil
}
