package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/resolvehub/complaint-engine/internal/api/dto"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/scheduler"
	"github.com/resolvehub/complaint-engine/internal/service"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// Backfiller corrects complaints stored without a department.
type Backfiller interface {
	Backfill(ctx context.Context) (service.BackfillReport, error)
}

// ManualAssigner runs assignment on behalf of an operator.
type ManualAssigner interface {
	AssignAs(ctx context.Context, actor events.Actor, city string, department domain.Department, statuses []domain.ComplaintStatus) (service.AssignResult, error)
}

// AdminHandler exposes operator actions.
type AdminHandler struct {
	sweeper     scheduler.Ticker
	backfiller  Backfiller
	assignments ManualAssigner
	now         func() time.Time
}

// NewAdminHandler constructs handler. A nil now uses the wall clock.
func NewAdminHandler(sweeper scheduler.Ticker, backfiller Backfiller, assignments ManualAssigner, now func() time.Time) *AdminHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AdminHandler{sweeper: sweeper, backfiller: backfiller, assignments: assignments, now: now}
}

// RunSweep POST /admin/sweep.
func (h *AdminHandler) RunSweep(c *fiber.Ctx) error {
	report, err := h.sweeper.Tick(c.UserContext(), h.now())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": report})
}

// BackfillDepartments POST /admin/departments/backfill.
func (h *AdminHandler) BackfillDepartments(c *fiber.Ctx) error {
	report, err := h.backfiller.Backfill(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": report})
}

// Assign POST /admin/assignments.
func (h *AdminHandler) Assign(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.City = strings.TrimSpace(req.City)
	details := map[string]any{}
	if req.City == "" {
		details["city"] = "required"
	}
	if !req.Department.Valid() || req.Department == domain.DepartmentUnassigned {
		details["department"] = "must be a routable department"
	}
	for _, status := range req.Statuses {
		if !status.Valid() {
			details["statuses"] = "unknown status"
		}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid assignment request", details)
	}
	statuses := req.Statuses
	if len(statuses) == 0 {
		statuses = domain.ActiveStatuses
	}

	result, err := h.assignments.AssignAs(c.UserContext(), events.StaffActor(account.ID), req.City, req.Department, statuses)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.AssignResponse{
		StaffID:      result.StaffID,
		Matched:      result.Matched,
		UpdatedCount: result.UpdatedCount,
		Conflicts:    result.Conflicts,
	}})
}
