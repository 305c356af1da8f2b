package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/resolvehub/complaint-engine/internal/api/dto"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/service"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// StaffHandler exposes the admin account directory.
type StaffHandler struct {
	service *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(svc *service.StaffService) *StaffHandler {
	return &StaffHandler{service: svc}
}

// ListStaff GET /admin/staff.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	filters := service.StaffListFilters{
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if v := c.Query("role"); v != "" {
		role := domain.StaffRole(strings.ToLower(v))
		filters.Role = &role
	}
	if v := c.Query("department"); v != "" {
		dept := domain.Department(v)
		filters.Department = &dept
	}
	if v := c.Query("city"); v != "" {
		filters.City = &v
	}
	if v := c.Query("active"); v != "" {
		active := v == "true"
		filters.Active = &active
	}
	members, err := h.service.ListStaffMembers(c.UserContext(), account, filters)
	if err != nil {
		return err
	}
	resp := make([]dto.StaffResponse, 0, len(members))
	for i := range members {
		resp = append(resp, staffResponse(&members[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreateStaff POST /admin/staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	var req dto.CreateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	member, err := h.service.CreateStaffMember(c.UserContext(), account, service.StaffCreateInput{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
		City:       req.City,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": staffResponse(member)})
}

// GetStaff GET /admin/staff/:id.
func (h *StaffHandler) GetStaff(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	member, err := h.service.GetStaffMemberByID(c.UserContext(), account, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(member)})
}

// UpdateStaff PATCH /admin/staff/:id.
func (h *StaffHandler) UpdateStaff(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	member, err := h.service.UpdateStaffMember(c.UserContext(), account, c.Params("id"), service.StaffUpdateInput{
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Department: req.Department,
		City:       req.City,
		Active:     req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(member)})
}

func staffResponse(m *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		Role:       m.Role,
		Department: m.Department,
		City:       m.City,
		Points:     m.Points,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
