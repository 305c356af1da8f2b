package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/resolvehub/complaint-engine/internal/api/dto"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/repository"
	"github.com/resolvehub/complaint-engine/internal/service"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// ComplaintsHandler serves complaint creation, the read model and status changes.
type ComplaintsHandler struct {
	complaints *service.ComplaintService
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaintService *service.ComplaintService) *ComplaintsHandler {
	return &ComplaintsHandler{complaints: complaintService}
}

// CreateComplaint POST /complaints.
func (h *ComplaintsHandler) CreateComplaint(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.complaints.CreateComplaint(c.UserContext(), account.ID, service.ComplaintCreateInput{
		Category:    req.Category,
		City:        req.City,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.ComplaintPriority(strings.ToUpper(strings.TrimSpace(string(req.Priority)))),
	})
	if err != nil {
		return err
	}
	details, err := h.complaints.GetDetails(c.UserContext(), complaint.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": complaintReadModel(details)})
}

// ListComplaints GET /complaints.
func (h *ComplaintsHandler) ListComplaints(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	filter, err := parseComplaintFilter(c)
	if err != nil {
		return err
	}
	complaints, err := h.complaints.ListComplaints(c.UserContext(), account, filter)
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintSummary, 0, len(complaints))
	for i := range complaints {
		items = append(items, complaintSummary(&complaints[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetComplaint GET /complaints/:id.
func (h *ComplaintsHandler) GetComplaint(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	details, err := h.complaints.GetDetails(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !service.CanView(account, details.Complaint) {
		return apperrors.NewNotFound("complaint", map[string]any{"complaint_id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": complaintReadModel(details)})
}

// ChangeStatus POST /complaints/:id/status.
func (h *ComplaintsHandler) ChangeStatus(c *fiber.Ctx) error {
	account, err := principalAccount(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status := domain.ComplaintStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	if _, err := h.complaints.ChangeStatus(c.UserContext(), account, c.Params("id"), status); err != nil {
		return err
	}
	details, err := h.complaints.GetDetails(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintReadModel(details)})
}

// ListHistory GET /complaints/:id/history.
func (h *ComplaintsHandler) ListHistory(c *fiber.Ctx) error {
	entries, err := h.complaints.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

func parseComplaintFilter(c *fiber.Ctx) (repository.ComplaintFilter, error) {
	filter := repository.ComplaintFilter{}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		filter.City = &city
	}
	if raw := strings.TrimSpace(c.Query("department")); raw != "" {
		dept := domain.Department(raw)
		if !dept.Valid() {
			return filter, apperrors.NewValidationError("invalid department", map[string]any{"department": raw})
		}
		filter.Department = &dept
	}
	if assignee := strings.TrimSpace(c.Query("assigned_to")); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			status := domain.ComplaintStatus(strings.ToUpper(strings.TrimSpace(part)))
			if !status.Valid() {
				return filter, apperrors.NewValidationError("invalid status", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 20)
	if page < 1 {
		page = 1
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter, nil
}
