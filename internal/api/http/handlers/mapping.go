package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/resolvehub/complaint-engine/internal/api/dto"
	"github.com/resolvehub/complaint-engine/internal/auth"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/service"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

func principalAccount(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Account, nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return v
}

func complaintSummary(c *domain.Complaint) dto.ComplaintSummary {
	return dto.ComplaintSummary{
		ID:              c.ID,
		Category:        c.Category,
		Department:      c.Department,
		City:            c.City,
		Title:           c.Title,
		Status:          c.Status,
		Priority:        c.Priority,
		AssignedTo:      c.AssignedTo,
		Deadline:        c.SLA.Deadline,
		EscalationLevel: c.Escalation.Level,
		CreatedAt:       c.CreatedAt,
	}
}

func complaintReadModel(details *service.ComplaintDetails) dto.ComplaintReadModel {
	c := details.Complaint
	users := c.AssignedUsers
	if users == nil {
		users = []string{}
	}
	model := dto.ComplaintReadModel{
		ID:            c.ID,
		ReporterID:    c.ReporterID,
		Category:      c.Category,
		Department:    c.Department,
		City:          c.City,
		Title:         c.Title,
		Description:   c.Description,
		Status:        c.Status,
		Priority:      c.Priority,
		AssignedTo:    c.AssignedTo,
		AssignedUsers: users,
		SLA: dto.SLAView{
			Deadline:      details.SLA.Deadline,
			TimeRemaining: int64(details.SLA.TimeRemaining.Seconds()),
			IsOverdue:     details.SLA.IsOverdue,
			BreachedAt:    c.SLA.BreachedAt,
		},
		Escalation: dto.EscalationView{
			Level:            c.Escalation.Level,
			LevelName:        c.Escalation.Level.String(),
			EscalatedAt:      c.Escalation.EscalatedAt,
			EscalationReason: c.Escalation.Reason,
		},
		ResolvedAt:    c.ResolvedAt,
		ResolvedBy:    c.ResolvedBy,
		PointsAwarded: c.PointsAwarded,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if details.EscalatedTo != nil {
		model.Escalation.EscalatedTo = &dto.EscalationTarget{
			ID:   details.EscalatedTo.ID,
			Name: details.EscalatedTo.Name,
			Role: details.EscalatedTo.Role,
		}
	}
	return model
}

func historyResponses(entries []domain.ComplaintHistory) []dto.HistoryEntryResponse {
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.HistoryEntryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return items
}
