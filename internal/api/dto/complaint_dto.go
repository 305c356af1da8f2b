package dto

import (
	"time"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	Category    string                   `json:"category"`
	City        string                   `json:"city"`
	Title       string                   `json:"title"`
	Description string                   `json:"description"`
	Priority    domain.ComplaintPriority `json:"priority"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.ComplaintStatus `json:"status"`
}

// ComplaintSummary is a list row.
type ComplaintSummary struct {
	ID              string                   `json:"id"`
	Category        string                   `json:"category"`
	Department      domain.Department        `json:"department"`
	City            string                   `json:"city"`
	Title           string                   `json:"title"`
	Status          domain.ComplaintStatus   `json:"status"`
	Priority        domain.ComplaintPriority `json:"priority"`
	AssignedTo      *string                  `json:"assignedTo"`
	Deadline        time.Time                `json:"deadline"`
	EscalationLevel domain.EscalationLevel   `json:"escalationLevel"`
	CreatedAt       time.Time                `json:"createdAt"`
}

// ComplaintReadModel exposes SLA and escalation state alongside the complaint.
type ComplaintReadModel struct {
	ID            string                   `json:"id"`
	ReporterID    string                   `json:"reporterId"`
	Category      string                   `json:"category"`
	Department    domain.Department        `json:"department"`
	City          string                   `json:"city"`
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	Status        domain.ComplaintStatus   `json:"status"`
	Priority      domain.ComplaintPriority `json:"priority"`
	AssignedTo    *string                  `json:"assignedTo"`
	AssignedUsers []string                 `json:"assignedUsers"`
	SLA           SLAView                  `json:"sla"`
	Escalation    EscalationView           `json:"escalation"`
	ResolvedAt    *time.Time               `json:"resolvedAt,omitempty"`
	ResolvedBy    *string                  `json:"resolvedBy,omitempty"`
	PointsAwarded int                      `json:"pointsAwarded"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// SLAView is the SLA block of the read model. TimeRemaining is in seconds and
// negative once overdue.
type SLAView struct {
	Deadline      time.Time  `json:"deadline"`
	TimeRemaining int64      `json:"timeRemaining"`
	IsOverdue     bool       `json:"isOverdue"`
	BreachedAt    *time.Time `json:"breachedAt"`
}

// EscalationView is the escalation block of the read model.
type EscalationView struct {
	Level            domain.EscalationLevel `json:"level"`
	LevelName        string                 `json:"levelName"`
	EscalatedAt      *time.Time             `json:"escalatedAt"`
	EscalationReason string                 `json:"escalationReason"`
	EscalatedTo      *EscalationTarget      `json:"escalatedTo"`
}

// EscalationTarget names who a complaint was escalated to.
type EscalationTarget struct {
	ID   string           `json:"id"`
	Name string           `json:"name"`
	Role domain.StaffRole `json:"role"`
}

// HistoryEntryResponse is one audit trail row.
type HistoryEntryResponse struct {
	ID            string                     `json:"id"`
	ChangeType    domain.ComplaintChangeType `json:"changeType"`
	ChangedByType domain.ActorType           `json:"changedByType"`
	ChangedByID   *string                    `json:"changedById"`
	OldValue      map[string]any             `json:"oldValue"`
	NewValue      map[string]any             `json:"newValue"`
	CreatedAt     time.Time                  `json:"createdAt"`
}

// AssignRequest triggers assignment for one {city, department} scope.
type AssignRequest struct {
	City       string                   `json:"city"`
	Department domain.Department        `json:"department"`
	Statuses   []domain.ComplaintStatus `json:"statuses"`
}

// AssignResponse reports an assignment run.
type AssignResponse struct {
	StaffID      string `json:"staffId,omitempty"`
	Matched      int    `json:"matched"`
	UpdatedCount int    `json:"updatedCount"`
	Conflicts    int    `json:"conflicts"`
}
