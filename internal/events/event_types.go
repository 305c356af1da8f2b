package events

import (
	"time"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated       EventType = "complaint_created"
	EventComplaintStatusChanged EventType = "complaint_status_changed"
	EventComplaintAssigned      EventType = "complaint_assigned"
	EventComplaintEscalated     EventType = "complaint_escalated"
	EventComplaintSLABreached   EventType = "complaint_sla_breached"
	EventComplaintResolved      EventType = "complaint_resolved"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.ActorType `json:"type"`
	StaffID *string          `json:"staff_id,omitempty"`
}

// SystemActor is the actor for scheduler-driven changes.
var SystemActor = Actor{Type: domain.ActorTypeSystem}

// StaffActor returns the actor for a change made by staffID.
func StaffActor(staffID string) Actor {
	return Actor{Type: domain.ActorTypeStaff, StaffID: &staffID}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ComplaintID string    `json:"complaint_id"`
	Actor       Actor     `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	Category   string                   `json:"category"`
	Department domain.Department        `json:"department"`
	City       string                   `json:"city"`
	Priority   domain.ComplaintPriority `json:"priority"`
	Deadline   time.Time                `json:"deadline"`
	ReporterID string                   `json:"reporter_id"`
}

// ComplaintStatusChangedPayload payload.
type ComplaintStatusChangedPayload struct {
	OldStatus  domain.ComplaintStatus `json:"old_status"`
	NewStatus  domain.ComplaintStatus `json:"new_status"`
	ReporterID string                 `json:"reporter_id"`
}

// ComplaintAssignedPayload payload.
type ComplaintAssignedPayload struct {
	AssigneeStaffID  string            `json:"assignee_staff_id"`
	PreviousAssignee *string           `json:"previous_assignee,omitempty"`
	Department       domain.Department `json:"department"`
	City             string            `json:"city"`
}

// ComplaintEscalatedPayload payload.
type ComplaintEscalatedPayload struct {
	FromLevel   domain.EscalationLevel `json:"from_level"`
	ToLevel     domain.EscalationLevel `json:"to_level"`
	Reason      string                 `json:"reason"`
	EscalatedTo *string                `json:"escalated_to,omitempty"`
	AssignedTo  *string                `json:"assigned_to,omitempty"`
}

// ComplaintSLABreachedPayload payload.
type ComplaintSLABreachedPayload struct {
	Deadline   time.Time `json:"deadline"`
	BreachedAt time.Time `json:"breached_at"`
	AssignedTo *string   `json:"assigned_to,omitempty"`
}

// ComplaintResolvedPayload payload.
type ComplaintResolvedPayload struct {
	ResolvedBy    string `json:"resolved_by"`
	PointsAwarded int    `json:"points_awarded"`
	TotalPoints   int    `json:"total_points"`
	ReporterID    string `json:"reporter_id"`
	Breached      bool   `json:"breached"`
}
