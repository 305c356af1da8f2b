package domain

import "time"

// ComplaintChangeType captures what changed in a history entry.
type ComplaintChangeType string

const (
	ChangeTypeStatus     ComplaintChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee   ComplaintChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeDepartment ComplaintChangeType = "DEPARTMENT_CHANGE"
	ChangeTypeEscalation ComplaintChangeType = "ESCALATION_CHANGE"
	ChangeTypeSLABreach  ComplaintChangeType = "SLA_BREACH"
	ChangeTypePoints     ComplaintChangeType = "POINTS_AWARDED"
)

// ActorType indicates who caused a change.
type ActorType string

const (
	ActorTypeStaff  ActorType = "STAFF"
	ActorTypeSystem ActorType = "SYSTEM"
)

// ComplaintHistory is an immutable audit trail entry.
type ComplaintHistory struct {
	ID            string
	ComplaintID   string
	ChangedByType ActorType
	ChangedByID   *string
	ChangeType    ComplaintChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
