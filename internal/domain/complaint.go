package domain

import "time"

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "OPEN"
	ComplaintStatusInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintStatusResolved   ComplaintStatus = "RESOLVED"
	ComplaintStatusClosed     ComplaintStatus = "CLOSED"
)

// ActiveStatuses are the statuses evaluated by SLA sweeps.
var ActiveStatuses = []ComplaintStatus{ComplaintStatusOpen, ComplaintStatusInProgress}

// IsTerminal reports whether SLA and escalation state is frozen.
func (s ComplaintStatus) IsTerminal() bool {
	return s == ComplaintStatusResolved || s == ComplaintStatusClosed
}

// Valid reports whether s is a known status.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintStatusOpen, ComplaintStatusInProgress, ComplaintStatusResolved, ComplaintStatusClosed:
		return true
	}
	return false
}

var statusOrder = map[ComplaintStatus]int{
	ComplaintStatusOpen:       0,
	ComplaintStatusInProgress: 1,
	ComplaintStatusResolved:   2,
	ComplaintStatusClosed:     3,
}

// CanTransitionTo enforces forward-only movement, allowing skipped steps.
func (s ComplaintStatus) CanTransitionTo(next ComplaintStatus) bool {
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to > from
}

// ComplaintPriority enumerates citizen-reported urgency.
type ComplaintPriority string

const (
	ComplaintPriorityLow    ComplaintPriority = "LOW"
	ComplaintPriorityMedium ComplaintPriority = "MEDIUM"
	ComplaintPriorityHigh   ComplaintPriority = "HIGH"
	ComplaintPriorityUrgent ComplaintPriority = "URGENT"
)

// SLARecord tracks the resolution deadline of a complaint.
type SLARecord struct {
	Deadline time.Time
	// BreachedAt is set on the first overdue evaluation and never changes afterwards.
	BreachedAt *time.Time
	// TimeRemaining is the snapshot taken at the last evaluation; it is what terminal
	// complaints report.
	TimeRemaining   time.Duration
	LastEvaluatedAt *time.Time
}

// EscalationRecord tracks the severity tier of a complaint.
type EscalationRecord struct {
	Level       EscalationLevel
	EscalatedAt *time.Time
	Reason      string
	EscalatedTo *string
}

// Complaint is the aggregate for citizen-filed complaints.
type Complaint struct {
	ID            string
	ReporterID    string
	Category      string
	Department    Department
	City          string
	Title         string
	Description   string
	Status        ComplaintStatus
	Priority      ComplaintPriority
	AssignedTo    *string
	AssignedUsers []string
	SLA           SLARecord
	Escalation    EscalationRecord
	ResolvedAt    *time.Time
	ResolvedBy    *string
	PointsAwarded int
	// Version is bumped on every write and guards conditional updates.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAssignedUser reports whether staffID already has access to the complaint.
func (c *Complaint) HasAssignedUser(staffID string) bool {
	for _, id := range c.AssignedUsers {
		if id == staffID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to mutate.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	out.AssignedUsers = append([]string(nil), c.AssignedUsers...)
	out.AssignedTo = cloneString(c.AssignedTo)
	out.ResolvedBy = cloneString(c.ResolvedBy)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.SLA.BreachedAt = cloneTime(c.SLA.BreachedAt)
	out.SLA.LastEvaluatedAt = cloneTime(c.SLA.LastEvaluatedAt)
	out.Escalation.EscalatedAt = cloneTime(c.Escalation.EscalatedAt)
	out.Escalation.EscalatedTo = cloneString(c.Escalation.EscalatedTo)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
