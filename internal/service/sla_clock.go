package service

import (
	"time"

	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/domain"
)

// SLAClock computes deadlines and overdue facts from the SLA table.
type SLAClock struct {
	fallback  time.Duration
	durations map[slaKey]time.Duration
}

type slaKey struct {
	category string
	priority string
}

// SLAEvaluation is the outcome of evaluating one complaint at one instant.
type SLAEvaluation struct {
	Deadline      time.Time
	TimeRemaining time.Duration
	IsOverdue     bool
	BreachedAt    *time.Time
	// NewlyBreached is true only on the evaluation that first observed the breach.
	NewlyBreached bool
}

// NewSLAClock builds a clock from SLA rules.
func NewSLAClock(rules config.SLARules) *SLAClock {
	durations := make(map[slaKey]time.Duration, len(rules.Durations))
	for _, row := range rules.Durations {
		priority := row.Priority
		if priority == "" {
			priority = config.AnyPriority
		}
		durations[slaKey{config.NormalizeCategory(row.Category), priority}] = row.Duration.Std()
	}
	return &SLAClock{fallback: rules.Default.Std(), durations: durations}
}

// DurationFor looks up category+priority, then the category default, then the global default.
func (c *SLAClock) DurationFor(category string, priority domain.ComplaintPriority) time.Duration {
	category = config.NormalizeCategory(category)
	if d, ok := c.durations[slaKey{category, string(priority)}]; ok {
		return d
	}
	if d, ok := c.durations[slaKey{category, config.AnyPriority}]; ok {
		return d
	}
	return c.fallback
}

// Deadline returns CreatedAt plus the resolution window for the complaint.
func (c *SLAClock) Deadline(complaint *domain.Complaint) time.Time {
	return complaint.CreatedAt.Add(c.DurationFor(complaint.Category, complaint.Priority))
}

// Evaluate reports remaining time and breach state at now. Terminal complaints
// report their frozen snapshot and are never overdue.
func (c *SLAClock) Evaluate(complaint *domain.Complaint, now time.Time) SLAEvaluation {
	deadline := complaint.SLA.Deadline
	if deadline.IsZero() {
		deadline = c.Deadline(complaint)
	}
	eval := SLAEvaluation{
		Deadline:   deadline,
		BreachedAt: complaint.SLA.BreachedAt,
	}
	if complaint.Status.IsTerminal() {
		eval.TimeRemaining = complaint.SLA.TimeRemaining
		return eval
	}
	eval.TimeRemaining = deadline.Sub(now)
	eval.IsOverdue = now.After(deadline)
	if eval.IsOverdue && eval.BreachedAt == nil {
		breachedAt := now
		eval.BreachedAt = &breachedAt
		eval.NewlyBreached = true
	}
	return eval
}

// OverdueBy returns how far past the deadline now is, or zero.
func (c *SLAClock) OverdueBy(complaint *domain.Complaint, now time.Time) time.Duration {
	deadline := complaint.SLA.Deadline
	if deadline.IsZero() {
		deadline = c.Deadline(complaint)
	}
	if overdue := now.Sub(deadline); overdue > 0 {
		return overdue
	}
	return 0
}
