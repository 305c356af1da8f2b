package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/domain"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// AuthorityResolver finds who a complaint is routed to at an escalation level.
type AuthorityResolver interface {
	ResolveAuthority(ctx context.Context, complaint *domain.Complaint, level domain.EscalationLevel) (*domain.StaffMember, error)
}

// EscalationDecision describes whether a complaint moves up one tier.
type EscalationDecision struct {
	Advance bool
	From    domain.EscalationLevel
	To      domain.EscalationLevel
	Reason  string
}

// EscalationEngine advances complaints through escalation tiers, one per evaluation.
type EscalationEngine struct {
	authorities   AuthorityResolver
	warningWindow time.Duration
	criticalAfter time.Duration
	finalAfter    time.Duration
	logger        *zap.Logger
}

// NewEscalationEngine creates the engine from escalation thresholds.
func NewEscalationEngine(rules config.EscalationRules, authorities AuthorityResolver, logger *zap.Logger) *EscalationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationEngine{
		authorities:   authorities,
		warningWindow: rules.WarningWindow.Std(),
		criticalAfter: rules.CriticalAfter.Std(),
		finalAfter:    rules.FinalAfter.Std(),
		logger:        logger,
	}
}

// Evaluate decides the next tier for complaint given its SLA evaluation at now.
// Terminal complaints and complaints at FinalEscalation never advance.
func (e *EscalationEngine) Evaluate(complaint *domain.Complaint, eval SLAEvaluation, now time.Time) EscalationDecision {
	from := complaint.Escalation.Level
	decision := EscalationDecision{From: from, To: from}
	if complaint.Status.IsTerminal() {
		return decision
	}
	next, ok := from.Next()
	if !ok {
		return decision
	}

	overdueBy := time.Duration(0)
	if eval.IsOverdue {
		overdueBy = now.Sub(eval.Deadline)
	}

	var reason string
	switch from {
	case domain.EscalationNormal:
		if eval.IsOverdue {
			reason = "SLA deadline passed"
		} else if eval.TimeRemaining <= e.warningWindow {
			reason = fmt.Sprintf("SLA deadline within %s", formatThreshold(e.warningWindow))
		}
	case domain.EscalationWarning:
		if eval.IsOverdue && overdueBy > e.criticalAfter {
			reason = fmt.Sprintf("overdue by more than %s", formatThreshold(e.criticalAfter))
		}
	case domain.EscalationCritical:
		if eval.IsOverdue && overdueBy > e.finalAfter {
			reason = fmt.Sprintf("overdue by more than %s", formatThreshold(e.finalAfter))
		}
	}
	if reason == "" {
		return decision
	}
	decision.Advance = true
	decision.To = next
	decision.Reason = fmt.Sprintf("%s: %s", next, reason)
	return decision
}

// Escalate builds the escalation record for an advancing decision. When no authority
// exists for the tier the level still advances with no target.
func (e *EscalationEngine) Escalate(ctx context.Context, complaint *domain.Complaint, decision EscalationDecision, now time.Time) (domain.EscalationRecord, *domain.StaffMember, error) {
	if !decision.Advance {
		return complaint.Escalation, nil, nil
	}
	escalatedAt := now
	record := domain.EscalationRecord{
		Level:       decision.To,
		EscalatedAt: &escalatedAt,
		Reason:      decision.Reason,
	}
	if e.authorities == nil {
		return record, nil, nil
	}
	authority, err := e.authorities.ResolveAuthority(ctx, complaint, decision.To)
	switch {
	case errors.Is(err, apperrors.ErrNoEligibleStaff):
		e.logger.Warn("no escalation authority",
			zap.String("complaint_id", complaint.ID),
			zap.String("level", decision.To.String()),
			zap.Error(err))
		return record, nil, nil
	case err != nil:
		return record, nil, fmt.Errorf("resolve escalation authority: %w", err)
	}
	record.EscalatedTo = &authority.ID
	return record, authority, nil
}

// formatThreshold renders whole-hour durations as "6h" and falls back to Duration.String.
func formatThreshold(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
