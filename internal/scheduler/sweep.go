package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/observability"
	"github.com/resolvehub/complaint-engine/internal/repository"
	"github.com/resolvehub/complaint-engine/internal/service"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

const sweepLockKey = "complaint-engine:sla-sweep"

// Locker grants mutual exclusion across replicas.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Assigner retries assignment for complaints still without an owner and moves
// complaints away from owners who no longer qualify.
type Assigner interface {
	Assign(ctx context.Context, city string, department domain.Department, statuses []domain.ComplaintStatus) (service.AssignResult, error)
	Reconcile(ctx context.Context, actor events.Actor, complaints []domain.Complaint) (service.ReconcileResult, error)
}

// SweepReport summarizes one tick.
type SweepReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Evaluated int           `json:"evaluated"`
	Updated   int           `json:"updated"`
	Breached  int           `json:"breached"`
	Escalated int           `json:"escalated"`
	Assigned  int           `json:"assigned"`
	Conflicts int           `json:"conflicts"`
	Failed    int           `json:"failed"`
}

// Sweeper re-evaluates SLA and escalation state for every active complaint.
type Sweeper struct {
	complaints repository.ComplaintRepository
	clock      *service.SLAClock
	engine     *service.EscalationEngine
	assigner   Assigner
	history    *service.HistoryRecorder
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	locker  Locker
	lockTTL time.Duration
	running sync.Mutex
}

// SweeperDependencies bundles collaborators for the sweeper.
type SweeperDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	Clock         *service.SLAClock
	Engine        *service.EscalationEngine
	Assigner      Assigner
	History       *service.HistoryRecorder
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	// Locker is optional; without it ticks are exclusive within this process only.
	Locker  Locker
	LockTTL time.Duration
}

type outcome struct {
	updated   bool
	breached  bool
	escalated bool
}

// NewSweeper creates a sweeper.
func NewSweeper(deps SweeperDependencies) *Sweeper {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &Sweeper{
		complaints: deps.ComplaintRepo,
		clock:      deps.Clock,
		engine:     deps.Engine,
		assigner:   deps.Assigner,
		history:    deps.History,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		locker:     deps.Locker,
		lockTTL:    lockTTL,
	}
}

// Tick runs one sweep at now. A tick that finds another sweep running returns
// ErrSweepInProgress without doing any work. Only ErrPersistenceUnavailable aborts a
// sweep part way; every other failure is confined to its complaint.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) (SweepReport, error) {
	report := SweepReport{StartedAt: now}
	if !s.running.TryLock() {
		s.metrics.RecordSweep("skipped", 0)
		return report, apperrors.ErrSweepInProgress
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.AcquireLock(ctx, sweepLockKey, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("distributed sweep lock unavailable; continuing with local lock", zap.Error(err))
		case !ok:
			s.metrics.RecordSweep("skipped", 0)
			return report, apperrors.ErrSweepInProgress
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	started := time.Now()
	err := s.sweep(ctx, now, &report)
	report.Duration = time.Since(started)

	result := "ok"
	if err != nil {
		result = "aborted"
	}
	s.metrics.RecordSweep(result, report.Duration)
	s.logger.Info("sla sweep finished",
		zap.String("result", result),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("updated", report.Updated),
		zap.Int("breached", report.Breached),
		zap.Int("escalated", report.Escalated),
		zap.Int("assigned", report.Assigned),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))
	return report, err
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time, report *SweepReport) error {
	active, err := s.complaints.List(ctx, repository.ComplaintFilter{Statuses: domain.ActiveStatuses})
	if err != nil {
		return fmt.Errorf("list active complaints: %w", err)
	}

	for i := range active {
		complaint := &active[i]
		report.Evaluated++
		out, err := s.process(ctx, complaint, now)
		switch {
		case errors.Is(err, apperrors.ErrPersistenceUnavailable):
			return fmt.Errorf("sweep aborted at complaint %s: %w", complaint.ID, err)
		case errors.Is(err, apperrors.ErrConcurrentWriteConflict):
			report.Conflicts++
		case err != nil:
			report.Failed++
			s.logger.Error("sla evaluation failed", zap.String("complaint_id", complaint.ID), zap.Error(err))
		}
		if out.updated {
			report.Updated++
		}
		if out.breached {
			report.Breached++
		}
		if out.escalated {
			report.Escalated++
		}
	}
	return s.assignOrphans(ctx, active, report)
}

// process evaluates one complaint and persists any change conditioned on the version
// read. On a conflict it re-reads and re-evaluates once before deferring to the next tick.
func (s *Sweeper) process(ctx context.Context, complaint *domain.Complaint, now time.Time) (outcome, error) {
	current := complaint
	for attempt := 0; attempt < 2; attempt++ {
		s.metrics.RecordEvaluation()
		eval := s.clock.Evaluate(current, now)
		decision := s.engine.Evaluate(current, eval, now)
		if !eval.NewlyBreached && !decision.Advance {
			return outcome{}, nil
		}

		patch := repository.ComplaintPatch{
			TimeRemaining: &eval.TimeRemaining,
			EvaluatedAt:   &now,
		}
		if eval.NewlyBreached {
			patch.BreachedAt = eval.BreachedAt
		}
		var authority *domain.StaffMember
		if decision.Advance {
			record, target, err := s.engine.Escalate(ctx, current, decision, now)
			if err != nil {
				return outcome{}, err
			}
			patch.Escalation = &record
			authority = target
		}

		ok, err := s.complaints.UpdateIf(ctx, current.ID, current.Version, patch)
		if err != nil {
			return outcome{}, fmt.Errorf("persist evaluation: %w", err)
		}
		if ok {
			s.afterCommit(ctx, current, eval, decision, patch.Escalation, authority)
			return outcome{updated: true, breached: eval.NewlyBreached, escalated: decision.Advance}, nil
		}

		fresh, err := s.complaints.GetByID(ctx, current.ID)
		if err != nil {
			return outcome{}, fmt.Errorf("reload complaint: %w", err)
		}
		if fresh.Status.IsTerminal() {
			s.metrics.RecordConflict("sweep", "terminated")
			return outcome{}, nil
		}
		current = fresh
	}
	s.metrics.RecordConflict("sweep", "deferred")
	return outcome{}, fmt.Errorf("complaint %s: %w", complaint.ID, apperrors.ErrConcurrentWriteConflict)
}

func (s *Sweeper) afterCommit(ctx context.Context, complaint *domain.Complaint, eval service.SLAEvaluation, decision service.EscalationDecision, record *domain.EscalationRecord, authority *domain.StaffMember) {
	if eval.NewlyBreached {
		s.metrics.RecordBreach()
		s.history.Record(ctx, complaint.ID, events.SystemActor, domain.ChangeTypeSLABreach,
			map[string]any{"breached_at": nil},
			map[string]any{"breached_at": eval.BreachedAt})
		s.publish(ctx, events.Event{
			Type:        events.EventComplaintSLABreached,
			ComplaintID: complaint.ID,
			Actor:       events.SystemActor,
			Payload: events.ComplaintSLABreachedPayload{
				Deadline:   eval.Deadline,
				BreachedAt: *eval.BreachedAt,
				AssignedTo: complaint.AssignedTo,
			},
		})
	}
	if !decision.Advance || record == nil {
		return
	}
	s.metrics.RecordEscalation(int(decision.To))
	s.history.Record(ctx, complaint.ID, events.SystemActor, domain.ChangeTypeEscalation,
		map[string]any{"level": int(decision.From)},
		map[string]any{"level": int(decision.To), "reason": decision.Reason, "escalated_to": record.EscalatedTo})
	fields := []zap.Field{
		zap.String("complaint_id", complaint.ID),
		zap.Int("level", int(decision.To)),
		zap.String("reason", decision.Reason),
	}
	if authority != nil {
		fields = append(fields, zap.String("escalated_to", authority.ID))
	}
	s.logger.Info("complaint escalated", fields...)
	s.publish(ctx, events.Event{
		Type:        events.EventComplaintEscalated,
		ComplaintID: complaint.ID,
		Actor:       events.SystemActor,
		Payload: events.ComplaintEscalatedPayload{
			FromLevel:   decision.From,
			ToLevel:     decision.To,
			Reason:      decision.Reason,
			EscalatedTo: record.EscalatedTo,
			AssignedTo:  complaint.AssignedTo,
		},
	})
}

// assignOrphans first re-binds complaints whose owner is inactive, gone, or outside the
// complaint's scope, then retries assignment once per {city, department} that still has
// unowned complaints.
func (s *Sweeper) assignOrphans(ctx context.Context, active []domain.Complaint, report *SweepReport) error {
	if s.assigner == nil {
		return nil
	}
	reconciled, err := s.assigner.Reconcile(ctx, events.SystemActor, active)
	switch {
	case errors.Is(err, apperrors.ErrPersistenceUnavailable):
		return fmt.Errorf("reconcile owners: %w", err)
	case err != nil:
		s.logger.Warn("owner reconciliation failed", zap.Error(err))
	}
	report.Assigned += reconciled.Reassigned
	report.Conflicts += reconciled.Conflicts

	type scope struct {
		city       string
		department domain.Department
	}
	seen := map[scope]bool{}
	var scopes []scope
	for _, c := range active {
		if c.AssignedTo != nil || c.Department.IsMissing() || c.Department == domain.DepartmentUnassigned {
			continue
		}
		key := scope{c.City, c.Department}
		if !seen[key] {
			seen[key] = true
			scopes = append(scopes, key)
		}
	}
	for _, sc := range scopes {
		result, err := s.assigner.Assign(ctx, sc.city, sc.department, domain.ActiveStatuses)
		switch {
		case errors.Is(err, apperrors.ErrPersistenceUnavailable):
			return fmt.Errorf("assign %s/%s: %w", sc.city, sc.department, err)
		case errors.Is(err, apperrors.ErrNoEligibleStaff):
			continue
		case err != nil:
			s.logger.Warn("assignment retry failed",
				zap.String("city", sc.city),
				zap.String("department", string(sc.department)),
				zap.Error(err))
			continue
		}
		report.Assigned += result.UpdatedCount
		report.Conflicts += result.Conflicts
	}
	return nil
}

func (s *Sweeper) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("event_type", string(event.Type)),
			zap.String("complaint_id", event.ComplaintID),
			zap.Error(err))
	}
}
