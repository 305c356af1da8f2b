package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/repository"
	"github.com/resolvehub/complaint-engine/internal/service"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

var t0 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	complaints *repository.MemoryComplaintRepository
	staff      *repository.MemoryStaffRepository
	history    *repository.MemoryComplaintHistoryRepository
	dispatcher events.Dispatcher
	clock      *service.SLAClock
	engine     *service.EscalationEngine
	assigner   *service.AssignmentService

	mu        sync.Mutex
	published []events.Event
}

func newHarness(t *testing.T, members ...domain.StaffMember) *harness {
	t.Helper()
	rules := config.DefaultRules()
	h := &harness{
		complaints: repository.NewMemoryComplaintRepository(),
		staff:      repository.NewMemoryStaffRepository(members...),
		history:    repository.NewMemoryComplaintHistoryRepository(),
		dispatcher: events.NewInMemoryDispatcher(),
		clock:      service.NewSLAClock(rules.SLA),
	}
	h.assigner = service.NewAssignmentService(service.AssignmentDependencies{
		ComplaintRepo: h.complaints,
		StaffRepo:     h.staff,
		Tiers:         rules.Escalation.Tiers,
		Dispatcher:    h.dispatcher,
	})
	h.engine = service.NewEscalationEngine(rules.Escalation, h.assigner, nil)
	for _, eventType := range []events.EventType{events.EventComplaintEscalated, events.EventComplaintSLABreached, events.EventComplaintAssigned} {
		h.dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.published = append(h.published, e)
			return nil
		})
	}
	return h
}

func (h *harness) sweeper(repo repository.ComplaintRepository, opts ...func(*SweeperDependencies)) *Sweeper {
	if repo == nil {
		repo = h.complaints
	}
	deps := SweeperDependencies{
		ComplaintRepo: repo,
		Clock:         h.clock,
		Engine:        h.engine,
		Assigner:      h.assigner,
		History:       service.NewHistoryRecorder(h.history, nil),
		Dispatcher:    h.dispatcher,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewSweeper(deps)
}

func (h *harness) seed(t *testing.T, c domain.Complaint) *domain.Complaint {
	t.Helper()
	if c.Status == "" {
		c.Status = domain.ComplaintStatusOpen
	}
	if c.Category == "" {
		c.Category = "structural"
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t0
	}
	if c.SLA.Deadline.IsZero() {
		c.SLA.Deadline = h.clock.Deadline(&c)
	}
	require.NoError(t, h.complaints.Create(context.Background(), &c))
	return &c
}

func (h *harness) get(t *testing.T, id string) *domain.Complaint {
	t.Helper()
	c, err := h.complaints.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (h *harness) count(eventType events.EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.published {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func member(id string, role domain.StaffRole, dept domain.Department, city string) domain.StaffMember {
	return domain.StaffMember{ID: id, Name: id, Role: role, Department: dept, City: city, Active: true}
}

func TestTickWorkedExample(t *testing.T) {
	h := newHarness(t,
		member("staff-1", domain.StaffRoleStaff, domain.DepartmentStructural, "Prayagraj"),
		member("admin-1", domain.StaffRoleAdmin, domain.DepartmentStructural, "Prayagraj"),
	)
	assignee := "staff-1"
	c := h.seed(t, domain.Complaint{
		ID: "c-1", City: "Prayagraj", Department: domain.DepartmentStructural,
		AssignedTo: &assignee, AssignedUsers: []string{assignee},
	})
	sweeper := h.sweeper(nil)

	report, err := sweeper.Tick(context.Background(), t0.Add(44*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)
	got := h.get(t, c.ID)
	assert.Equal(t, domain.EscalationWarning, got.Escalation.Level)
	assert.Equal(t, "Warning: SLA deadline within 6h", got.Escalation.Reason)
	require.NotNil(t, got.Escalation.EscalatedTo)
	assert.Equal(t, "staff-1", *got.Escalation.EscalatedTo)
	assert.Nil(t, got.SLA.BreachedAt)

	at51 := t0.Add(51 * time.Hour)
	report, err = sweeper.Tick(context.Background(), at51)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Breached)
	got = h.get(t, c.ID)
	assert.Equal(t, domain.EscalationCritical, got.Escalation.Level)
	assert.Equal(t, "admin-1", *got.Escalation.EscalatedTo)
	require.NotNil(t, got.SLA.BreachedAt)
	assert.Equal(t, at51, *got.SLA.BreachedAt)
	assert.Equal(t, at51, *got.Escalation.EscalatedAt)

	assert.Equal(t, 2, h.count(events.EventComplaintEscalated))
	assert.Equal(t, 1, h.count(events.EventComplaintSLABreached))
}

func TestTickAdvancesOneLevelPerSweep(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
	sweeper := h.sweeper(nil)

	levels := []domain.EscalationLevel{}
	for i := 0; i < 5; i++ {
		_, err := sweeper.Tick(context.Background(), t0.Add(200*time.Hour))
		require.NoError(t, err)
		levels = append(levels, h.get(t, c.ID).Escalation.Level)
	}
	assert.Equal(t, []domain.EscalationLevel{
		domain.EscalationWarning,
		domain.EscalationCritical,
		domain.EscalationFinalEscalation,
		domain.EscalationFinalEscalation,
		domain.EscalationFinalEscalation,
	}, levels)

	got := h.get(t, c.ID)
	assert.Nil(t, got.Escalation.EscalatedTo)
	entries, err := h.history.ListByComplaint(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestTickBreachedAtIsSetOnce(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
	sweeper := h.sweeper(nil)

	first := t0.Add(49 * time.Hour)
	_, err := sweeper.Tick(context.Background(), first)
	require.NoError(t, err)
	_, err = sweeper.Tick(context.Background(), t0.Add(80*time.Hour))
	require.NoError(t, err)

	got := h.get(t, c.ID)
	require.NotNil(t, got.SLA.BreachedAt)
	assert.Equal(t, first, *got.SLA.BreachedAt)
}

func TestTickSkipsTerminalComplaints(t *testing.T) {
	h := newHarness(t)
	resolved := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural, Status: domain.ComplaintStatusResolved, Escalation: domain.EscalationRecord{Level: domain.EscalationWarning}})
	closed := h.seed(t, domain.Complaint{ID: "c-2", City: "Agra", Department: domain.DepartmentStructural, Status: domain.ComplaintStatusClosed})

	report, err := h.sweeper(nil).Tick(context.Background(), t0.Add(500*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.Evaluated)
	assert.Equal(t, resolved.Version, h.get(t, resolved.ID).Version)
	assert.Equal(t, domain.EscalationWarning, h.get(t, resolved.ID).Escalation.Level)
	assert.Nil(t, h.get(t, closed.ID).SLA.BreachedAt)
}

func TestTickQuietComplaintIsNotWritten(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})

	report, err := h.sweeper(nil).Tick(context.Background(), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evaluated)
	assert.Zero(t, report.Updated)
	assert.Equal(t, c.Version, h.get(t, c.ID).Version)
}

func TestTickAssignsOrphans(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentPlumbing, Category: "plumbing"})
	sweeper := h.sweeper(nil)

	report, err := sweeper.Tick(context.Background(), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.Assigned)

	require.NoError(t, h.staff.Create(context.Background(), &domain.StaffMember{
		ID: "staff-1", Role: domain.StaffRoleStaff, Department: domain.DepartmentPlumbing, City: "Agra", Active: true,
	}))
	report, err = sweeper.Tick(context.Background(), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Assigned)
	assert.Equal(t, "staff-1", *h.get(t, c.ID).AssignedTo)
}

func TestTickReassignsFromIneligibleOwners(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		member("staff-1", domain.StaffRoleStaff, domain.DepartmentPlumbing, "Agra"),
		member("staff-2", domain.StaffRoleStaff, domain.DepartmentPlumbing, "Agra"),
		member("staff-3", domain.StaffRoleStaff, domain.DepartmentElectrical, "Agra"),
	)
	owner, lone := "staff-1", "staff-3"
	moved := h.seed(t, domain.Complaint{
		ID: "c-1", City: "Agra", Department: domain.DepartmentPlumbing, Category: "plumbing",
		AssignedTo: &owner, AssignedUsers: []string{owner},
	})
	released := h.seed(t, domain.Complaint{
		ID: "c-2", City: "Agra", Department: domain.DepartmentElectrical, Category: "electrical",
		AssignedTo: &lone, AssignedUsers: []string{lone}, CreatedAt: t0.Add(time.Minute),
	})

	// Profile changes written straight to the directory, bypassing the staff service.
	inactive, err := h.staff.GetByID(ctx, "staff-1")
	require.NoError(t, err)
	inactive.Active = false
	require.NoError(t, h.staff.Update(ctx, inactive))
	relocated, err := h.staff.GetByID(ctx, "staff-3")
	require.NoError(t, err)
	relocated.City = "Lucknow"
	require.NoError(t, h.staff.Update(ctx, relocated))

	report, err := h.sweeper(nil).Tick(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Assigned)

	got := h.get(t, moved.ID)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, "staff-2", *got.AssignedTo)
	assert.ElementsMatch(t, []string{"staff-1", "staff-2"}, got.AssignedUsers)
	assert.Nil(t, h.get(t, released.ID).AssignedTo)
	assert.Equal(t, 1, h.count(events.EventComplaintAssigned))
}

// racingRepo performs a concurrent write before the first `remaining` conditional writes.
type racingRepo struct {
	repository.ComplaintRepository
	remaining int
	concurrent func(c *domain.Complaint) repository.ComplaintPatch
}

func (r *racingRepo) UpdateIf(ctx context.Context, id string, version int64, patch repository.ComplaintPatch) (bool, error) {
	if r.remaining > 0 {
		r.remaining--
		current, err := r.ComplaintRepository.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		if _, err := r.ComplaintRepository.UpdateIf(ctx, id, current.Version, r.concurrent(current)); err != nil {
			return false, err
		}
	}
	return r.ComplaintRepository.UpdateIf(ctx, id, version, patch)
}

func TestTickConflicts(t *testing.T) {
	touch := func(*domain.Complaint) repository.ComplaintPatch {
		ts := t0
		return repository.ComplaintPatch{EvaluatedAt: &ts}
	}

	t.Run("re-evaluates and retries once", func(t *testing.T) {
		h := newHarness(t)
		c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		repo := &racingRepo{ComplaintRepository: h.complaints, remaining: 1, concurrent: touch}

		report, err := h.sweeper(repo).Tick(context.Background(), t0.Add(44*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Escalated)
		assert.Zero(t, report.Conflicts)
		assert.Equal(t, domain.EscalationWarning, h.get(t, c.ID).Escalation.Level)
	})

	t.Run("defers to the next tick after a second conflict", func(t *testing.T) {
		h := newHarness(t)
		c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		other := h.seed(t, domain.Complaint{ID: "c-2", City: "Agra", Department: domain.DepartmentStructural, CreatedAt: t0.Add(time.Minute)})
		repo := &racingRepo{ComplaintRepository: h.complaints, remaining: 2, concurrent: touch}
		sweeper := h.sweeper(repo)

		report, err := sweeper.Tick(context.Background(), t0.Add(44*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Conflicts)
		assert.Equal(t, domain.EscalationNormal, h.get(t, c.ID).Escalation.Level)
		assert.Equal(t, domain.EscalationWarning, h.get(t, other.ID).Escalation.Level)

		_, err = sweeper.Tick(context.Background(), t0.Add(44*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.EscalationWarning, h.get(t, c.ID).Escalation.Level)
	})

	t.Run("concurrent resolution wins", func(t *testing.T) {
		h := newHarness(t)
		c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		repo := &racingRepo{ComplaintRepository: h.complaints, remaining: 1, concurrent: func(*domain.Complaint) repository.ComplaintPatch {
			status := domain.ComplaintStatusResolved
			return repository.ComplaintPatch{Status: &status}
		}}

		_, err := h.sweeper(repo).Tick(context.Background(), t0.Add(60*time.Hour))
		require.NoError(t, err)
		got := h.get(t, c.ID)
		assert.Equal(t, domain.ComplaintStatusResolved, got.Status)
		assert.Equal(t, domain.EscalationNormal, got.Escalation.Level)
		assert.Nil(t, got.SLA.BreachedAt)
	})
}

// failingRepo fails conditional writes for one complaint with err.
type failingRepo struct {
	repository.ComplaintRepository
	failID string
	err    error
}

func (r *failingRepo) UpdateIf(ctx context.Context, id string, version int64, patch repository.ComplaintPatch) (bool, error) {
	if id == r.failID {
		return false, r.err
	}
	return r.ComplaintRepository.UpdateIf(ctx, id, version, patch)
}

func TestTickFailureIsolation(t *testing.T) {
	t.Run("ordinary failure stays with its complaint", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		other := h.seed(t, domain.Complaint{ID: "c-2", City: "Agra", Department: domain.DepartmentStructural, CreatedAt: t0.Add(time.Minute)})
		repo := &failingRepo{ComplaintRepository: h.complaints, failID: "c-1", err: errors.New("check constraint violated")}

		report, err := h.sweeper(repo).Tick(context.Background(), t0.Add(44*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, domain.EscalationWarning, h.get(t, other.ID).Escalation.Level)
	})

	t.Run("persistence outage aborts the sweep", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		later := h.seed(t, domain.Complaint{ID: "c-2", City: "Agra", Department: domain.DepartmentStructural, CreatedAt: t0.Add(time.Minute)})
		repo := &failingRepo{ComplaintRepository: h.complaints, failID: "c-1", err: apperrors.ErrPersistenceUnavailable}

		_, err := h.sweeper(repo).Tick(context.Background(), t0.Add(44*time.Hour))
		assert.ErrorIs(t, err, apperrors.ErrPersistenceUnavailable)
		assert.Equal(t, domain.EscalationNormal, h.get(t, later.ID).Escalation.Level)
	})

	t.Run("notification failure never reverts state", func(t *testing.T) {
		h := newHarness(t)
		c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		h.dispatcher.Subscribe(events.EventComplaintEscalated, func(context.Context, events.Event) error {
			return apperrors.ErrNotificationFailure
		})

		report, err := h.sweeper(nil).Tick(context.Background(), t0.Add(44*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Escalated)
		assert.Equal(t, domain.EscalationWarning, h.get(t, c.ID).Escalation.Level)
	})
}

// blockingRepo holds List until released so a tick stays in flight.
type blockingRepo struct {
	repository.ComplaintRepository
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) List(ctx context.Context, filter repository.ComplaintFilter) ([]domain.Complaint, error) {
	close(r.entered)
	<-r.release
	return r.ComplaintRepository.List(ctx, filter)
}

func TestTickOverlapIsSkipped(t *testing.T) {
	h := newHarness(t)
	repo := &blockingRepo{ComplaintRepository: h.complaints, entered: make(chan struct{}), release: make(chan struct{})}
	sweeper := h.sweeper(repo)

	done := make(chan error, 1)
	go func() {
		_, err := sweeper.Tick(context.Background(), t0)
		done <- err
	}()
	<-repo.entered

	_, err := sweeper.Tick(context.Background(), t0)
	assert.ErrorIs(t, err, apperrors.ErrSweepInProgress)

	close(repo.release)
	require.NoError(t, <-done)
}

type stubLocker struct {
	ok       bool
	err      error
	released int
}

func (l *stubLocker) AcquireLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil || !l.ok {
		return nil, l.ok, l.err
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, true, nil
}

func TestTickDistributedLock(t *testing.T) {
	t.Run("held elsewhere skips the tick", func(t *testing.T) {
		h := newHarness(t)
		c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		sweeper := h.sweeper(nil, func(d *SweeperDependencies) { d.Locker = &stubLocker{ok: false} })

		_, err := sweeper.Tick(context.Background(), t0.Add(44*time.Hour))
		assert.ErrorIs(t, err, apperrors.ErrSweepInProgress)
		assert.Equal(t, domain.EscalationNormal, h.get(t, c.ID).Escalation.Level)
	})

	t.Run("acquired lock is released", func(t *testing.T) {
		h := newHarness(t)
		locker := &stubLocker{ok: true}
		sweeper := h.sweeper(nil, func(d *SweeperDependencies) { d.Locker = locker })

		_, err := sweeper.Tick(context.Background(), t0)
		require.NoError(t, err)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("unreachable lock store falls back to the local lock", func(t *testing.T) {
		h := newHarness(t)
		c := h.seed(t, domain.Complaint{ID: "c-1", City: "Agra", Department: domain.DepartmentStructural})
		sweeper := h.sweeper(nil, func(d *SweeperDependencies) { d.Locker = &stubLocker{err: errors.New("connection refused")} })

		_, err := sweeper.Tick(context.Background(), t0.Add(44*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, domain.EscalationWarning, h.get(t, c.ID).Escalation.Level)
	})
}
