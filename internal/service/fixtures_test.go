package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	"github.com/resolvehub/complaint-engine/internal/repository"
)

var t0 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	rules      config.Rules
	complaints *repository.MemoryComplaintRepository
	staff      *repository.MemoryStaffRepository
	history    *repository.MemoryComplaintHistoryRepository
	dispatcher events.Dispatcher
	published  []events.Event
}

func newFixture(t *testing.T, members ...domain.StaffMember) *fixture {
	t.Helper()
	f := &fixture{
		rules:      config.DefaultRules(),
		complaints: repository.NewMemoryComplaintRepository(),
		staff:      repository.NewMemoryStaffRepository(members...),
		history:    repository.NewMemoryComplaintHistoryRepository(),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	for _, eventType := range []events.EventType{
		events.EventComplaintCreated,
		events.EventComplaintAssigned,
		events.EventComplaintStatusChanged,
		events.EventComplaintResolved,
	} {
		f.dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}
	return f
}

func (f *fixture) recorder() *HistoryRecorder {
	return NewHistoryRecorder(f.history, nil)
}

func (f *fixture) assignments() *AssignmentService {
	return NewAssignmentService(AssignmentDependencies{
		ComplaintRepo: f.complaints,
		StaffRepo:     f.staff,
		Tiers:         f.rules.Escalation.Tiers,
		History:       f.recorder(),
		Dispatcher:    f.dispatcher,
	})
}

func (f *fixture) staffService() *StaffService {
	return NewStaffService(StaffDependencies{
		StaffRepo:     f.staff,
		ComplaintRepo: f.complaints,
		Assignments:   f.assignments(),
	})
}

func (f *fixture) router() *DepartmentRouter {
	return NewDepartmentRouter(DepartmentRouterDependencies{
		Rules:         f.rules,
		ComplaintRepo: f.complaints,
		History:       f.recorder(),
	})
}

func (f *fixture) scorer() *GamificationService {
	return NewGamificationService(GamificationDependencies{
		Rules:         f.rules.Scoring,
		StaffRepo:     f.staff,
		ComplaintRepo: f.complaints,
	})
}

func (f *fixture) seed(t *testing.T, c domain.Complaint) *domain.Complaint {
	t.Helper()
	if c.Status == "" {
		c.Status = domain.ComplaintStatusOpen
	}
	if c.Priority == "" {
		c.Priority = domain.ComplaintPriorityMedium
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t0
	}
	require.NoError(t, f.complaints.Create(context.Background(), &c))
	return &c
}

func (f *fixture) get(t *testing.T, id string) *domain.Complaint {
	t.Helper()
	c, err := f.complaints.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) eventsOfType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func staffMember(id string, dept domain.Department, city string) domain.StaffMember {
	return domain.StaffMember{ID: id, Name: id, Email: id + "@city.gov", Role: domain.StaffRoleStaff, Department: dept, City: city, Active: true}
}

func adminMember(id string, dept domain.Department, city string) domain.StaffMember {
	m := staffMember(id, dept, city)
	m.Role = domain.StaffRoleAdmin
	return m
}

// conflictingRepo bumps the stored version of a complaint just before the first
// conditional write, simulating a concurrent writer.
type conflictingRepo struct {
	repository.ComplaintRepository
	remaining int
	mutate    func(c *domain.Complaint) repository.ComplaintPatch
}

func (r *conflictingRepo) UpdateIf(ctx context.Context, id string, version int64, patch repository.ComplaintPatch) (bool, error) {
	if r.remaining > 0 {
		r.remaining--
		current, err := r.ComplaintRepository.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		concurrent := repository.ComplaintPatch{EvaluatedAt: &t0}
		if r.mutate != nil {
			concurrent = r.mutate(current)
		}
		if _, err := r.ComplaintRepository.UpdateIf(ctx, id, current.Version, concurrent); err != nil {
			return false, err
		}
	}
	return r.ComplaintRepository.UpdateIf(ctx, id, version, patch)
}
