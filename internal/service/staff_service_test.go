package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/events"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

func errorCode(err error) string {
	if domainErr := apperrors.ToDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ""
}

func TestStaffServiceCreate(t *testing.T) {
	admin := adminMember("admin-1", domain.DepartmentStructural, "Prayagraj")
	f := newFixture(t, admin, staffMember("staff-1", domain.DepartmentPlumbing, "Prayagraj"))
	svc := f.staffService()
	ctx := context.Background()

	t.Run("creates an active account", func(t *testing.T) {
		member, err := svc.CreateStaffMember(ctx, &admin, StaffCreateInput{
			Name:       " Ravi ",
			Email:      "ravi@city.gov",
			Role:       domain.StaffRoleStaff,
			Department: domain.DepartmentElectrical,
			City:       "Prayagraj",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, member.ID)
		assert.Equal(t, "Ravi", member.Name)
		assert.True(t, member.Active)
		assert.Zero(t, member.Points)

		stored, err := f.staff.GetByID(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DepartmentElectrical, stored.Department)
	})

	t.Run("requires admin", func(t *testing.T) {
		staff := staffMember("staff-1", domain.DepartmentPlumbing, "Prayagraj")
		_, err := svc.CreateStaffMember(ctx, &staff, StaffCreateInput{Name: "x", Role: domain.StaffRoleStaff, City: "Agra"})
		assert.Equal(t, "FORBIDDEN", errorCode(err))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := svc.CreateStaffMember(ctx, &admin, StaffCreateInput{
			Email:      "not-an-address",
			Role:       "mayor",
			Department: domain.DepartmentUnassigned,
		})
		domainErr := apperrors.ToDomainError(err)
		require.NotNil(t, domainErr)
		assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
		assert.Contains(t, domainErr.Details, "name")
		assert.Contains(t, domainErr.Details, "email")
		assert.Contains(t, domainErr.Details, "role")
		assert.Contains(t, domainErr.Details, "department")
	})

	t.Run("citizens need no city", func(t *testing.T) {
		_, err := svc.CreateStaffMember(ctx, &admin, StaffCreateInput{ID: "citizen-9", Name: "Asha", Role: domain.StaffRoleCitizen})
		require.NoError(t, err)
	})

	t.Run("rejects duplicate email and id", func(t *testing.T) {
		_, err := svc.CreateStaffMember(ctx, &admin, StaffCreateInput{
			Name: "Copy", Email: "STAFF-1@city.gov", Role: domain.StaffRoleStaff, City: "Agra",
		})
		assert.Equal(t, "CONFLICT", errorCode(err))

		_, err = svc.CreateStaffMember(ctx, &admin, StaffCreateInput{
			ID: "staff-1", Name: "Copy", Role: domain.StaffRoleStaff, City: "Agra",
		})
		assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	})
}

func TestStaffServiceUpdate(t *testing.T) {
	admin := adminMember("admin-1", domain.DepartmentStructural, "Prayagraj")
	worker := staffMember("staff-1", domain.DepartmentPlumbing, "Prayagraj")
	worker.Points = 40
	f := newFixture(t, admin, worker, staffMember("staff-2", domain.DepartmentPlumbing, "Agra"))
	svc := f.staffService()
	ctx := context.Background()

	t.Run("patches fields and keeps points", func(t *testing.T) {
		city := "Agra"
		inactive := false
		updated, err := svc.UpdateStaffMember(ctx, &admin, "staff-1", StaffUpdateInput{City: &city, Active: &inactive})
		require.NoError(t, err)
		assert.Equal(t, "Agra", updated.City)
		assert.False(t, updated.Active)
		assert.Equal(t, 40, updated.Points)
		assert.Equal(t, domain.DepartmentPlumbing, updated.Department)

		stored, err := f.staff.GetByID(ctx, "staff-1")
		require.NoError(t, err)
		assert.False(t, stored.Active)
		assert.Equal(t, 40, stored.Points)
	})

	t.Run("unknown account is not found", func(t *testing.T) {
		_, err := svc.UpdateStaffMember(ctx, &admin, "ghost", StaffUpdateInput{})
		assert.Equal(t, "NOT_FOUND", errorCode(err))
	})

	t.Run("email taken by another account", func(t *testing.T) {
		email := "staff-2@city.gov"
		_, err := svc.UpdateStaffMember(ctx, &admin, "staff-1", StaffUpdateInput{Email: &email})
		assert.Equal(t, "CONFLICT", errorCode(err))
	})

	t.Run("admin cannot demote self", func(t *testing.T) {
		role := domain.StaffRoleStaff
		_, err := svc.UpdateStaffMember(ctx, &admin, "admin-1", StaffUpdateInput{Role: &role})
		assert.Equal(t, "CONFLICT", errorCode(err))

		stored, err := f.staff.GetByID(ctx, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StaffRoleAdmin, stored.Role)
	})
}

func TestStaffServiceList(t *testing.T) {
	admin := adminMember("admin-1", domain.DepartmentStructural, "Prayagraj")
	f := newFixture(t,
		admin,
		staffMember("staff-1", domain.DepartmentPlumbing, "Prayagraj"),
		staffMember("staff-2", domain.DepartmentPlumbing, "Agra"),
	)
	svc := f.staffService()

	dept := domain.DepartmentPlumbing
	members, err := svc.ListStaffMembers(context.Background(), &admin, StaffListFilters{Department: &dept})
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "staff-1", members[0].ID)

	city := "Agra"
	members, err = svc.ListStaffMembers(context.Background(), &admin, StaffListFilters{City: &city})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "staff-2", members[0].ID)
}

func TestStaffServiceUpdateRebindsOwnedComplaints(t *testing.T) {
	ctx := context.Background()
	admin := adminMember("admin-1", domain.DepartmentStructural, "Prayagraj")

	t.Run("moving an owner hands complaints to an eligible colleague", func(t *testing.T) {
		f := newFixture(t,
			admin,
			staffMember("s1", domain.DepartmentStructural, "Prayagraj"),
			staffMember("s2", domain.DepartmentStructural, "Prayagraj"),
		)
		f.seed(t, domain.Complaint{ID: "c1", Category: "structural", City: "Prayagraj", Department: domain.DepartmentStructural})
		result, err := f.assignments().Assign(ctx, "Prayagraj", domain.DepartmentStructural, nil)
		require.NoError(t, err)
		require.Equal(t, "s1", result.StaffID)

		dept, city := domain.DepartmentPlumbing, "Lucknow"
		_, err = f.staffService().UpdateStaffMember(ctx, &admin, "s1", StaffUpdateInput{Department: &dept, City: &city})
		require.NoError(t, err)

		got := f.get(t, "c1")
		require.NotNil(t, got.AssignedTo)
		assert.Equal(t, "s2", *got.AssignedTo)
		assert.ElementsMatch(t, []string{"s1", "s2"}, got.AssignedUsers)

		entries, err := f.history.ListByComplaint(ctx, "c1")
		require.NoError(t, err)
		last := entries[len(entries)-1]
		assert.Equal(t, domain.ChangeTypeAssignee, last.ChangeType)
		require.NotNil(t, last.ChangedByID)
		assert.Equal(t, "admin-1", *last.ChangedByID)
		assigned := f.eventsOfType(events.EventComplaintAssigned)
		require.Len(t, assigned, 2)
		assert.Equal(t, "s2", assigned[1].Payload.(events.ComplaintAssignedPayload).AssigneeStaffID)
	})

	t.Run("deactivating the only eligible owner releases complaints", func(t *testing.T) {
		f := newFixture(t, admin, staffMember("s1", domain.DepartmentStructural, "Prayagraj"))
		f.seed(t, domain.Complaint{ID: "c1", Category: "structural", City: "Prayagraj", Department: domain.DepartmentStructural})
		resolved := f.seed(t, domain.Complaint{ID: "c2", Category: "structural", City: "Prayagraj", Department: domain.DepartmentStructural, Status: domain.ComplaintStatusResolved})
		_, err := f.assignments().Assign(ctx, "Prayagraj", domain.DepartmentStructural, []domain.ComplaintStatus{domain.ComplaintStatusOpen, domain.ComplaintStatusResolved})
		require.NoError(t, err)

		inactive := false
		_, err = f.staffService().UpdateStaffMember(ctx, &admin, "s1", StaffUpdateInput{Active: &inactive})
		require.NoError(t, err)

		assert.Nil(t, f.get(t, "c1").AssignedTo)
		kept := f.get(t, resolved.ID)
		require.NotNil(t, kept.AssignedTo)
		assert.Equal(t, "s1", *kept.AssignedTo)
	})

	t.Run("unrelated edits leave ownership alone", func(t *testing.T) {
		f := newFixture(t,
			admin,
			staffMember("s1", domain.DepartmentStructural, "Prayagraj"),
			staffMember("s2", domain.DepartmentStructural, "Prayagraj"),
		)
		f.seed(t, domain.Complaint{ID: "c1", Category: "structural", City: "Prayagraj", Department: domain.DepartmentStructural})
		_, err := f.assignments().Assign(ctx, "Prayagraj", domain.DepartmentStructural, nil)
		require.NoError(t, err)
		before := f.get(t, "c1")

		name := "S. One"
		_, err = f.staffService().UpdateStaffMember(ctx, &admin, "s1", StaffUpdateInput{Name: &name})
		require.NoError(t, err)

		after := f.get(t, "c1")
		assert.Equal(t, "s1", *after.AssignedTo)
		assert.Equal(t, before.Version, after.Version)
	})
}
