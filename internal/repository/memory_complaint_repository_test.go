package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

func TestMemoryComplaintRepositoryUpdateIf(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryComplaintRepository()
	require.NoError(t, repo.Create(ctx, &domain.Complaint{ID: "c-1", Status: domain.ComplaintStatusOpen}))

	status := domain.ComplaintStatusInProgress
	ok, err := repo.UpdateIf(ctx, "c-1", 1, ComplaintPatch{Status: &status})
	require.NoError(t, err)
	assert.True(t, ok)

	closed := domain.ComplaintStatusClosed
	ok, err = repo.UpdateIf(ctx, "c-1", 1, ComplaintPatch{Status: &closed})
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not win")

	got, err := repo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplaintStatusInProgress, got.Status)
	assert.Equal(t, int64(2), got.Version)

	ok, err = repo.UpdateIf(ctx, "missing", 1, ComplaintPatch{Status: &status})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryComplaintRepositoryPatchSemantics(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryComplaintRepository()
	require.NoError(t, repo.Create(ctx, &domain.Complaint{ID: "c-1", Status: domain.ComplaintStatusOpen}))

	first := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	staff := "staff-1"
	ok, err := repo.UpdateIf(ctx, "c-1", 1, ComplaintPatch{BreachedAt: &first, AssignedTo: &staff, AddAssignedUser: &staff})
	require.NoError(t, err)
	require.True(t, ok)

	later := first.Add(time.Hour)
	ok, err = repo.UpdateIf(ctx, "c-1", 2, ComplaintPatch{BreachedAt: &later, AddAssignedUser: &staff})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, got.SLA.BreachedAt)
	assert.Equal(t, first, *got.SLA.BreachedAt)
	assert.Equal(t, []string{"staff-1"}, got.AssignedUsers)

	ok, err = repo.UpdateIf(ctx, "c-1", 3, ComplaintPatch{})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = repo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
}

func TestMemoryComplaintRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryComplaintRepository()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	staff := "staff-1"
	seed := []domain.Complaint{
		{ID: "c-3", City: "Agra", Status: domain.ComplaintStatusOpen, CreatedAt: base.Add(2 * time.Hour), AssignedTo: &staff},
		{ID: "c-1", City: "Agra", Status: domain.ComplaintStatusResolved, Department: domain.DepartmentPlumbing, CreatedAt: base, AssignedTo: &staff},
		{ID: "c-2", City: "Pune", Status: domain.ComplaintStatusInProgress, CreatedAt: base.Add(time.Hour)},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	all, err := repo.List(ctx, ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c-1", all[0].ID)
	assert.Equal(t, "c-3", all[2].ID)

	missing, err := repo.List(ctx, ComplaintFilter{DepartmentMissing: true, City: ptrTo("Agra")})
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "c-3", missing[0].ID)

	open, err := repo.CountByAssignee(ctx, staff, domain.ActiveStatuses)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	none, err := repo.List(ctx, ComplaintFilter{City: ptrTo("Delhi")})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMemoryStaffRepositoryAddPointsClampsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStaffRepository(domain.StaffMember{ID: "s-1", Points: 3})

	total, err := repo.AddPoints(ctx, "s-1", -10)
	require.NoError(t, err)
	assert.Zero(t, total)

	total, err = repo.AddPoints(ctx, "s-1", 8)
	require.NoError(t, err)
	assert.Equal(t, 8, total)

	_, err = repo.AddPoints(ctx, "ghost", 1)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func ptrTo[T any](v T) *T { return &v }
