package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// ComplaintFilter captures complaint query parameters. A zero Limit returns every match.
type ComplaintFilter struct {
	City              *string
	ReporterID        *string
	Department        *domain.Department
	DepartmentMissing bool
	AssignedTo        *string
	ResolvedBy        *string
	Statuses          []domain.ComplaintStatus
	Limit             int
	Offset            int
}

// ComplaintPatch lists the fields a conditional update may change. Nil fields are untouched.
type ComplaintPatch struct {
	Department      *domain.Department
	Status          *domain.ComplaintStatus
	AssignedTo      *string
	AddAssignedUser *string
	// ClearAssignee releases the current owner. AssignedTo wins when both are set.
	ClearAssignee bool
	// BreachedAt only applies when the stored value is still NULL.
	BreachedAt    *time.Time
	TimeRemaining *time.Duration
	EvaluatedAt   *time.Time
	Escalation    *domain.EscalationRecord
	ResolvedAt    *time.Time
	ResolvedBy    *string
	PointsAwarded *int
}

// IsEmpty reports whether the patch would change nothing.
func (p ComplaintPatch) IsEmpty() bool {
	return p.Department == nil && p.Status == nil && p.AssignedTo == nil && p.AddAssignedUser == nil &&
		!p.ClearAssignee && p.BreachedAt == nil && p.TimeRemaining == nil && p.EvaluatedAt == nil && p.Escalation == nil &&
		p.ResolvedAt == nil && p.ResolvedBy == nil && p.PointsAwarded == nil
}

// ComplaintRepository encapsulates complaint persistence. Writes are per complaint and
// conditioned on the version read by the caller.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error)
	// UpdateIf applies patch only when the stored version equals expectedVersion.
	// It reports false, without error, when the complaint changed since it was read.
	UpdateIf(ctx context.Context, id string, expectedVersion int64, patch ComplaintPatch) (bool, error)
	CountByAssignee(ctx context.Context, staffID string, statuses []domain.ComplaintStatus) (int, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `id, reporter_id, category, department, city, title, description, status, priority,
        assigned_to, assigned_users, sla_deadline, sla_breached_at, sla_time_remaining_seconds, sla_evaluated_at,
        escalation_level, escalated_at, escalation_reason, escalated_to, resolved_at, resolved_by,
        points_awarded, version, created_at, updated_at`

func (r *complaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	if r.pool == nil {
		return errPoolMissing
	}
	const query = `
        INSERT INTO complaints (id, reporter_id, category, department, city, title, description, status, priority,
            assigned_to, assigned_users, sla_deadline, sla_time_remaining_seconds, escalation_level, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING version, updated_at`
	users := c.AssignedUsers
	if users == nil {
		users = []string{}
	}
	err := r.pool.QueryRow(ctx, query,
		c.ID,
		c.ReporterID,
		c.Category,
		nullableDepartment(c.Department),
		c.City,
		c.Title,
		c.Description,
		string(c.Status),
		string(c.Priority),
		c.AssignedTo,
		users,
		c.SLA.Deadline,
		int64(c.SLA.TimeRemaining/time.Second),
		int(c.Escalation.Level),
		c.CreatedAt,
	).Scan(&c.Version, &c.UpdatedAt)
	return classify(err)
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	if r.pool == nil {
		return nil, errPoolMissing
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1`
	complaint, err := scanComplaint(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return complaint, nil
}

func (r *complaintRepository) List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	if r.pool == nil {
		return nil, errPoolMissing
	}
	clauses := []string{"1=1"}
	args := []any{}

	if filter.City != nil {
		args = append(args, *filter.City)
		clauses = append(clauses, fmt.Sprintf("city=$%d", len(args)))
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, string(*filter.Department))
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.DepartmentMissing {
		clauses = append(clauses, "(department IS NULL OR TRIM(department) = '')")
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.ResolvedBy != nil {
		args = append(args, *filter.ResolvedBy)
		clauses = append(clauses, fmt.Sprintf("resolved_by=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE %s ORDER BY created_at ASC, id ASC`,
		complaintColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.Complaint
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, classify(err)
		}
		result = append(result, *complaint)
	}
	return result, classify(rows.Err())
}

func (r *complaintRepository) UpdateIf(ctx context.Context, id string, expectedVersion int64, patch ComplaintPatch) (bool, error) {
	if r.pool == nil {
		return false, errPoolMissing
	}
	if patch.IsEmpty() {
		return true, nil
	}
	args := []any{id, expectedVersion}
	sets := []string{}
	set := func(expr string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.Department != nil {
		set("department=$%d", string(*patch.Department))
	}
	if patch.Status != nil {
		set("status=$%d", string(*patch.Status))
	}
	if patch.AssignedTo != nil {
		set("assigned_to=$%d", *patch.AssignedTo)
	} else if patch.ClearAssignee {
		sets = append(sets, "assigned_to=NULL")
	}
	if patch.AddAssignedUser != nil {
		args = append(args, *patch.AddAssignedUser)
		n := len(args)
		sets = append(sets, fmt.Sprintf(
			"assigned_users = CASE WHEN $%d = ANY(assigned_users) THEN assigned_users ELSE array_append(assigned_users, $%d) END", n, n))
	}
	if patch.BreachedAt != nil {
		set("sla_breached_at=COALESCE(sla_breached_at, $%d)", *patch.BreachedAt)
	}
	if patch.TimeRemaining != nil {
		set("sla_time_remaining_seconds=$%d", int64(*patch.TimeRemaining/time.Second))
	}
	if patch.EvaluatedAt != nil {
		set("sla_evaluated_at=$%d", *patch.EvaluatedAt)
	}
	if patch.Escalation != nil {
		set("escalation_level=$%d", int(patch.Escalation.Level))
		set("escalated_at=$%d", patch.Escalation.EscalatedAt)
		set("escalation_reason=$%d", patch.Escalation.Reason)
		set("escalated_to=$%d", patch.Escalation.EscalatedTo)
	}
	if patch.ResolvedAt != nil {
		set("resolved_at=$%d", *patch.ResolvedAt)
	}
	if patch.ResolvedBy != nil {
		set("resolved_by=$%d", *patch.ResolvedBy)
	}
	if patch.PointsAwarded != nil {
		set("points_awarded=$%d", *patch.PointsAwarded)
	}

	query := fmt.Sprintf(`UPDATE complaints SET %s, version=version+1, updated_at=NOW() WHERE id=$1 AND version=$2`,
		strings.Join(sets, ", "))
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, classify(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *complaintRepository) CountByAssignee(ctx context.Context, staffID string, statuses []domain.ComplaintStatus) (int, error) {
	if r.pool == nil {
		return 0, errPoolMissing
	}
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}
	const query = `SELECT COUNT(*) FROM complaints WHERE assigned_to=$1 AND (cardinality($2::text[]) = 0 OR status = ANY($2))`
	var count int
	if err := r.pool.QueryRow(ctx, query, staffID, values).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func scanComplaint(row pgx.Row) (*domain.Complaint, error) {
	var (
		c             domain.Complaint
		department    *string
		status        string
		priority      string
		remainingSecs int64
		level         int
		reason        *string
	)
	if err := row.Scan(
		&c.ID,
		&c.ReporterID,
		&c.Category,
		&department,
		&c.City,
		&c.Title,
		&c.Description,
		&status,
		&priority,
		&c.AssignedTo,
		&c.AssignedUsers,
		&c.SLA.Deadline,
		&c.SLA.BreachedAt,
		&remainingSecs,
		&c.SLA.LastEvaluatedAt,
		&level,
		&c.Escalation.EscalatedAt,
		&reason,
		&c.Escalation.EscalatedTo,
		&c.ResolvedAt,
		&c.ResolvedBy,
		&c.PointsAwarded,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if department != nil {
		c.Department = domain.Department(strings.TrimSpace(*department))
	}
	if reason != nil {
		c.Escalation.Reason = *reason
	}
	c.Status = domain.ComplaintStatus(status)
	c.Priority = domain.ComplaintPriority(priority)
	c.SLA.TimeRemaining = time.Duration(remainingSecs) * time.Second
	c.Escalation.Level = domain.EscalationLevel(level)
	return &c, nil
}

func nullableDepartment(d domain.Department) *string {
	if d.IsMissing() {
		return nil
	}
	v := string(d)
	return &v
}
