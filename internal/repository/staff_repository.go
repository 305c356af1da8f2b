package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// StaffRepository handles persistence for staff members.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error)
	// Update rewrites profile fields. Points are owned by AddPoints and left untouched.
	Update(ctx context.Context, staff *domain.StaffMember) error
	// List returns matches ordered by ID. A zero Limit returns every match.
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
	// AddPoints adjusts the running total, never letting it drop below zero.
	AddPoints(ctx context.Context, id string, delta int) (int, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Role       *domain.StaffRole
	Department *domain.Department
	City       *string
	Active     *bool
	Limit      int
	Offset     int
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffColumns = `id, name, email, role, department, city, points, active_flag, created_at, updated_at`

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	if r.pool == nil {
		return errPoolMissing
	}
	const query = `
        INSERT INTO staff_members (id, name, email, role, department, city, points, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		staff.ID,
		staff.Name,
		nullableString(staff.Email),
		string(staff.Role),
		nullableDepartment(staff.Department),
		staff.City,
		staff.Points,
		staff.Active,
	).Scan(&staff.CreatedAt, &staff.UpdatedAt)
	return classify(err)
}

func (r *staffRepository) Update(ctx context.Context, staff *domain.StaffMember) error {
	if r.pool == nil {
		return errPoolMissing
	}
	const query = `
        UPDATE staff_members SET name=$2, email=$3, role=$4, department=$5, city=$6, active_flag=$7, updated_at=NOW()
        WHERE id=$1
        RETURNING points, updated_at`

	err := r.pool.QueryRow(ctx, query,
		staff.ID,
		staff.Name,
		nullableString(staff.Email),
		string(staff.Role),
		nullableDepartment(staff.Department),
		staff.City,
		staff.Active,
	).Scan(&staff.Points, &staff.UpdatedAt)
	return classify(err)
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	if r.pool == nil {
		return nil, errPoolMissing
	}
	query := `SELECT ` + staffColumns + ` FROM staff_members WHERE id=$1`
	staff, err := scanStaff(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify(err)
	}
	return staff, nil
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	if r.pool == nil {
		return nil, errPoolMissing
	}
	query := `SELECT ` + staffColumns + ` FROM staff_members WHERE LOWER(email)=LOWER($1)`
	staff, err := scanStaff(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, classify(err)
	}
	return staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	if r.pool == nil {
		return nil, errPoolMissing
	}
	query := `SELECT ` + staffColumns + ` FROM staff_members`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, string(*filter.Department))
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.City != nil {
		args = append(args, *filter.City)
		clauses = append(clauses, fmt.Sprintf("city=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY id ASC"
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

	var result []domain.StaffMember
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, classify(err)
		}
		result = append(result, *staff)
	}
	return result, classify(rows.Err())
}

func (r *staffRepository) AddPoints(ctx context.Context, id string, delta int) (int, error) {
	if r.pool == nil {
		return 0, errPoolMissing
	}
	const query = `
        UPDATE staff_members SET points = GREATEST(points + $1, 0), updated_at=NOW()
        WHERE id=$2
        RETURNING points`
	var total int
	if err := r.pool.QueryRow(ctx, query, delta, id).Scan(&total); err != nil {
		return 0, classify(err)
	}
	return total, nil
}

func scanStaff(row pgx.Row) (*domain.StaffMember, error) {
	var (
		staff      domain.StaffMember
		email      *string
		role       string
		department *string
	)
	if err := row.Scan(
		&staff.ID,
		&staff.Name,
		&email,
		&role,
		&department,
		&staff.City,
		&staff.Points,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	staff.Role = domain.StaffRole(role)
	if email != nil {
		staff.Email = *email
	}
	if department != nil {
		staff.Department = domain.Department(*department)
	}
	return &staff, nil
}

func nullableString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
