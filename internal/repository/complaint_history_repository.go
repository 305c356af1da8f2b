package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// ComplaintHistoryRepository stores audit entries.
type ComplaintHistoryRepository interface {
	Create(ctx context.Context, history *domain.ComplaintHistory) error
	ListByComplaint(ctx context.Context, complaintID string) ([]domain.ComplaintHistory, error)
}

type complaintHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintHistoryRepository builds repository.
func NewComplaintHistoryRepository(pool *pgxpool.Pool) ComplaintHistoryRepository {
	return &complaintHistoryRepository{pool: pool}
}

func (r *complaintHistoryRepository) Create(ctx context.Context, history *domain.ComplaintHistory) error {
	if r.pool == nil {
		return errPoolMissing
	}
	const query = `
        INSERT INTO complaint_history (id, complaint_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`
	return classify(r.pool.QueryRow(ctx, query,
		history.ID,
		history.ComplaintID,
		string(history.ChangedByType),
		history.ChangedByID,
		string(history.ChangeType),
		history.OldValue,
		history.NewValue,
	).Scan(&history.CreatedAt))
}

func (r *complaintHistoryRepository) ListByComplaint(ctx context.Context, complaintID string) ([]domain.ComplaintHistory, error) {
	if r.pool == nil {
		return nil, errPoolMissing
	}
	const query = `
        SELECT id, complaint_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM complaint_history WHERE complaint_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.ComplaintHistory
	for rows.Next() {
		var (
			history    domain.ComplaintHistory
			actorType  string
			changeType string
		)
		if err := rows.Scan(
			&history.ID,
			&history.ComplaintID,
			&actorType,
			&history.ChangedByID,
			&changeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, classify(err)
		}
		history.ChangedByType = domain.ActorType(actorType)
		history.ChangeType = domain.ComplaintChangeType(changeType)
		result = append(result, history)
	}
	return result, classify(rows.Err())
}
