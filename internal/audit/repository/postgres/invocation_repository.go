package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aras-services/pam-policy-bridge/internal/audit/domain"
)

// InvocationRepository is a pgx-backed domain.InvocationRepository.
type InvocationRepository struct {
	db *pgxpool.Pool
}

func NewInvocationRepository(db *pgxpool.Pool) domain.InvocationRepository {
	return &InvocationRepository{db: db}
}

func (r *InvocationRepository) Create(rec *domain.InvocationRecord) error {
	query := `
		INSERT INTO invocations (id, correlation_id, hook, pid, child_path, result_code, error_text, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(context.Background(), query,
		rec.ID, rec.CorrelationID, rec.Hook, rec.PID, rec.ChildPath, rec.ResultCode, rec.ErrorText, rec.StartedAt, rec.FinishedAt)
	return err
}

func (r *InvocationRepository) GetByID(id uuid.UUID) (*domain.InvocationRecord, error) {
	query := `
		SELECT id, correlation_id, hook, pid, child_path, result_code, error_text, started_at, finished_at, created_at
		FROM invocations WHERE id = $1
	`
	var rec domain.InvocationRecord
	err := r.db.QueryRow(context.Background(), query, id).Scan(
		&rec.ID, &rec.CorrelationID, &rec.Hook, &rec.PID, &rec.ChildPath, &rec.ResultCode, &rec.ErrorText,
		&rec.StartedAt, &rec.FinishedAt, &rec.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *InvocationRepository) List(limit, offset int, hookFilter string) ([]*domain.InvocationRecord, error) {
	query := `
		SELECT id, correlation_id, hook, pid, child_path, result_code, error_text, started_at, finished_at, created_at
		FROM invocations
		WHERE ($3 = '' OR hook = $3)
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(context.Background(), query, limit, offset, hookFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.InvocationRecord
	for rows.Next() {
		var rec domain.InvocationRecord
		if err := rows.Scan(
			&rec.ID, &rec.CorrelationID, &rec.Hook, &rec.PID, &rec.ChildPath, &rec.ResultCode, &rec.ErrorText,
			&rec.StartedAt, &rec.FinishedAt, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

func (r *InvocationRepository) Count(hookFilter string) (int, error) {
	query := `SELECT COUNT(*) FROM invocations WHERE ($1 = '' OR hook = $1)`
	var count int
	err := r.db.QueryRow(context.Background(), query, hookFilter).Scan(&count)
	return count, err
}
