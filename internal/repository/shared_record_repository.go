package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"blockdrive/internal/domain"
)

// SharedRecordRepository хранит legacy-записи шаринга: по строке на пару
// (пользователь, объект)
type SharedRecordRepository struct {
	db *sqlx.DB
}

func NewSharedRecordRepository(db *sqlx.DB) *SharedRecordRepository {
	return &SharedRecordRepository{db: db}
}

func (r *SharedRecordRepository) GetByObject(ctx context.Context, objectID string) ([]domain.SharedRecord, error) {
	query := `SELECT * FROM shared_records WHERE object_id = $1`

	var records []domain.SharedRecord
	if err := r.db.SelectContext(ctx, &records, query, objectID); err != nil {
		return nil, fmt.Errorf("failed to get shared records: %w", err)
	}

	return records, nil
}

func (r *SharedRecordRepository) GetByUser(ctx context.Context, sharedUserID string, resourceType string) ([]domain.SharedRecord, error) {
	query := `
        SELECT * FROM shared_records
        WHERE shared_user_id = $1 AND resource_type = $2
        ORDER BY created_at DESC`

	var records []domain.SharedRecord
	if err := r.db.SelectContext(ctx, &records, query, sharedUserID, resourceType); err != nil {
		return nil, fmt.Errorf("failed to get user shared records: %w", err)
	}

	return records, nil
}

// Upsert создает запись при первом шаринге и обновляет режим при повторном
func (r *SharedRecordRepository) Upsert(ctx context.Context, record *domain.SharedRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query := `
        INSERT INTO shared_records (id, shared_user_id, object_id, resource_type, mode, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
        ON CONFLICT (shared_user_id, object_id)
        DO UPDATE SET mode = EXCLUDED.mode, updated_at = CURRENT_TIMESTAMP
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		record.ID,
		record.SharedUserID,
		record.ObjectID,
		record.ResourceType,
		record.Mode,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
}

// Delete удаляет запись шаринга. Отсутствие записи не является ошибкой:
// unshare идемпотентен.
func (r *SharedRecordRepository) Delete(ctx context.Context, sharedUserID string, objectID string) error {
	query := `DELETE FROM shared_records WHERE shared_user_id = $1 AND object_id = $2`

	if _, err := r.db.ExecContext(ctx, query, sharedUserID, objectID); err != nil {
		return fmt.Errorf("failed to delete shared record: %w", err)
	}
	return nil
}

// DeleteByObject удаляет все записи шаринга объекта (при удалении объекта
// или при передаче владения)
func (r *SharedRecordRepository) DeleteByObject(ctx context.Context, objectID string) error {
	query := `DELETE FROM shared_records WHERE object_id = $1`

	if _, err := r.db.ExecContext(ctx, query, objectID); err != nil {
		return fmt.Errorf("failed to delete shared records: %w", err)
	}
	return nil
}
