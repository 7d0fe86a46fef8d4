package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"blockdrive/internal/domain"
)

type StorageQuotaRepository struct {
	db *sqlx.DB
}

func NewStorageQuotaRepository(db *sqlx.DB) *StorageQuotaRepository {
	return &StorageQuotaRepository{db: db}
}

func (r *StorageQuotaRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.StorageQuota, error) {
	var quota domain.StorageQuota

	err := r.db.GetContext(ctx, &quota,
		`SELECT * FROM storage_quotas WHERE owner_id = $1`,
		ownerID)

	if err != nil {
		// Если квоты нет, создаем новую с дефолтным лимитом
		if errors.Is(err, sql.ErrNoRows) {
			quota = domain.StorageQuota{
				OwnerID:         ownerID,
				TotalBytesLimit: 5368709120, // 5GB
				UsedBytes:       0,
			}

			if err := r.create(ctx, &quota); err != nil {
				return nil, fmt.Errorf("failed to create quota: %w", err)
			}
			return &quota, nil
		}
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	return &quota, nil
}

func (r *StorageQuotaRepository) create(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
        INSERT INTO storage_quotas (owner_id, total_bytes_limit, used_bytes)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		quota.OwnerID,
		quota.TotalBytesLimit,
		quota.UsedBytes,
	).Scan(&quota.ID, &quota.CreatedAt, &quota.UpdatedAt)
}

// AddUsage изменяет used_bytes на delta (отрицательная delta — освобождение места)
func (r *StorageQuotaRepository) AddUsage(ctx context.Context, ownerID string, delta int64) error {
	query := `
        UPDATE storage_quotas
        SET used_bytes = GREATEST(0, used_bytes + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, delta, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update used space: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		// Квоты еще нет — создаем и повторяем
		if _, err := r.GetByOwner(ctx, ownerID); err != nil {
			return err
		}
		_, err = r.db.ExecContext(ctx, query, delta, ownerID)
		return err
	}

	return nil
}

func (r *StorageQuotaRepository) UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error {
	query := `
        UPDATE storage_quotas
        SET total_bytes_limit = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("quota not found for owner: %s", ownerID)
	}

	return nil
}

// Recalculate пересчитывает занятое место по живым файлам владельца
func (r *StorageQuotaRepository) Recalculate(ctx context.Context, ownerID string) error {
	query := `
        UPDATE storage_quotas sq
        SET used_bytes = COALESCE((
                SELECT SUM(r.size_bytes)
                FROM resources r
                WHERE r.owner_id = $1
                  AND r.object_type = 'FILE'
                  AND r.deleted_at IS NULL
            ), 0),
            updated_at = CURRENT_TIMESTAMP
        WHERE sq.owner_id = $1`

	if _, err := r.db.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("failed to recalculate used space: %w", err)
	}
	return nil
}
