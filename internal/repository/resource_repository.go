package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"blockdrive/internal/apperr"
	"blockdrive/internal/domain"
)

type ResourceRepository struct {
	db *sqlx.DB
}

func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `
        object_id, resource_type, parent_id, object_type, owner_type, owner_id,
        created_by, name, editors, viewers, unshared_members, storage_ref,
        size_bytes, created_at, updated_at, deleted_at`

func (r *ResourceRepository) Create(ctx context.Context, res *domain.Resource) error {
	query := `
        INSERT INTO resources (
            object_id, resource_type, parent_id, object_type, owner_type, owner_id,
            created_by, name, editors, viewers, unshared_members, storage_ref, size_bytes,
            created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
            CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
        ) RETURNING created_at, updated_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		res.ObjectID,
		res.ResourceType,
		res.ParentID,
		res.ObjectType,
		res.OwnerType,
		res.OwnerID,
		res.CreatedBy,
		res.Name,
		pq.Array(res.Editors),
		pq.Array(res.Viewers),
		pq.Array(res.UnsharedMembers),
		res.StorageRef,
		res.SizeBytes,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
}

func (r *ResourceRepository) GetByID(ctx context.Context, objectID string) (*domain.Resource, error) {
	query := `SELECT ` + resourceColumns + `
        FROM resources
        WHERE object_id = $1 AND deleted_at IS NULL`

	var res domain.Resource
	if err := r.db.GetContext(ctx, &res, query, objectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("object")
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	return &res, nil
}

// GetByParent возвращает прямых потомков папки с фильтром по владельцу
func (r *ResourceRepository) GetByParent(ctx context.Context, parentID string, ownerType domain.OwnerType, ownerID string, resourceType string) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + `
        FROM resources
        WHERE parent_id = $1 AND resource_type = $2 AND deleted_at IS NULL`
	args := []interface{}{parentID, resourceType}

	if ownerType != "" {
		args = append(args, ownerType)
		query += fmt.Sprintf(" AND owner_type = $%d", len(args))
	}
	if ownerID != "" {
		args = append(args, ownerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	query += " ORDER BY object_type DESC, name"

	var resources []domain.Resource
	if err := r.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get resources by parent: %w", err)
	}

	return resources, nil
}

// GetByOwnerAndName используется для проверки дубликатов имен внутри папки
func (r *ResourceRepository) GetByOwnerAndName(ctx context.Context, ownerID string, ownerType domain.OwnerType, resourceType string, parentID string, name string) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + `
        FROM resources
        WHERE owner_id = $1 AND owner_type = $2 AND resource_type = $3
          AND parent_id = $4 AND name = $5 AND deleted_at IS NULL`

	var resources []domain.Resource
	err := r.db.SelectContext(ctx, &resources, query, ownerID, ownerType, resourceType, parentID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get resources by name: %w", err)
	}

	return resources, nil
}

func (r *ResourceRepository) UpdateName(ctx context.Context, objectID string, name string) error {
	query := `
        UPDATE resources
        SET name = $1, updated_at = CURRENT_TIMESTAMP
        WHERE object_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, name, objectID)
	if err != nil {
		return fmt.Errorf("failed to rename resource: %w", err)
	}
	return checkAffected(result)
}

// UpdateCollaborators перезаписывает списки соавторов целиком.
// Версионного контроля нет: при гонке двух запросов побеждает последний.
func (r *ResourceRepository) UpdateCollaborators(ctx context.Context, objectID string, editors, viewers, unshared []string) error {
	query := `
        UPDATE resources
        SET editors = $1, viewers = $2, unshared_members = $3, updated_at = CURRENT_TIMESTAMP
        WHERE object_id = $4 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query,
		pq.Array(editors), pq.Array(viewers), pq.Array(unshared), objectID)
	if err != nil {
		return fmt.Errorf("failed to update collaborators: %w", err)
	}
	return checkAffected(result)
}

// UpdateParent перемещает объект: меняются только parent_id и owner_id,
// owner_type после создания неизменен
func (r *ResourceRepository) UpdateParent(ctx context.Context, objectID string, parentID string, ownerID string) error {
	query := `
        UPDATE resources
        SET parent_id = $1, owner_id = $2, updated_at = CURRENT_TIMESTAMP
        WHERE object_id = $3 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, parentID, ownerID, objectID)
	if err != nil {
		return fmt.Errorf("failed to move resource: %w", err)
	}
	return checkAffected(result)
}

// SoftDelete помечает папку удаленной; потомки зачищаются каскадом позже
func (r *ResourceRepository) SoftDelete(ctx context.Context, objectID string) error {
	query := `
        UPDATE resources
        SET deleted_at = CURRENT_TIMESTAMP
        WHERE object_id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, objectID)
	if err != nil {
		return fmt.Errorf("failed to soft delete resource: %w", err)
	}
	return checkAffected(result)
}

// Delete удаляет строку окончательно (для файлов)
func (r *ResourceRepository) Delete(ctx context.Context, objectID string) error {
	query := `DELETE FROM resources WHERE object_id = $1`

	_, err := r.db.ExecContext(ctx, query, objectID)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return nil
}

// GetChildren возвращает прямых потомков папки без фильтров
func (r *ResourceRepository) GetChildren(ctx context.Context, parentID string) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + `
        FROM resources
        WHERE parent_id = $1 AND deleted_at IS NULL
        ORDER BY object_type DESC, name`

	var resources []domain.Resource
	if err := r.db.SelectContext(ctx, &resources, query, parentID); err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}

	return resources, nil
}

// GetSharedWithUser возвращает объекты, где пользователь (или его организация)
// числится в списках соавторов
func (r *ResourceRepository) GetSharedWithUser(ctx context.Context, resourceType string, ids ...string) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + `
        FROM resources
        WHERE resource_type = $1 AND deleted_at IS NULL
          AND (editors && $2 OR viewers && $2)
        ORDER BY name`

	var resources []domain.Resource
	err := r.db.SelectContext(ctx, &resources, query, resourceType, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get shared resources: %w", err)
	}

	return resources, nil
}

// GetByOwnerType возвращает корневые объекты заданного типа владения
// (ветки ORG и PUBLIC при выдаче корневого списка)
func (r *ResourceRepository) GetByOwnerType(ctx context.Context, resourceType string, ownerType domain.OwnerType, ownerID string) ([]domain.Resource, error) {
	query := `SELECT ` + resourceColumns + `
        FROM resources
        WHERE resource_type = $1 AND owner_type = $2 AND parent_id = $3 AND deleted_at IS NULL`
	args := []interface{}{resourceType, ownerType, domain.ParentRoot}

	if ownerID != "" {
		args = append(args, ownerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	query += " ORDER BY name"

	var resources []domain.Resource
	if err := r.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get resources by owner type: %w", err)
	}

	return resources, nil
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFound("object")
	}
	return nil
}
