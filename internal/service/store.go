package service

import (
	"context"

	"blockdrive/internal/domain"
)

// Интерфейсы хранилищ. Сервисы получают их через конструкторы, что позволяет
// подменять реализацию в тестах (репозитории sqlx — боевая реализация).

type ResourceStore interface {
	Create(ctx context.Context, res *domain.Resource) error
	GetByID(ctx context.Context, objectID string) (*domain.Resource, error)
	GetByParent(ctx context.Context, parentID string, ownerType domain.OwnerType, ownerID string, resourceType string) ([]domain.Resource, error)
	GetByOwnerAndName(ctx context.Context, ownerID string, ownerType domain.OwnerType, resourceType string, parentID string, name string) ([]domain.Resource, error)
	GetByOwnerType(ctx context.Context, resourceType string, ownerType domain.OwnerType, ownerID string) ([]domain.Resource, error)
	GetChildren(ctx context.Context, parentID string) ([]domain.Resource, error)
	GetSharedWithUser(ctx context.Context, resourceType string, ids ...string) ([]domain.Resource, error)
	UpdateName(ctx context.Context, objectID string, name string) error
	UpdateCollaborators(ctx context.Context, objectID string, editors, viewers, unshared []string) error
	UpdateParent(ctx context.Context, objectID string, parentID string, ownerID string) error
	SoftDelete(ctx context.Context, objectID string) error
	Delete(ctx context.Context, objectID string) error
}

type SharedRecordStore interface {
	GetByObject(ctx context.Context, objectID string) ([]domain.SharedRecord, error)
	GetByUser(ctx context.Context, sharedUserID string, resourceType string) ([]domain.SharedRecord, error)
	Upsert(ctx context.Context, record *domain.SharedRecord) error
	Delete(ctx context.Context, sharedUserID string, objectID string) error
	DeleteByObject(ctx context.Context, objectID string) error
}

// ContentStorage — S3-совместимое хранилище содержимого файлов
type ContentStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type QuotaStore interface {
	GetByOwner(ctx context.Context, ownerID string) (*domain.StorageQuota, error)
	AddUsage(ctx context.Context, ownerID string, delta int64) error
	UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error
	Recalculate(ctx context.Context, ownerID string) error
}
