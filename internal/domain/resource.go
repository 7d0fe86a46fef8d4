package domain

import (
	"time"

	"github.com/lib/pq"
)

type OwnerType string
type ObjectType string

const (
	OwnerTypeOwned  OwnerType = "OWNED"
	OwnerTypeOrg    OwnerType = "ORG"
	OwnerTypePublic OwnerType = "PUBLIC"
	OwnerTypeShared OwnerType = "SHARED"
	OwnerTypeGroup  OwnerType = "GROUP"

	ObjectTypeFile   ObjectType = "FILE"
	ObjectTypeFolder ObjectType = "FOLDER"

	// ParentRoot — корень дерева ресурсов пользователя
	// ParentShared — виртуальный корень "Доступные мне"
	ParentRoot   = "-1"
	ParentShared = "SHARED"
)

// OwnerTypeFromRaw преобразует строку в OwnerType.
// Пустая строка и неизвестные значения трактуются как OWNED.
func OwnerTypeFromRaw(raw string) OwnerType {
	switch OwnerType(raw) {
	case OwnerTypeOrg, OwnerTypePublic, OwnerTypeShared, OwnerTypeGroup:
		return OwnerType(raw)
	default:
		return OwnerTypeOwned
	}
}

// Resource представляет узел дерева ресурсов (файл или папку)
type Resource struct {
	ObjectID        string         `json:"object_id" db:"object_id"`
	ResourceType    string         `json:"resource_type" db:"resource_type"`
	ParentID        string         `json:"parent_id" db:"parent_id"`
	ObjectType      ObjectType     `json:"object_type" db:"object_type"`
	OwnerType       OwnerType      `json:"owner_type" db:"owner_type"`
	OwnerID         string         `json:"owner_id" db:"owner_id"`
	CreatedBy       string         `json:"created_by" db:"created_by"`
	Name            string         `json:"name" db:"name"`
	Editors         pq.StringArray `json:"editors" db:"editors"`
	Viewers         pq.StringArray `json:"viewers" db:"viewers"`
	UnsharedMembers pq.StringArray `json:"unshared_members" db:"unshared_members"`
	StorageRef      *string        `json:"storage_ref,omitempty" db:"storage_ref"`
	SizeBytes       int64          `json:"size_bytes" db:"size_bytes"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (r *Resource) IsFolder() bool {
	return r.ObjectType == ObjectTypeFolder
}

func (r *Resource) IsRoot() bool {
	return r.ParentID == ParentRoot
}

// IsEditor проверяет, входит ли id (пользователя или организации) в список редакторов
func (r *Resource) IsEditor(id string) bool {
	return containsID(r.Editors, id)
}

// IsViewer проверяет, входит ли id в список наблюдателей
func (r *Resource) IsViewer(id string) bool {
	return containsID(r.Viewers, id)
}

// IsUnshared проверяет, отключил ли пользователь видимость этого объекта для себя
func (r *Resource) IsUnshared(userID string) bool {
	return containsID(r.UnsharedMembers, userID)
}

func containsID(list []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// Origin описывает, откуда объект попал в выдачу агрегированного списка
type Origin string

const (
	OriginOwned  Origin = "owned"
	OriginShared Origin = "shared"
	OriginOrg    Origin = "org"
	OriginPublic Origin = "public"
)

// ListedResource — ресурс в агрегированной выдаче с признаком происхождения
type ListedResource struct {
	Resource
	Origin Origin `json:"origin"`
	// SharedVia заполняется для объектов, видимых через шаринг родителя
	SharedVia string `json:"shared_via,omitempty"`
	// Synthetic помечает виртуальную коллекцию "shared blocks" —
	// библиотеку без прямого шаринга, внутри которой есть расшаренные блоки
	Synthetic bool `json:"synthetic,omitempty"`
}
