package domain

import (
	"time"

	"github.com/google/uuid"
)

// SharedRecord — legacy-модель шаринга: отдельная строка на пару
// (пользователь, объект) со своим режимом доступа. Используется для типов
// ресурсов, где списки соавторов на самом объекте хранить неэффективно.
// Каждая запись обязана ссылаться на живой Resource.
type SharedRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	SharedUserID string    `json:"shared_user_id" db:"shared_user_id"`
	ObjectID     string    `json:"object_id" db:"object_id"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	Mode         ShareMode `json:"mode" db:"mode"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
