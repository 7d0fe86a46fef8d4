package domain

// AccessDecision — результат проверки доступа. Создается заново на каждый
// вызов и никогда не сохраняется.
type AccessDecision struct {
	Allowed bool `json:"allowed"`
	// ErrorID — код локализованной ошибки при отказе
	ErrorID string `json:"error_id,omitempty"`
	// SelfUnshareAccess: пользователь может убрать только собственный доступ
	SelfUnshareAccess bool `json:"self_unshare_access,omitempty"`
	// OrgRevocationOnly: вместо удаления org/public-объекта пользователю
	// доступно только локальное отключение видимости (opt-out)
	OrgRevocationOnly bool `json:"org_revocation_only,omitempty"`
	// CanDeleteInstead подсказывает вызывающему, разрешено ли настоящее удаление
	CanDeleteInstead bool `json:"can_delete_instead,omitempty"`
}

func Allow() AccessDecision {
	return AccessDecision{Allowed: true}
}
