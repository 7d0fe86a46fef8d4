package domain

// UserInfo представляет информацию о пользователе из сервиса аутентификации
type UserInfo struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Lastname       string `json:"lastname"`
	OrganizationID string `json:"organization_id"`
	// GlobalAdmin — администратор всей инсталляции (может удалять PUBLIC-объекты)
	GlobalAdmin bool `json:"global_admin"`
}

// ShareResult возвращается операцией шаринга: полный список соавторов и те,
// чей фактический доступ изменился (для них отправляются уведомления)
type ShareResult struct {
	AllCollaborators     []string `json:"all_collaborators"`
	ChangedCollaborators []string `json:"changed_collaborators"`
}
