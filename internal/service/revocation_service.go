package service

import (
	"context"
	"fmt"

	"blockdrive/internal/apperr"
	"blockdrive/internal/domain"
)

// RevocationService ведет список unshared_members: локальные отписки
// пользователей от org/public объектов. Отписка не трогает глобальный ACL
// объекта — только скрывает его для одного пользователя.
type RevocationService struct {
	resources ResourceStore
}

func NewRevocationService(resources ResourceStore) *RevocationService {
	return &RevocationService{resources: resources}
}

// OptOut скрывает объект для пользователя. Повторная отписка — конфликт:
// доступ уже был отозван (гонка между отпиской и явным unshare).
func (s *RevocationService) OptOut(ctx context.Context, res *domain.Resource, userID string) error {
	if res.IsUnshared(userID) {
		return apperr.New(apperr.CodeConflict, "revocation.conflict")
	}

	unshared := append(cloneIDs(res.UnsharedMembers), userID)
	if err := s.resources.UpdateCollaborators(ctx, res.ObjectID, cloneIDs(res.Editors), cloneIDs(res.Viewers), unshared); err != nil {
		return fmt.Errorf("failed to persist opt-out: %w", err)
	}
	res.UnsharedMembers = unshared
	return nil
}

// ClearOptOut убирает отписки перечисленных пользователей. Вызывается
// автоматически при явном повторном шаринге: явный доступ сильнее
// прежней самоотписки. Отписки не наследуются детьми сами по себе —
// только через обычный каскад.
func (s *RevocationService) ClearOptOut(ctx context.Context, res *domain.Resource, userIDs []string) error {
	unshared := cloneIDs(res.UnsharedMembers)
	before := len(unshared)
	for _, userID := range userIDs {
		unshared = removeID(unshared, userID)
	}
	if len(unshared) == before {
		return nil
	}

	if err := s.resources.UpdateCollaborators(ctx, res.ObjectID, cloneIDs(res.Editors), cloneIDs(res.Viewers), unshared); err != nil {
		return fmt.Errorf("failed to clear opt-out: %w", err)
	}
	res.UnsharedMembers = unshared
	return nil
}
