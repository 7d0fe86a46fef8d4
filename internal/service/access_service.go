package service

import (
	"context"
	"log"

	"blockdrive/internal/domain"
	"blockdrive/internal/identity"
)

// AccessService решает, разрешена ли пользователю операция над ресурсом.
// Решение строится по типу владения (базовый уровень) и персональным
// грантам (надстройка); обе проверки выполняются всегда, кроме PUBLIC,
// у которого персонального слоя нет — только список opt-out.
type AccessService struct {
	identityProvider identity.Provider
	ledgers          *Ledgers
}

func NewAccessService(identityProvider identity.Provider, ledgers *Ledgers) *AccessService {
	return &AccessService{
		identityProvider: identityProvider,
		ledgers:          ledgers,
	}
}

// Evaluate выполняет проверку доступа. perm == nil означает простую проверку
// видимости ("покажи мои объекты") без конкретной операции.
func (s *AccessService) Evaluate(
	ctx context.Context,
	userID string,
	res *domain.Resource,
	perm *domain.Permission,
	editRequired bool,
) domain.AccessDecision {
	user, err := s.identityProvider.GetUserByID(ctx, userID)
	if err != nil {
		// Сервис идентификации недоступен: пользователь без организации
		// и без административных прав
		log.Printf("[access] failed to resolve user %s: %v", userID, err)
		user = &domain.UserInfo{ID: userID}
	}

	var decision domain.AccessDecision

	switch res.OwnerType {
	case domain.OwnerTypeOwned:
		decision = s.evaluateOwned(user.ID, res)
	case domain.OwnerTypeOrg:
		decision = s.evaluateOrgOrPublic(ctx, user, res, perm, editRequired, false)
	case domain.OwnerTypePublic:
		decision = s.evaluateOrgOrPublic(ctx, user, res, perm, editRequired, true)
	case domain.OwnerTypeShared, domain.OwnerTypeGroup:
		decision = s.evaluateShared(ctx, user, res, perm, editRequired)
	}

	// Базовый уровень не дал доступа — проверяем персональные гранты.
	// Для PUBLIC надстройки не существует, для SHARED она уже проверена.
	if s.needsOverrideCheck(decision, res.OwnerType) {
		override := s.evaluateShared(ctx, user, res, perm, editRequired)
		if override.Allowed || override.SelfUnshareAccess || override.OrgRevocationOnly {
			decision = override
		}
	}

	if !decision.Allowed && !decision.SelfUnshareAccess && !decision.OrgRevocationOnly && decision.ErrorID == "" {
		if perm != nil {
			decision.ErrorID = perm.ErrorTag(res.IsFolder())
		} else {
			decision.ErrorID = domain.ErrNoAccessGeneric
		}
	}

	return decision
}

func (s *AccessService) needsOverrideCheck(decision domain.AccessDecision, ownerType domain.OwnerType) bool {
	if decision.Allowed || decision.SelfUnshareAccess || decision.OrgRevocationOnly {
		return false
	}
	return ownerType == domain.OwnerTypeOwned || ownerType == domain.OwnerTypeOrg || ownerType == domain.OwnerTypeGroup
}

// evaluateOwned: у личного объекта базовый доступ есть только у владельца,
// все остальное — через персональные гранты надстройки
func (s *AccessService) evaluateOwned(userID string, res *domain.Resource) domain.AccessDecision {
	if res.OwnerID == userID {
		return domain.Allow()
	}
	return domain.AccessDecision{}
}

// evaluateOrgOrPublic — общая ветка для ORG и PUBLIC объектов. Пути
// самоотписки у них намеренно едины: вместо удаления чужого объекта
// пользователю предлагается локально скрыть его (OrgRevocationOnly).
func (s *AccessService) evaluateOrgOrPublic(
	ctx context.Context,
	user *domain.UserInfo,
	res *domain.Resource,
	perm *domain.Permission,
	editRequired bool,
	isPublic bool,
) domain.AccessDecision {
	// Пользователь локально скрыл объект — доступа нет, членство не важно
	if res.IsUnshared(user.ID) {
		return domain.AccessDecision{}
	}

	if isPublic {
		// Публичные объекты нельзя расшаривать и отзывать: они и так видны всем
		if perm != nil && (*perm == domain.PermissionShare || *perm == domain.PermissionUnshare) {
			return domain.AccessDecision{}
		}
		if !editRequired {
			return domain.Allow()
		}
		if user.GlobalAdmin {
			return domain.Allow()
		}
		if perm != nil && *perm == domain.PermissionDelete {
			return domain.AccessDecision{OrgRevocationOnly: true, CanDeleteInstead: false}
		}
		return domain.AccessDecision{}
	}

	if user.OrganizationID == "" || user.OrganizationID != res.OwnerID {
		return domain.AccessDecision{}
	}
	if !editRequired {
		return domain.Allow()
	}

	isAdmin, err := s.identityProvider.IsOrgAdmin(ctx, user.ID, res.OwnerID)
	if err != nil {
		log.Printf("[access] failed to check org admin for %s in %s: %v", user.ID, res.OwnerID, err)
		return domain.AccessDecision{}
	}
	if isAdmin {
		return domain.Allow()
	}
	if perm != nil && (*perm == domain.PermissionDelete || *perm == domain.PermissionUnshare) {
		return domain.AccessDecision{OrgRevocationOnly: true, CanDeleteInstead: false}
	}
	return domain.AccessDecision{}
}

// evaluateShared проверяет персональные и организационные гранты объекта
func (s *AccessService) evaluateShared(
	ctx context.Context,
	user *domain.UserInfo,
	res *domain.Resource,
	perm *domain.Permission,
	editRequired bool,
) domain.AccessDecision {
	editors, viewers, err := s.ledgers.Collaborators(ctx, res)
	if err != nil {
		log.Printf("[access] failed to load collaborators of %s: %v", res.ObjectID, err)
		return domain.AccessDecision{}
	}

	if containsID(editors, user.ID) {
		return domain.Allow()
	}

	if containsID(viewers, user.ID) {
		if !editRequired {
			return domain.Allow()
		}
		// Наблюдатель не правит объект, но может убрать собственный доступ
		if perm != nil && (*perm == domain.PermissionUnshare || *perm == domain.PermissionDelete) {
			return domain.AccessDecision{SelfUnshareAccess: true, CanDeleteInstead: false}
		}
		return domain.AccessDecision{}
	}

	// Объект мог быть расшарен на организацию целиком
	if user.OrganizationID == "" {
		return domain.AccessDecision{}
	}

	if containsID(editors, user.OrganizationID) {
		if !editRequired {
			return domain.Allow()
		}
		isAdmin, err := s.identityProvider.IsOrgAdmin(ctx, user.ID, user.OrganizationID)
		if err != nil {
			log.Printf("[access] failed to check org admin for %s: %v", user.ID, err)
			return domain.AccessDecision{}
		}
		if isAdmin {
			return domain.Allow()
		}
		if perm != nil && *perm == domain.PermissionDelete {
			return domain.AccessDecision{OrgRevocationOnly: true, CanDeleteInstead: false}
		}
		return domain.AccessDecision{}
	}

	if containsID(viewers, user.OrganizationID) {
		if !editRequired {
			return domain.Allow()
		}
		if perm != nil && (*perm == domain.PermissionUnshare || *perm == domain.PermissionDelete) {
			return domain.AccessDecision{OrgRevocationOnly: true, CanDeleteInstead: false}
		}
		return domain.AccessDecision{}
	}

	return domain.AccessDecision{}
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
