package service

import (
	"context"
	"fmt"
	"log"

	"blockdrive/internal/domain"
	"blockdrive/internal/notify"
)

// CascadeEnqueuer ставит фоновые каскадные задачи. Постановка задачи не
// входит в контракт успеха операции вызывающего.
type CascadeEnqueuer interface {
	Enqueue(task CascadeTask)
}

// ShareService — точка входа всех мутаций шаринга. Выбор модели хранения
// (множества на объекте или legacy-записи) скрыт за Ledgers.
type ShareService struct {
	resources  ResourceStore
	records    SharedRecordStore
	ledgers    *Ledgers
	revocation *RevocationService
	cascade    CascadeEnqueuer
	notifier   notify.Sink
}

func NewShareService(
	resources ResourceStore,
	records SharedRecordStore,
	ledgers *Ledgers,
	revocation *RevocationService,
	cascade CascadeEnqueuer,
	notifier notify.Sink,
) *ShareService {
	return &ShareService{
		resources:  resources,
		records:    records,
		ledgers:    ledgers,
		revocation: revocation,
		cascade:    cascade,
		notifier:   notifier,
	}
}

// Share выдает доступ перечисленным пользователям. Для папки идентичное
// изменение обязательно дойдет до каждого вложенного объекта — каскад
// ставится в очередь и выполняется асинхронно относительно ответа.
func (s *ShareService) Share(ctx context.Context, res *domain.Resource, targets []string, mode domain.ShareMode) (*domain.ShareResult, error) {
	// Явный шаринг сильнее прежней самоотписки цели
	if err := s.revocation.ClearOptOut(ctx, res, targets); err != nil {
		return nil, fmt.Errorf("failed to clear opt-out before share: %w", err)
	}

	result, err := s.ledgers.For(res.ResourceType).Share(ctx, res, targets, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to share %s: %w", res.ObjectID, err)
	}

	if res.IsFolder() && len(result.ChangedCollaborators) > 0 {
		s.cascade.Enqueue(CascadeTask{
			RootID:  res.ObjectID,
			Kind:    CascadeShare,
			Targets: result.ChangedCollaborators,
			Mode:    mode,
		})
	}

	// Уведомляем только тех, чей фактический доступ изменился
	for _, userID := range result.ChangedCollaborators {
		s.notifier.Emit(ctx, notify.Event{
			Type:     notify.EventShared,
			UserID:   userID,
			Resource: resourceInfo(res),
		})
	}

	return result, nil
}

// Unshare отзывает доступ. Если среди целей владелец — это передача
// владения: объект переезжает в корень владельца родительской папки,
// а все его shared-копии удаляются.
func (s *ShareService) Unshare(ctx context.Context, res *domain.Resource, targets []string) error {
	if containsID(targets, res.OwnerID) {
		handed, err := s.handOwnership(ctx, res)
		if err != nil {
			return err
		}
		if handed {
			return nil
		}
	}

	if err := s.ledgers.For(res.ResourceType).Unshare(ctx, res, targets); err != nil {
		return fmt.Errorf("failed to unshare %s: %w", res.ObjectID, err)
	}

	if res.IsFolder() {
		s.cascade.Enqueue(CascadeTask{
			RootID:  res.ObjectID,
			Kind:    CascadeUnshare,
			Targets: targets,
		})
	}

	for _, userID := range targets {
		if userID == res.OwnerID {
			continue
		}
		s.notifier.Emit(ctx, notify.Event{
			Type:     notify.EventUnshared,
			UserID:   userID,
			Resource: resourceInfo(res),
		})
	}

	return nil
}

// SelfUnshare убирает доступ только самого пользователя. Гарантия уровня
// API: чужие записи этим путем тронуть нельзя.
func (s *ShareService) SelfUnshare(ctx context.Context, res *domain.Resource, userID string) error {
	return s.Unshare(ctx, res, []string{userID})
}

// handOwnership выполняет передачу владения: новый владелец — владелец
// родительской папки. Возвращает false, если передавать некому.
func (s *ShareService) handOwnership(ctx context.Context, res *domain.Resource) (bool, error) {
	if res.ParentID == domain.ParentRoot || res.ParentID == domain.ParentShared {
		return false, nil
	}

	parent, err := s.resources.GetByID(ctx, res.ParentID)
	if err != nil {
		return false, nil
	}
	if parent.OwnerID == "" || parent.OwnerID == res.OwnerID {
		return false, nil
	}

	if err := s.resources.UpdateParent(ctx, res.ObjectID, domain.ParentRoot, parent.OwnerID); err != nil {
		return false, fmt.Errorf("failed to relocate %s to new owner: %w", res.ObjectID, err)
	}
	if err := s.records.DeleteByObject(ctx, res.ObjectID); err != nil {
		log.Printf("[share] failed to drop shared records of %s after handover: %v", res.ObjectID, err)
	}
	if err := s.resources.UpdateCollaborators(ctx, res.ObjectID, nil, nil, nil); err != nil {
		log.Printf("[share] failed to clear collaborators of %s after handover: %v", res.ObjectID, err)
	}

	return true, nil
}

func resourceInfo(res *domain.Resource) notify.ResourceInfo {
	return notify.ResourceInfo{
		ObjectID:     res.ObjectID,
		ResourceType: res.ResourceType,
		ObjectType:   string(res.ObjectType),
		Name:         res.Name,
		OwnerID:      res.OwnerID,
	}
}
