package service

import (
	"context"
	"fmt"
	"log"

	"blockdrive/internal/domain"
	"blockdrive/internal/notify"
)

// HierarchyService обходит деревья папок: агрегированное чтение веток
// (свое + расшаренное + org + public) и применение каскадных операций
// к потомкам. Каждый потомок обрабатывается по принципу best-effort:
// сбой на одном объекте логируется и не прерывает обход остальных.
type HierarchyService struct {
	resources  ResourceStore
	records    SharedRecordStore
	ledgers    *Ledgers
	revocation *RevocationService
	content    ContentStorage
	quotas     QuotaStore
	notifier   notify.Sink
}

func NewHierarchyService(
	resources ResourceStore,
	records SharedRecordStore,
	ledgers *Ledgers,
	revocation *RevocationService,
	content ContentStorage,
	quotas QuotaStore,
	notifier notify.Sink,
) *HierarchyService {
	return &HierarchyService{
		resources:  resources,
		records:    records,
		ledgers:    ledgers,
		revocation: revocation,
		content:    content,
		quotas:     quotas,
		notifier:   notifier,
	}
}

// ApplyCascade применяет операцию к прямым потомкам корня задачи и ставит
// дочерние папки обратно в очередь через enqueue
func (s *HierarchyService) ApplyCascade(ctx context.Context, task CascadeTask, enqueue func(CascadeTask)) error {
	if task.Kind == CascadeMove {
		return s.applyMove(ctx, task, enqueue)
	}

	children, err := s.resources.GetChildren(ctx, task.RootID)
	if err != nil {
		return fmt.Errorf("failed to list children of %s: %w", task.RootID, err)
	}

	for i := range children {
		child := &children[i]
		if err := s.applyToChild(ctx, child, task); err != nil {
			log.Printf("[cascade] %s failed for descendant %s: %v", task.Kind, child.ObjectID, err)
			continue
		}
		if child.IsFolder() {
			enqueue(CascadeTask{
				RootID:  child.ObjectID,
				Kind:    task.Kind,
				Targets: task.Targets,
				Mode:    task.Mode,
			})
		}
	}

	return nil
}

func (s *HierarchyService) applyToChild(ctx context.Context, child *domain.Resource, task CascadeTask) error {
	switch task.Kind {
	case CascadeShare:
		if err := s.revocation.ClearOptOut(ctx, child, task.Targets); err != nil {
			return err
		}
		_, err := s.ledgers.For(child.ResourceType).Share(ctx, child, task.Targets, task.Mode)
		return err
	case CascadeUnshare:
		return s.ledgers.For(child.ResourceType).Unshare(ctx, child, task.Targets)
	case CascadeDelete:
		return s.deleteObject(ctx, child)
	default:
		return fmt.Errorf("unknown cascade kind: %s", task.Kind)
	}
}

// deleteObject удаляет один объект: папка помечается удаленной (ее потомков
// доберет следующая задача), файл удаляется окончательно вместе с контентом
// и shared-записями
func (s *HierarchyService) deleteObject(ctx context.Context, res *domain.Resource) error {
	if res.IsFolder() {
		return s.resources.SoftDelete(ctx, res.ObjectID)
	}

	if res.StorageRef != nil {
		if err := s.content.Delete(ctx, *res.StorageRef); err != nil {
			// Контент подчистим как получится: строка важнее
			log.Printf("[cascade] failed to delete content %s: %v", *res.StorageRef, err)
		}
	}
	if err := s.records.DeleteByObject(ctx, res.ObjectID); err != nil {
		log.Printf("[cascade] failed to delete shared records of %s: %v", res.ObjectID, err)
	}
	if err := s.resources.Delete(ctx, res.ObjectID); err != nil {
		return err
	}
	if res.SizeBytes > 0 {
		if err := s.quotas.AddUsage(ctx, res.OwnerID, -res.SizeBytes); err != nil {
			log.Printf("[cascade] failed to release quota for %s: %v", res.OwnerID, err)
		}
	}

	s.notifier.Emit(ctx, notify.Event{
		Type:     notify.EventDeleted,
		UserID:   res.OwnerID,
		Resource: resourceInfo(res),
	})
	return nil
}

// applyMove дошаривает перемещенное поддерево соавторам нового родителя.
// parent_id потомков не трогаем — они ссылаются на папку, а не наоборот.
func (s *HierarchyService) applyMove(ctx context.Context, task CascadeTask, enqueue func(CascadeTask)) error {
	root, err := s.resources.GetByID(ctx, task.RootID)
	if err != nil {
		return fmt.Errorf("failed to get moved object: %w", err)
	}
	if root.ParentID == domain.ParentRoot || root.ParentID == domain.ParentShared {
		return nil
	}

	parent, err := s.resources.GetByID(ctx, root.ParentID)
	if err != nil {
		return fmt.Errorf("failed to get destination parent: %w", err)
	}

	parentEditors, parentViewers, err := s.ledgers.Collaborators(ctx, parent)
	if err != nil {
		return fmt.Errorf("failed to load destination collaborators: %w", err)
	}

	if err := s.revocation.ClearOptOut(ctx, root, unionIDs(parentEditors, parentViewers)); err != nil {
		log.Printf("[cascade] move: failed to clear opt-outs on %s: %v", root.ObjectID, err)
	}

	ledger := s.ledgers.For(root.ResourceType)
	if len(parentEditors) > 0 {
		if _, err := ledger.Share(ctx, root, parentEditors, domain.ShareModeEdit); err != nil {
			log.Printf("[cascade] move: failed to re-share %s with editors: %v", root.ObjectID, err)
		} else if root.IsFolder() {
			enqueue(CascadeTask{RootID: root.ObjectID, Kind: CascadeShare, Targets: parentEditors, Mode: domain.ShareModeEdit})
		}
	}
	if len(parentViewers) > 0 {
		if _, err := ledger.Share(ctx, root, parentViewers, domain.ShareModeView); err != nil {
			log.Printf("[cascade] move: failed to re-share %s with viewers: %v", root.ObjectID, err)
		} else if root.IsFolder() {
			enqueue(CascadeTask{RootID: root.ObjectID, Kind: CascadeShare, Targets: parentViewers, Mode: domain.ShareModeView})
		}
	}

	return nil
}

// AggregateRoot строит корневой список пользователя: собственная ветка,
// расшаренное (прямо и через организацию, в обеих моделях хранения),
// ветка организации и публичная ветка. Дубликаты схлопываются по objectId,
// приоритет источника: owned > shared > org > public.
func (s *HierarchyService) AggregateRoot(ctx context.Context, user *domain.UserInfo, resourceType string) ([]domain.ListedResource, error) {
	seen := make(map[string]bool)
	var out []domain.ListedResource

	add := func(res domain.Resource, origin domain.Origin, sharedVia string) {
		if seen[res.ObjectID] {
			return
		}
		seen[res.ObjectID] = true
		out = append(out, domain.ListedResource{Resource: res, Origin: origin, SharedVia: sharedVia})
	}

	owned, err := s.resources.GetByParent(ctx, domain.ParentRoot, domain.OwnerTypeOwned, user.ID, resourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned branch: %w", err)
	}
	for _, res := range owned {
		add(res, domain.OriginOwned, "")
	}

	shared, err := s.resources.GetSharedWithUser(ctx, resourceType, user.ID, user.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared branch: %w", err)
	}
	var sharedFiles []domain.Resource
	for _, res := range shared {
		if !res.IsFolder() {
			sharedFiles = append(sharedFiles, res)
		}
		add(res, domain.OriginShared, "")
	}

	// Legacy-записи шаринга — отдельная ветка того же «расшаренного» источника
	records, err := s.records.GetByUser(ctx, user.ID, resourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared records: %w", err)
	}
	for _, rec := range records {
		res, err := s.resources.GetByID(ctx, rec.ObjectID)
		if err != nil {
			// Осиротевшая запись — баг консистентности; лог, не отказ
			log.Printf("[walk] shared record %s points to missing object %s", rec.ID, rec.ObjectID)
			continue
		}
		if !res.IsFolder() {
			sharedFiles = append(sharedFiles, *res)
		}
		add(*res, domain.OriginShared, "")
	}

	if user.OrganizationID != "" {
		orgBranch, err := s.resources.GetByOwnerType(ctx, resourceType, domain.OwnerTypeOrg, user.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to list org branch: %w", err)
		}
		for _, res := range orgBranch {
			if res.IsUnshared(user.ID) {
				continue
			}
			add(res, domain.OriginOrg, "")
		}
	}

	publicBranch, err := s.resources.GetByOwnerType(ctx, resourceType, domain.OwnerTypePublic, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list public branch: %w", err)
	}
	for _, res := range publicBranch {
		if res.IsUnshared(user.ID) {
			continue
		}
		add(res, domain.OriginPublic, "")
	}

	// Библиотека без прямого шаринга, в которой пользователю расшарены
	// отдельные блоки, все равно должна появиться в списке — синтетической
	// коллекцией расшаренных блоков
	for _, file := range sharedFiles {
		if file.ParentID == domain.ParentRoot || seen[file.ParentID] {
			continue
		}
		parent, err := s.resources.GetByID(ctx, file.ParentID)
		if err != nil {
			continue
		}
		seen[parent.ObjectID] = true
		out = append(out, domain.ListedResource{
			Resource:  *parent,
			Origin:    domain.OriginShared,
			SharedVia: file.ObjectID,
			Synthetic: true,
		})
	}

	return out, nil
}

// FolderContents возвращает содержимое одной папки с пометкой происхождения
func (s *HierarchyService) FolderContents(ctx context.Context, folder *domain.Resource, userID string) ([]domain.ListedResource, error) {
	children, err := s.resources.GetChildren(ctx, folder.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder contents: %w", err)
	}

	origin := domain.OriginOwned
	sharedVia := ""
	if folder.OwnerID != userID {
		origin = domain.OriginShared
		sharedVia = folder.ObjectID
	}

	out := make([]domain.ListedResource, 0, len(children))
	for _, child := range children {
		out = append(out, domain.ListedResource{Resource: child, Origin: origin, SharedVia: sharedVia})
	}
	return out, nil
}
