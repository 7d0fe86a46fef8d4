package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"blockdrive/internal/apperr"
	"blockdrive/internal/domain"
	"blockdrive/internal/identity"
	"blockdrive/internal/notify"
	"blockdrive/internal/service/s3"
)

// ResourceService — оркестратор операций над деревом ресурсов. Схема всегда
// одна: проверка доступа → первичная мутация → фоновый каскад и уведомления.
// Ответ клиенту не ждет каскада.
type ResourceService struct {
	resources        ResourceStore
	records          SharedRecordStore
	access           *AccessService
	shares           *ShareService
	revocation       *RevocationService
	hierarchy        *HierarchyService
	cascade          CascadeEnqueuer
	content          ContentStorage
	quotas           *StorageQuotaService
	identityProvider identity.Provider
	notifier         notify.Sink
}

func NewResourceService(
	resources ResourceStore,
	records SharedRecordStore,
	access *AccessService,
	shares *ShareService,
	revocation *RevocationService,
	hierarchy *HierarchyService,
	cascade CascadeEnqueuer,
	content ContentStorage,
	quotas *StorageQuotaService,
	identityProvider identity.Provider,
	notifier notify.Sink,
) *ResourceService {
	return &ResourceService{
		resources:        resources,
		records:          records,
		access:           access,
		shares:           shares,
		revocation:       revocation,
		hierarchy:        hierarchy,
		cascade:          cascade,
		content:          content,
		quotas:           quotas,
		identityProvider: identityProvider,
		notifier:         notifier,
	}
}

// DeleteOutcome описывает, чем завершился запрос на удаление: настоящим
// удалением, локальной отпиской от org/public объекта или самоотпиской
type DeleteOutcome struct {
	Deleted      bool `json:"deleted"`
	OptedOut     bool `json:"opted_out"`
	SelfUnshared bool `json:"self_unshared"`
}

// CreateFolder создает папку. Корневая папка получает владельца-создателя
// (или org/public корень для общих библиотек); вложенная наследует владельца
// и тип владения родителя.
func (s *ResourceService) CreateFolder(
	ctx context.Context,
	userID string,
	resourceType string,
	parentID string,
	name string,
	ownerType domain.OwnerType,
	ownerID string,
) (*domain.Resource, error) {
	if parentID == "" || parentID == domain.ParentRoot {
		return s.createRoot(ctx, userID, resourceType, name, ownerType, ownerID)
	}

	parent, err := s.resources.GetByID(ctx, parentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotFound, "notfound.parent", err)
	}
	if !parent.IsFolder() {
		return nil, apperr.New(apperr.CodeNotFound, "notfound.parent")
	}

	perm := domain.PermissionCreate
	if decision := s.access.Evaluate(ctx, userID, parent, &perm, true); !decision.Allowed {
		return nil, apperr.AccessDenied(decision.ErrorID)
	}

	if err := s.checkDuplicateName(ctx, parent, resourceType, name); err != nil {
		return nil, err
	}

	folder := &domain.Resource{
		ObjectID:     uuid.NewString(),
		ResourceType: resourceType,
		ParentID:     parent.ObjectID,
		ObjectType:   domain.ObjectTypeFolder,
		// Тип владения и владелец всегда наследуются от родителя,
		// независимо от того, кто создает папку
		OwnerType: parent.OwnerType,
		OwnerID:   parent.OwnerID,
		CreatedBy: userID,
		Name:      name,
		// Новый объект в расшаренной папке сразу виден ее соавторам,
		// без отдельного вызова SHARE
		Editors: cloneIDs(parent.Editors),
		Viewers: cloneIDs(parent.Viewers),
	}

	if err := s.resources.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	s.notifier.Emit(ctx, notify.Event{Type: notify.EventCreated, UserID: userID, Resource: resourceInfo(folder)})
	return folder, nil
}

func (s *ResourceService) createRoot(
	ctx context.Context,
	userID string,
	resourceType string,
	name string,
	ownerType domain.OwnerType,
	ownerID string,
) (*domain.Resource, error) {
	if ownerType == "" {
		ownerType = domain.OwnerTypeOwned
	}

	switch ownerType {
	case domain.OwnerTypePublic:
		// У публичных объектов владельца нет
		ownerID = ""
	case domain.OwnerTypeOrg, domain.OwnerTypeGroup:
		member, err := s.identityProvider.IsMemberOfOrg(ctx, userID, ownerID)
		if err != nil || !member {
			return nil, apperr.New(apperr.CodeInvalidOwner, "owner.invalid")
		}
	default:
		if ownerID == "" {
			ownerID = userID
		}
		if _, err := s.identityProvider.GetUserByID(ctx, ownerID); err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidOwner, "owner.invalid", err)
		}
	}

	folder := &domain.Resource{
		ObjectID:     uuid.NewString(),
		ResourceType: resourceType,
		ParentID:     domain.ParentRoot,
		ObjectType:   domain.ObjectTypeFolder,
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		CreatedBy:    userID,
		Name:         name,
	}

	if err := s.resources.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create root folder: %w", err)
	}

	s.notifier.Emit(ctx, notify.Event{Type: notify.EventCreated, UserID: userID, Resource: resourceInfo(folder)})
	return folder, nil
}

// Upload загружает файл в папку. Контент пишется в хранилище до вставки
// строки: осиротевшая строка с отсутствующим контентом хуже, чем
// осиротевший контент.
func (s *ResourceService) Upload(
	ctx context.Context,
	userID string,
	parentID string,
	name string,
	data []byte,
) (*domain.Resource, error) {
	parent, err := s.resources.GetByID(ctx, parentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotFound, "notfound.parent", err)
	}
	if !parent.IsFolder() {
		return nil, apperr.New(apperr.CodeNotFound, "notfound.parent")
	}

	perm := domain.PermissionUpload
	if decision := s.access.Evaluate(ctx, userID, parent, &perm, true); !decision.Allowed {
		return nil, apperr.AccessDenied(decision.ErrorID)
	}

	if err := s.checkDuplicateName(ctx, parent, parent.ResourceType, name); err != nil {
		return nil, err
	}

	quotaOwner := parent.OwnerID
	if quotaOwner == "" {
		quotaOwner = userID
	}
	ok, err := s.quotas.CheckSpaceAvailable(ctx, quotaOwner, int64(len(data)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.CodeAccessDenied, "quota.exceeded")
	}

	file := &domain.Resource{
		ObjectID:     uuid.NewString(),
		ResourceType: parent.ResourceType,
		ParentID:     parent.ObjectID,
		ObjectType:   domain.ObjectTypeFile,
		OwnerType:    parent.OwnerType,
		OwnerID:      parent.OwnerID,
		CreatedBy:    userID,
		Name:         name,
		SizeBytes:    int64(len(data)),
		// Файл наследует соавторов папки: расшаренная папка означает
		// расшаренное содержимое
		Editors: cloneIDs(parent.Editors),
		Viewers: cloneIDs(parent.Viewers),
	}
	key := s3.BuildKey(file.ResourceType, file.OwnerID, file.ObjectID, file.Name)
	file.StorageRef = &key

	if err := s.content.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}

	if err := s.resources.Create(ctx, file); err != nil {
		// Строку вставить не удалось — подчищаем уже записанный контент
		if cleanupErr := s.content.Delete(ctx, key); cleanupErr != nil {
			log.Printf("[upload] failed to clean up content %s: %v", key, cleanupErr)
		}
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if err := s.quotas.AddUsage(ctx, quotaOwner, file.SizeBytes); err != nil {
		log.Printf("[upload] failed to charge quota for %s: %v", quotaOwner, err)
	}

	s.notifier.Emit(ctx, notify.Event{Type: notify.EventCreated, UserID: userID, Resource: resourceInfo(file)})
	return file, nil
}

// Download возвращает файл и его содержимое после проверки видимости
func (s *ResourceService) Download(ctx context.Context, userID string, objectID string) (*domain.Resource, []byte, error) {
	res, err := s.resources.GetByID(ctx, objectID)
	if err != nil {
		return nil, nil, err
	}
	if res.IsFolder() || res.StorageRef == nil {
		return nil, nil, apperr.NotFound("object")
	}

	if decision := s.access.Evaluate(ctx, userID, res, nil, false); !decision.Allowed {
		return nil, nil, apperr.AccessDenied(decision.ErrorID)
	}

	data, err := s.content.Get(ctx, *res.StorageRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get content: %w", err)
	}

	return res, data, nil
}

// Rename — конкретная операция UPDATE: смена имени без перемещения
func (s *ResourceService) Rename(ctx context.Context, userID string, objectID string, newName string) (*domain.Resource, error) {
	res, err := s.resources.GetByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	perm := domain.PermissionUpdate
	if decision := s.access.Evaluate(ctx, userID, res, &perm, true); !decision.Allowed {
		return nil, apperr.AccessDenied(decision.ErrorID)
	}

	if res.Name == newName {
		return nil, apperr.New(apperr.CodeNothingToUpdate, "update.nothing")
	}

	if res.ParentID != domain.ParentRoot {
		parent, err := s.resources.GetByID(ctx, res.ParentID)
		if err == nil {
			if err := s.checkDuplicateName(ctx, parent, res.ResourceType, newName); err != nil {
				return nil, err
			}
		}
	}

	if err := s.resources.UpdateName(ctx, objectID, newName); err != nil {
		return nil, err
	}
	res.Name = newName

	s.notifier.Emit(ctx, notify.Event{Type: notify.EventUpdated, UserID: userID, Resource: resourceInfo(res)})
	return res, nil
}

// Move перемещает объект в другую папку. Меняются только parent_id и
// owner_id; тип владения неизменен, поэтому публичный объект нельзя
// затащить в чужую непубличную папку.
func (s *ResourceService) Move(ctx context.Context, userID string, objectID string, destID string) (*domain.Resource, error) {
	res, err := s.resources.GetByID(ctx, objectID)
	if err != nil {
		return nil, err
	}
	dest, err := s.resources.GetByID(ctx, destID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeNotFound, "notfound.parent", err)
	}
	if !dest.IsFolder() {
		return nil, apperr.New(apperr.CodeInvalidMove, "move.invalid")
	}

	if res.ParentID == dest.ObjectID || res.ObjectID == dest.ObjectID {
		return nil, apperr.New(apperr.CodeInvalidMove, "move.invalid")
	}
	if res.OwnerType == domain.OwnerTypePublic && dest.OwnerType != domain.OwnerTypePublic && !dest.IsRoot() {
		return nil, apperr.New(apperr.CodeInvalidMove, "move.invalid")
	}
	// Папку нельзя переносить в собственное поддерево: цикл parent_id
	// зациклил бы каждый последующий каскад по этой ветке
	if res.IsFolder() {
		inside, err := s.isInSubtree(ctx, dest, res.ObjectID)
		if err != nil {
			return nil, err
		}
		if inside {
			return nil, apperr.New(apperr.CodeInvalidMove, "move.invalid")
		}
	}

	perm := domain.PermissionMove
	if decision := s.access.Evaluate(ctx, userID, res, &perm, true); !decision.Allowed {
		return nil, apperr.AccessDenied(decision.ErrorID)
	}
	createPerm := domain.PermissionCreate
	if decision := s.access.Evaluate(ctx, userID, dest, &createPerm, true); !decision.Allowed {
		return nil, apperr.AccessDenied(decision.ErrorID)
	}

	if err := s.checkDuplicateName(ctx, dest, res.ResourceType, res.Name); err != nil {
		return nil, err
	}

	if err := s.resources.UpdateParent(ctx, res.ObjectID, dest.ObjectID, dest.OwnerID); err != nil {
		return nil, err
	}
	res.ParentID = dest.ObjectID
	res.OwnerID = dest.OwnerID

	// Поддерево дошаривается соавторам нового родителя асинхронно
	s.cascade.Enqueue(CascadeTask{RootID: res.ObjectID, Kind: CascadeMove})

	s.notifier.Emit(ctx, notify.Event{Type: notify.EventUpdated, UserID: userID, Resource: resourceInfo(res)})
	return res, nil
}

// Delete обрабатывает запрос на удаление. Для пользователя без права
// удаления org/public объекта запрос вырождается в локальную отписку,
// для наблюдателя шаринга — в самоотписку.
func (s *ResourceService) Delete(ctx context.Context, userID string, objectID string) (*DeleteOutcome, error) {
	res, err := s.resources.GetByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	perm := domain.PermissionDelete
	decision := s.access.Evaluate(ctx, userID, res, &perm, true)

	switch {
	case decision.Allowed:
		if err := s.deleteResource(ctx, userID, res); err != nil {
			return nil, err
		}
		return &DeleteOutcome{Deleted: true}, nil

	case decision.OrgRevocationOnly:
		if err := s.revocation.OptOut(ctx, res, userID); err != nil {
			return nil, err
		}
		return &DeleteOutcome{OptedOut: true}, nil

	case decision.SelfUnshareAccess:
		if err := s.shares.SelfUnshare(ctx, res, userID); err != nil {
			return nil, err
		}
		return &DeleteOutcome{SelfUnshared: true}, nil

	default:
		return nil, apperr.AccessDenied(decision.ErrorID)
	}
}

func (s *ResourceService) deleteResource(ctx context.Context, userID string, res *domain.Resource) error {
	if res.IsFolder() {
		// Папка помечается удаленной сразу, потомков зачищает каскад
		if err := s.resources.SoftDelete(ctx, res.ObjectID); err != nil {
			return err
		}
		if err := s.records.DeleteByObject(ctx, res.ObjectID); err != nil {
			log.Printf("[delete] failed to drop shared records of %s: %v", res.ObjectID, err)
		}
		s.cascade.Enqueue(CascadeTask{RootID: res.ObjectID, Kind: CascadeDelete})
		s.notifier.Emit(ctx, notify.Event{Type: notify.EventDeleted, UserID: userID, Resource: resourceInfo(res)})
		return nil
	}

	return s.hierarchy.deleteObject(ctx, res)
}

// ShareResource — вход операции SHARE с проверкой доступа
func (s *ResourceService) ShareResource(ctx context.Context, userID string, objectID string, targets []string, mode domain.ShareMode) (*domain.ShareResult, error) {
	res, err := s.resources.GetByID(ctx, objectID)
	if err != nil {
		return nil, err
	}

	perm := domain.PermissionShare
	if decision := s.access.Evaluate(ctx, userID, res, &perm, true); !decision.Allowed {
		return nil, apperr.AccessDenied(decision.ErrorID)
	}

	return s.shares.Share(ctx, res, targets, mode)
}

// UnshareResource — вход операции UNSHARE. Наблюдатель может отозвать только
// собственный доступ; попытка снять чужой без прав — отказ.
func (s *ResourceService) UnshareResource(ctx context.Context, userID string, objectID string, targets []string) error {
	res, err := s.resources.GetByID(ctx, objectID)
	if err != nil {
		return err
	}

	perm := domain.PermissionUnshare
	decision := s.access.Evaluate(ctx, userID, res, &perm, true)

	switch {
	case decision.Allowed:
		return s.shares.Unshare(ctx, res, targets)

	case decision.SelfUnshareAccess:
		if len(targets) != 1 || targets[0] != userID {
			return apperr.AccessDenied(perm.ErrorTag(res.IsFolder()))
		}
		return s.shares.SelfUnshare(ctx, res, userID)

	case decision.OrgRevocationOnly:
		if len(targets) != 1 || targets[0] != userID {
			return apperr.AccessDenied(perm.ErrorTag(res.IsFolder()))
		}
		return s.revocation.OptOut(ctx, res, userID)

	default:
		return apperr.AccessDenied(decision.ErrorID)
	}
}

// OptOut — явная локальная отписка от org/public объекта
func (s *ResourceService) OptOut(ctx context.Context, userID string, objectID string) error {
	res, err := s.resources.GetByID(ctx, objectID)
	if err != nil {
		return err
	}
	if res.OwnerType != domain.OwnerTypeOrg && res.OwnerType != domain.OwnerTypePublic {
		return apperr.AccessDenied(domain.ErrNoAccessGeneric)
	}
	return s.revocation.OptOut(ctx, res, userID)
}

// ListRoot — агрегированный корневой список пользователя
func (s *ResourceService) ListRoot(ctx context.Context, userID string, resourceType string) ([]domain.ListedResource, error) {
	user, err := s.identityProvider.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[list] failed to resolve user %s: %v", userID, err)
		user = &domain.UserInfo{ID: userID}
	}
	return s.hierarchy.AggregateRoot(ctx, user, resourceType)
}

// ListFolder — содержимое папки после проверки видимости
func (s *ResourceService) ListFolder(ctx context.Context, userID string, folderID string) ([]domain.ListedResource, error) {
	folder, err := s.resources.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if !folder.IsFolder() {
		return nil, apperr.NotFound("folder")
	}

	if decision := s.access.Evaluate(ctx, userID, folder, nil, false); !decision.Allowed {
		return nil, apperr.AccessDenied(decision.ErrorID)
	}

	return s.hierarchy.FolderContents(ctx, folder, userID)
}

// isInSubtree поднимается от start по цепочке родителей и отвечает,
// встречается ли на пути объект ancestorID. Посещенные узлы запоминаются:
// обход обязан завершиться даже на уже испорченной (цикличной) цепочке.
func (s *ResourceService) isInSubtree(ctx context.Context, start *domain.Resource, ancestorID string) (bool, error) {
	visited := map[string]bool{}
	cur := start
	for {
		if cur.ObjectID == ancestorID {
			return true, nil
		}
		if cur.ParentID == domain.ParentRoot || cur.ParentID == domain.ParentShared || cur.ParentID == "" {
			return false, nil
		}
		if visited[cur.ObjectID] {
			return false, nil
		}
		visited[cur.ObjectID] = true

		parent, err := s.resources.GetByID(ctx, cur.ParentID)
		if err != nil {
			return false, fmt.Errorf("failed to walk ancestors of %s: %w", start.ObjectID, err)
		}
		cur = parent
	}
}

func (s *ResourceService) checkDuplicateName(ctx context.Context, parent *domain.Resource, resourceType string, name string) error {
	siblings, err := s.resources.GetByOwnerAndName(ctx, parent.OwnerID, parent.OwnerType, resourceType, parent.ObjectID, name)
	if err != nil {
		return err
	}
	if len(siblings) > 0 {
		return apperr.New(apperr.CodeDuplicateName, "name.duplicate")
	}
	return nil
}
