package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"blockdrive/internal/apperr"
	"blockdrive/internal/domain"
	"blockdrive/internal/notify"
)

// Фейковые хранилища в памяти: тесты сервисов работают против них,
// а не против Postgres.

type fakeResourceStore struct {
	mu    sync.Mutex
	items map[string]*domain.Resource
}

func newFakeResourceStore() *fakeResourceStore {
	return &fakeResourceStore{items: make(map[string]*domain.Resource)}
}

func copyResource(res *domain.Resource) *domain.Resource {
	cp := *res
	cp.Editors = append([]string(nil), res.Editors...)
	cp.Viewers = append([]string(nil), res.Viewers...)
	cp.UnsharedMembers = append([]string(nil), res.UnsharedMembers...)
	return &cp
}

func (s *fakeResourceStore) Create(_ context.Context, res *domain.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[res.ObjectID]; ok {
		return fmt.Errorf("duplicate object_id %s", res.ObjectID)
	}
	s.items[res.ObjectID] = copyResource(res)
	return nil
}

func (s *fakeResourceStore) GetByID(_ context.Context, objectID string) (*domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[objectID]
	if !ok || res.DeletedAt != nil {
		return nil, apperr.NotFound("object")
	}
	return copyResource(res), nil
}

func (s *fakeResourceStore) GetByParent(_ context.Context, parentID string, ownerType domain.OwnerType, ownerID string, resourceType string) ([]domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Resource
	for _, res := range s.items {
		if res.DeletedAt != nil || res.ParentID != parentID || res.ResourceType != resourceType {
			continue
		}
		if ownerType != "" && res.OwnerType != ownerType {
			continue
		}
		if ownerID != "" && res.OwnerID != ownerID {
			continue
		}
		out = append(out, *copyResource(res))
	}
	return out, nil
}

func (s *fakeResourceStore) GetByOwnerAndName(_ context.Context, ownerID string, ownerType domain.OwnerType, resourceType string, parentID string, name string) ([]domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Resource
	for _, res := range s.items {
		if res.DeletedAt != nil {
			continue
		}
		if res.OwnerID == ownerID && res.OwnerType == ownerType &&
			res.ResourceType == resourceType && res.ParentID == parentID && res.Name == name {
			out = append(out, *copyResource(res))
		}
	}
	return out, nil
}

func (s *fakeResourceStore) GetByOwnerType(_ context.Context, resourceType string, ownerType domain.OwnerType, ownerID string) ([]domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Resource
	for _, res := range s.items {
		if res.DeletedAt != nil || res.ResourceType != resourceType {
			continue
		}
		if res.OwnerType != ownerType || res.ParentID != domain.ParentRoot {
			continue
		}
		if ownerID != "" && res.OwnerID != ownerID {
			continue
		}
		out = append(out, *copyResource(res))
	}
	return out, nil
}

func (s *fakeResourceStore) GetChildren(_ context.Context, parentID string) ([]domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Resource
	for _, res := range s.items {
		if res.DeletedAt == nil && res.ParentID == parentID {
			out = append(out, *copyResource(res))
		}
	}
	return out, nil
}

func (s *fakeResourceStore) GetSharedWithUser(_ context.Context, resourceType string, ids ...string) ([]domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Resource
	for _, res := range s.items {
		if res.DeletedAt != nil || res.ResourceType != resourceType {
			continue
		}
		for _, id := range ids {
			if id == "" {
				continue
			}
			if containsID(res.Editors, id) || containsID(res.Viewers, id) {
				out = append(out, *copyResource(res))
				break
			}
		}
	}
	return out, nil
}

func (s *fakeResourceStore) UpdateName(_ context.Context, objectID string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[objectID]
	if !ok || res.DeletedAt != nil {
		return apperr.NotFound("object")
	}
	res.Name = name
	return nil
}

func (s *fakeResourceStore) UpdateCollaborators(_ context.Context, objectID string, editors, viewers, unshared []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[objectID]
	if !ok || res.DeletedAt != nil {
		return apperr.NotFound("object")
	}
	res.Editors = append([]string(nil), editors...)
	res.Viewers = append([]string(nil), viewers...)
	res.UnsharedMembers = append([]string(nil), unshared...)
	return nil
}

func (s *fakeResourceStore) UpdateParent(_ context.Context, objectID string, parentID string, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[objectID]
	if !ok || res.DeletedAt != nil {
		return apperr.NotFound("object")
	}
	res.ParentID = parentID
	res.OwnerID = ownerID
	return nil
}

func (s *fakeResourceStore) SoftDelete(_ context.Context, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[objectID]
	if !ok || res.DeletedAt != nil {
		return apperr.NotFound("object")
	}
	now := nowRef()
	res.DeletedAt = &now
	return nil
}

func (s *fakeResourceStore) Delete(_ context.Context, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, objectID)
	return nil
}

func nowRef() time.Time {
	return time.Now()
}

// exists сообщает, осталась ли живая строка объекта
func (s *fakeResourceStore) exists(objectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[objectID]
	return ok && res.DeletedAt == nil
}

type fakeRecordStore struct {
	mu    sync.Mutex
	items map[string]*domain.SharedRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{items: make(map[string]*domain.SharedRecord)}
}

func recordKey(sharedUserID, objectID string) string {
	return sharedUserID + "|" + objectID
}

func (s *fakeRecordStore) GetByObject(_ context.Context, objectID string) ([]domain.SharedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SharedRecord
	for _, rec := range s.items {
		if rec.ObjectID == objectID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeRecordStore) GetByUser(_ context.Context, sharedUserID string, resourceType string) ([]domain.SharedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SharedRecord
	for _, rec := range s.items {
		if rec.SharedUserID == sharedUserID && rec.ResourceType == resourceType {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *fakeRecordStore) Upsert(_ context.Context, record *domain.SharedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(record.SharedUserID, record.ObjectID)
	if existing, ok := s.items[key]; ok {
		existing.Mode = record.Mode
		return nil
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	cp := *record
	s.items[key] = &cp
	return nil
}

func (s *fakeRecordStore) Delete(_ context.Context, sharedUserID string, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, recordKey(sharedUserID, objectID))
	return nil
}

func (s *fakeRecordStore) DeleteByObject(_ context.Context, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range s.items {
		if rec.ObjectID == objectID {
			delete(s.items, key)
		}
	}
	return nil
}

type fakeQuotaStore struct {
	mu     sync.Mutex
	limit  int64
	quotas map[string]*domain.StorageQuota
}

func newFakeQuotaStore(limit int64) *fakeQuotaStore {
	return &fakeQuotaStore{limit: limit, quotas: make(map[string]*domain.StorageQuota)}
}

func (s *fakeQuotaStore) GetByOwner(_ context.Context, ownerID string) (*domain.StorageQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quota, ok := s.quotas[ownerID]
	if !ok {
		quota = &domain.StorageQuota{OwnerID: ownerID, TotalBytesLimit: s.limit}
		s.quotas[ownerID] = quota
	}
	cp := *quota
	return &cp, nil
}

func (s *fakeQuotaStore) AddUsage(_ context.Context, ownerID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quota, ok := s.quotas[ownerID]
	if !ok {
		quota = &domain.StorageQuota{OwnerID: ownerID, TotalBytesLimit: s.limit}
		s.quotas[ownerID] = quota
	}
	quota.UsedBytes += delta
	if quota.UsedBytes < 0 {
		quota.UsedBytes = 0
	}
	return nil
}

func (s *fakeQuotaStore) UpdateLimit(_ context.Context, ownerID string, newLimit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quota, ok := s.quotas[ownerID]
	if !ok {
		quota = &domain.StorageQuota{OwnerID: ownerID}
		s.quotas[ownerID] = quota
	}
	quota.TotalBytesLimit = newLimit
	return nil
}

func (s *fakeQuotaStore) Recalculate(context.Context, string) error {
	return nil
}

type fakeContentStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeContentStorage() *fakeContentStorage {
	return &fakeContentStorage{objects: make(map[string][]byte)}
}

func (s *fakeContentStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (s *fakeContentStorage) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *fakeContentStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeContentStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

type fakeIdentityProvider struct {
	mu     sync.Mutex
	users  map[string]*domain.UserInfo
	admins map[string]bool
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{
		users:  make(map[string]*domain.UserInfo),
		admins: make(map[string]bool),
	}
}

func (p *fakeIdentityProvider) addUser(user domain.UserInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[user.ID] = &user
}

func (p *fakeIdentityProvider) setOrgAdmin(userID, orgID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.admins[userID+"|"+orgID] = true
}

func (p *fakeIdentityProvider) GetUserByID(_ context.Context, id string) (*domain.UserInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	cp := *user
	return &cp, nil
}

func (p *fakeIdentityProvider) IsOrgAdmin(_ context.Context, userID string, orgID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.admins[userID+"|"+orgID], nil
}

func (p *fakeIdentityProvider) IsMemberOfOrg(_ context.Context, userID string, orgID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[userID]
	return ok && user.OrganizationID == orgID, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *fakeSink) Emit(_ context.Context, event notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) byType(t notify.EventType) []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeEnqueuer копит задачи вместо выполнения: для тестов, проверяющих
// только факт постановки каскада
type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []CascadeTask
}

func (e *fakeEnqueuer) Enqueue(task CascadeTask) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
}

const legacyType = "block_library"

// testEnv собирает полный граф сервисов поверх фейков с настоящим пулом
// каскадов: env.pool.Wait() дожидается фоновых задач детерминированно
type testEnv struct {
	resources *fakeResourceStore
	records   *fakeRecordStore
	quotas    *fakeQuotaStore
	content   *fakeContentStorage
	identity  *fakeIdentityProvider
	events    *fakeSink

	ledgers    *Ledgers
	access     *AccessService
	hierarchy  *HierarchyService
	pool       *CascadePool
	shares     *ShareService
	revocation *RevocationService
	service    *ResourceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		resources: newFakeResourceStore(),
		records:   newFakeRecordStore(),
		quotas:    newFakeQuotaStore(1 << 20),
		content:   newFakeContentStorage(),
		identity:  newFakeIdentityProvider(),
		events:    &fakeSink{},
	}

	env.ledgers = NewLedgers(env.resources, env.records, []string{legacyType})
	env.access = NewAccessService(env.identity, env.ledgers)
	env.revocation = NewRevocationService(env.resources)
	env.hierarchy = NewHierarchyService(env.resources, env.records, env.ledgers, env.revocation, env.content, env.quotas, env.events)
	env.pool = NewCascadePool(env.hierarchy, 2, 64)
	env.pool.Start()
	t.Cleanup(env.pool.Stop)

	env.shares = NewShareService(env.resources, env.records, env.ledgers, env.revocation, env.pool, env.events)
	env.service = NewResourceService(
		env.resources,
		env.records,
		env.access,
		env.shares,
		env.revocation,
		env.hierarchy,
		env.pool,
		env.content,
		NewStorageQuotaService(env.quotas),
		env.identity,
		env.events,
	)

	return env
}

// addResource кладет ресурс напрямую в хранилище, минуя сервисный слой
func (env *testEnv) addResource(t *testing.T, res domain.Resource) *domain.Resource {
	t.Helper()
	if res.ObjectID == "" {
		res.ObjectID = uuid.NewString()
	}
	if res.ResourceType == "" {
		res.ResourceType = "drive"
	}
	if res.ParentID == "" {
		res.ParentID = domain.ParentRoot
	}
	if res.OwnerType == "" {
		res.OwnerType = domain.OwnerTypeOwned
	}
	if err := env.resources.Create(context.Background(), &res); err != nil {
		t.Fatalf("failed to seed resource: %v", err)
	}
	return &res
}
