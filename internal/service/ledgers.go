package service

import (
	"context"
	"fmt"

	"blockdrive/internal/domain"
)

// Ledger мутирует множество соавторов одного объекта. Каскад по дереву
// и снятие локальных отписок — забота вызывающего
// (ShareService/HierarchyService и RevocationService), не леджера.
type Ledger interface {
	Share(ctx context.Context, res *domain.Resource, targets []string, mode domain.ShareMode) (*domain.ShareResult, error)
	Unshare(ctx context.Context, res *domain.Resource, targets []string) error
	Collaborators(ctx context.Context, res *domain.Resource) (editors []string, viewers []string, err error)
}

// Ledgers выбирает реализацию по типу ресурса: у legacy-типов шаринг хранится
// отдельными записями на пользователя, у остальных — множествами на объекте
type Ledgers struct {
	set    *setLedger
	record *recordLedger
	legacy map[string]bool
}

func NewLedgers(resources ResourceStore, records SharedRecordStore, legacyTypes []string) *Ledgers {
	legacy := make(map[string]bool, len(legacyTypes))
	for _, t := range legacyTypes {
		legacy[t] = true
	}
	return &Ledgers{
		set:    &setLedger{resources: resources},
		record: &recordLedger{resources: resources, records: records},
		legacy: legacy,
	}
}

func (l *Ledgers) For(resourceType string) Ledger {
	if l.legacy[resourceType] {
		return l.record
	}
	return l.set
}

func (l *Ledgers) Collaborators(ctx context.Context, res *domain.Resource) ([]string, []string, error) {
	return l.For(res.ResourceType).Collaborators(ctx, res)
}

// setLedger хранит соавторов в полях editors/viewers самого объекта.
// Запись в БД — один UPDATE без версионной проверки: при гонке двух
// конкурентных share/unshare побеждает последний (принятый компромисс).
type setLedger struct {
	resources ResourceStore
}

func (l *setLedger) Share(ctx context.Context, res *domain.Resource, targets []string, mode domain.ShareMode) (*domain.ShareResult, error) {
	editors := cloneIDs(res.Editors)
	viewers := cloneIDs(res.Viewers)
	var changed []string

	for _, target := range dedupeIDs(targets) {
		// Владелец никогда не попадает в списки соавторов
		if target == "" || target == res.OwnerID {
			continue
		}

		switch mode {
		case domain.ShareModeEdit:
			if containsID(editors, target) {
				continue // фактический доступ не изменился
			}
			viewers = removeID(viewers, target)
			editors = append(editors, target)
		default:
			if containsID(viewers, target) {
				continue
			}
			editors = removeID(editors, target)
			viewers = append(viewers, target)
		}
		changed = append(changed, target)
	}

	// Подчищаем владельца на случай, если он попал в списки ранее
	editors = removeID(editors, res.OwnerID)
	viewers = removeID(viewers, res.OwnerID)

	if err := l.resources.UpdateCollaborators(ctx, res.ObjectID, editors, viewers, cloneIDs(res.UnsharedMembers)); err != nil {
		return nil, fmt.Errorf("failed to persist collaborators: %w", err)
	}
	res.Editors = editors
	res.Viewers = viewers

	return &domain.ShareResult{
		AllCollaborators:     unionIDs(editors, viewers),
		ChangedCollaborators: changed,
	}, nil
}

// Unshare идемпотентен: отзыв доступа у пользователя без доступа — no-op
func (l *setLedger) Unshare(ctx context.Context, res *domain.Resource, targets []string) error {
	editors := cloneIDs(res.Editors)
	viewers := cloneIDs(res.Viewers)

	for _, target := range targets {
		editors = removeID(editors, target)
		viewers = removeID(viewers, target)
	}

	if err := l.resources.UpdateCollaborators(ctx, res.ObjectID, editors, viewers, cloneIDs(res.UnsharedMembers)); err != nil {
		return fmt.Errorf("failed to persist collaborators: %w", err)
	}
	res.Editors = editors
	res.Viewers = viewers
	return nil
}

func (l *setLedger) Collaborators(_ context.Context, res *domain.Resource) ([]string, []string, error) {
	return res.Editors, res.Viewers, nil
}

// recordLedger — legacy-модель: по записи на пару (пользователь, объект).
// Повторный шаринг обновляет режим записи, а не плодит дубликаты.
type recordLedger struct {
	resources ResourceStore
	records   SharedRecordStore
}

func (l *recordLedger) Share(ctx context.Context, res *domain.Resource, targets []string, mode domain.ShareMode) (*domain.ShareResult, error) {
	existing, err := l.records.GetByObject(ctx, res.ObjectID)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]domain.ShareMode, len(existing))
	for _, rec := range existing {
		byUser[rec.SharedUserID] = rec.Mode
	}

	var changed []string

	for _, target := range dedupeIDs(targets) {
		if target == "" || target == res.OwnerID {
			continue
		}

		if prev, ok := byUser[target]; ok && prev == mode {
			continue
		}
		record := &domain.SharedRecord{
			SharedUserID: target,
			ObjectID:     res.ObjectID,
			ResourceType: res.ResourceType,
			Mode:         mode,
		}
		if err := l.records.Upsert(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to upsert shared record: %w", err)
		}
		byUser[target] = mode
		changed = append(changed, target)
	}

	all := make([]string, 0, len(byUser))
	for userID := range byUser {
		all = append(all, userID)
	}

	return &domain.ShareResult{
		AllCollaborators:     all,
		ChangedCollaborators: changed,
	}, nil
}

// Unshare удаляет legacy-записи целей и заодно вычищает их из множеств
// на объекте: грант мог прийти любым из двух путей, отзыв снимает оба
func (l *recordLedger) Unshare(ctx context.Context, res *domain.Resource, targets []string) error {
	for _, target := range targets {
		if err := l.records.Delete(ctx, target, res.ObjectID); err != nil {
			return err
		}
	}

	editors := cloneIDs(res.Editors)
	viewers := cloneIDs(res.Viewers)
	before := len(editors) + len(viewers)
	for _, target := range targets {
		editors = removeID(editors, target)
		viewers = removeID(viewers, target)
	}
	if len(editors)+len(viewers) == before {
		return nil
	}

	if err := l.resources.UpdateCollaborators(ctx, res.ObjectID, editors, viewers, cloneIDs(res.UnsharedMembers)); err != nil {
		return fmt.Errorf("failed to persist collaborators: %w", err)
	}
	res.Editors = editors
	res.Viewers = viewers
	return nil
}

// Collaborators объединяет legacy-записи со списками на объекте: объект мог
// быть расшарен и тем, и другим способом за свою историю
func (l *recordLedger) Collaborators(ctx context.Context, res *domain.Resource) ([]string, []string, error) {
	records, err := l.records.GetByObject(ctx, res.ObjectID)
	if err != nil {
		return nil, nil, err
	}

	editors := cloneIDs(res.Editors)
	viewers := cloneIDs(res.Viewers)
	for _, rec := range records {
		switch rec.Mode {
		case domain.ShareModeEdit:
			if !containsID(editors, rec.SharedUserID) {
				editors = append(editors, rec.SharedUserID)
			}
		default:
			if !containsID(viewers, rec.SharedUserID) {
				viewers = append(viewers, rec.SharedUserID)
			}
		}
	}

	return editors, viewers, nil
}

func cloneIDs(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func removeID(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupeIDs(list []string) []string {
	seen := make(map[string]bool, len(list))
	var out []string
	for _, v := range list {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func unionIDs(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
