package apperr

// Localizer переводит код ошибки в текст для пользователя
type Localizer interface {
	Localize(errorID string, locale string) string
}

// TableLocalizer — локализация по встроенной таблице.
// Тексты намеренно живут в коде, а не в БД: коды стабильны, тексты — нет.
type TableLocalizer struct {
	tables map[string]map[string]string
}

func NewTableLocalizer() *TableLocalizer {
	return &TableLocalizer{tables: map[string]map[string]string{
		"ru": {
			"access.denied":         "Нет доступа к объекту",
			"access.share.file":     "Нет прав на предоставление доступа к файлу",
			"access.share.folder":   "Нет прав на предоставление доступа к папке",
			"access.unshare.file":   "Нет прав на отзыв доступа к файлу",
			"access.unshare.folder": "Нет прав на отзыв доступа к папке",
			"access.update.file":    "Нет прав на изменение файла",
			"access.update.folder":  "Нет прав на изменение папки",
			"access.delete.file":    "Нет прав на удаление файла",
			"access.delete.folder":  "Нет прав на удаление папки",
			"access.move.file":      "Нет прав на перемещение файла",
			"access.move.folder":    "Нет прав на перемещение папки",
			"notfound.object":       "Объект не найден",
			"notfound.folder":       "Папка не найдена",
			"notfound.parent":       "Родительская папка не найдена",
			"move.invalid":          "Недопустимое перемещение",
			"name.duplicate":        "Объект с таким именем уже существует",
			"update.nothing":        "Нет изменений для сохранения",
			"owner.invalid":         "Владелец не найден",
			"revocation.conflict":   "Доступ уже был отозван",
			"quota.exceeded":        "Превышен лимит хранилища",
		},
		"en": {
			"access.denied":         "You do not have access to this object",
			"access.share.file":     "You cannot share this file",
			"access.share.folder":   "You cannot share this folder",
			"access.unshare.file":   "You cannot unshare this file",
			"access.unshare.folder": "You cannot unshare this folder",
			"access.update.file":    "You cannot modify this file",
			"access.update.folder":  "You cannot modify this folder",
			"access.delete.file":    "You cannot delete this file",
			"access.delete.folder":  "You cannot delete this folder",
			"access.move.file":      "You cannot move this file",
			"access.move.folder":    "You cannot move this folder",
			"notfound.object":       "Object not found",
			"notfound.folder":       "Folder not found",
			"notfound.parent":       "Parent folder not found",
			"move.invalid":          "This move is not allowed",
			"name.duplicate":        "An object with this name already exists",
			"update.nothing":        "Nothing to update",
			"owner.invalid":         "Owner does not exist",
			"revocation.conflict":   "Access has already been revoked",
			"quota.exceeded":        "Storage quota exceeded",
		},
	}}
}

func (l *TableLocalizer) Localize(errorID string, locale string) string {
	table, ok := l.tables[locale]
	if !ok {
		table = l.tables["en"]
	}
	if text, ok := table[errorID]; ok {
		return text
	}
	// Неизвестный код не должен ронять ответ — отдаем общий текст
	return table["access.denied"]
}
