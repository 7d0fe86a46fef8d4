package domain

type Permission string

const (
	PermissionShare   Permission = "SHARE"
	PermissionUnshare Permission = "UNSHARE"
	PermissionUpdate  Permission = "UPDATE"
	PermissionDelete  Permission = "DELETE"
	PermissionUpload  Permission = "UPLOAD"
	PermissionCreate  Permission = "CREATE"
	PermissionMove    Permission = "MOVE"
)

// ErrNoAccessGeneric возвращается при простой проверке видимости,
// когда конкретная операция не была запрошена
const ErrNoAccessGeneric = "access.denied"

type errTagKey struct {
	perm     Permission
	isFolder bool
}

// Таблица кодов ошибок "операция × вид объекта" для локализованных сообщений.
// Коды стабильны: клиенты ветвятся по коду, а не по тексту.
var errTags = map[errTagKey]string{
	{PermissionShare, false}:   "access.share.file",
	{PermissionShare, true}:    "access.share.folder",
	{PermissionUnshare, false}: "access.unshare.file",
	{PermissionUnshare, true}:  "access.unshare.folder",
	{PermissionUpdate, false}:  "access.update.file",
	{PermissionUpdate, true}:   "access.update.folder",
	{PermissionDelete, false}:  "access.delete.file",
	{PermissionDelete, true}:   "access.delete.folder",
	{PermissionMove, false}:    "access.move.file",
	{PermissionMove, true}:     "access.move.folder",
}

// ErrorTag возвращает код ошибки доступа для операции над файлом или папкой.
// Для операций без собственного кода (CREATE, UPLOAD) возвращается общий код.
func (p Permission) ErrorTag(isFolder bool) string {
	if tag, ok := errTags[errTagKey{p, isFolder}]; ok {
		return tag
	}
	return ErrNoAccessGeneric
}

// ShareMode — режим доступа в legacy-модели отдельных записей шаринга
type ShareMode string

const (
	ShareModeView ShareMode = "VIEW"
	ShareModeEdit ShareMode = "EDIT"
)
