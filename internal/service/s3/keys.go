package s3

import "fmt"

// BuildKey строит ключ содержимого файла в хранилище.
// Идентичность контента — это строка пути: тип ресурса, владелец,
// id объекта и имя файла.
func BuildKey(resourceType string, ownerID string, objectID string, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", resourceType, ownerID, objectID, name)
}
