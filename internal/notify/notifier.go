package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventShared   EventType = "shared"
	EventUnshared EventType = "unshared"
)

// ResourceInfo — краткое описание ресурса в событии
type ResourceInfo struct {
	ObjectID     string `json:"object_id"`
	ResourceType string `json:"resource_type"`
	ObjectType   string `json:"object_type"`
	Name         string `json:"name"`
	OwnerID      string `json:"owner_id"`
}

type Event struct {
	Type     EventType    `json:"type"`
	UserID   string       `json:"user_id"`
	Resource ResourceInfo `json:"resource"`
}

// Sink принимает события fire-and-forget: доставка не входит в контракт
// успеха операции, ошибки только логируются
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// WebhookSink отправляет события POST-запросом во внешнюю шину
type WebhookSink struct {
	endpoint string
	http     *http.Client
}

func NewWebhookSink(endpoint string) *WebhookSink {
	return &WebhookSink{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSink) Emit(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("[notify] failed to marshal event: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("[notify] failed to build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		log.Printf("[notify] failed to emit %s event for %s: %v", event.Type, event.Resource.ObjectID, err)
		return
	}
	resp.Body.Close()
}

// LogSink пишет события в лог: используется когда шина не настроена
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	log.Printf("[notify] %s: user=%s object=%s", event.Type, event.UserID, event.Resource.ObjectID)
}
