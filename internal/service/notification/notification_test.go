package notification

import (
	"chat-widget-backend/internal/model"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memoryStore struct {
	mu    sync.Mutex
	items []model.NotificationItem
	err   error
}

func (m *memoryStore) Create(_ context.Context, item model.NotificationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, item)
	return nil
}

func TestDispatchFillsDefaults(t *testing.T) {
	store := &memoryStore{}
	d := NewDispatcher(store, zerolog.Nop(), time.Second)
	d.now = func() time.Time { return time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC) }

	d.Dispatch(model.NotificationItem{WorkspaceID: "ws-1", Type: model.NotificationTypeNewOrder})
	d.Wait()

	if len(store.items) != 1 {
		t.Fatalf("expected one notification, got %d", len(store.items))
	}
	got := store.items[0]
	if got.NotificationID == "" {
		t.Fatalf("expected generated id")
	}
	if got.CreatedAt != "2026-10-01T09:00:00Z" {
		t.Fatalf("unexpected createdAt %s", got.CreatedAt)
	}
	if got.Priority != model.NotificationPriorityNormal {
		t.Fatalf("expected default priority, got %s", got.Priority)
	}
}

func TestDispatchSwallowsStoreErrors(t *testing.T) {
	store := &memoryStore{err: errors.New("throttled")}
	d := NewDispatcher(store, zerolog.Nop(), time.Second)

	d.Dispatch(model.NotificationItem{WorkspaceID: "ws-1", Type: model.NotificationTypeNewOrder})
	d.Wait()

	if len(store.items) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

type panickingStore struct{}

func (panickingStore) Create(context.Context, model.NotificationItem) error {
	panic("boom")
}

func TestDispatchRecoversPanics(t *testing.T) {
	d := NewDispatcher(panickingStore{}, zerolog.Nop(), time.Second)
	res := d.deliver(model.NotificationItem{NotificationID: "n-1"})
	if res.Err == nil {
		t.Fatalf("expected error from panicking store")
	}
}
