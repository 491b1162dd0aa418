package notification

import (
	"chat-widget-backend/internal/database"
	"chat-widget-backend/internal/model"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Store interface {
	Create(ctx context.Context, item model.NotificationItem) error
}

type DynamoStore struct {
	db *database.Database
}

func NewDynamoStore(db *database.Database) *DynamoStore {
	return &DynamoStore{db: db}
}

func (s *DynamoStore) Create(ctx context.Context, item model.NotificationItem) error {
	return s.db.Client.PutItem(ctx, model.NotificationsTable, item)
}

// Result is the outcome of a best-effort delivery. It is logged, never returned
// to the request that triggered it.
type Result struct {
	NotificationID string
	Type           string
	Err            error
}

// Dispatcher creates notifications off the request path.
type Dispatcher struct {
	store   Store
	log     zerolog.Logger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewDispatcher(store Store, log zerolog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		store:   store,
		log:     log.With().Str("component", "notification").Logger(),
		timeout: timeout,
		now:     time.Now,
	}
}

// Dispatch fills in id and timestamp and writes n in the background.
func (d *Dispatcher) Dispatch(n model.NotificationItem) {
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	if n.CreatedAt == "" {
		n.CreatedAt = d.now().UTC().Format(time.RFC3339)
	}
	if n.Priority == "" {
		n.Priority = model.NotificationPriorityNormal
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.report(d.deliver(n))
	}()
}

func (d *Dispatcher) deliver(n model.NotificationItem) (res Result) {
	res = Result{NotificationID: n.NotificationID, Type: n.Type}
	defer func() {
		if r := recover(); r != nil {
			res.Err = panicError{value: r}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	res.Err = d.store.Create(ctx, n)
	return res
}

func (d *Dispatcher) report(res Result) {
	if res.Err != nil {
		d.log.Warn().Err(res.Err).Str("notification_id", res.NotificationID).Str("type", res.Type).Msg("notification dropped")
		return
	}
	d.log.Debug().Str("notification_id", res.NotificationID).Str("type", res.Type).Msg("notification created")
}

// Wait blocks until every dispatched notification finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("notification store panicked: %v", e.value)
}
