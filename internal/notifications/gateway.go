package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	"github.com/google/uuid"
)

// Realtime event names pushed to connected clients.
const (
	EventWalletBalanceUpdated = "wallet.balance_updated"
	EventOrderStatusChanged   = "order.status_changed"
	EventRiderAssigned        = "order.rider_assigned"
)

// Message is an in-app notification addressed to one user.
type Message struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Body    string
	OrderID *uuid.UUID
}

// RealtimeEvent is a push payload for a user's live session.
type RealtimeEvent struct {
	UserID  uuid.UUID
	Event   string
	Payload any
}

// Gateway delivers user-facing notifications after the owning change has
// committed. Implementations log delivery failures and never return them, and
// must not hold up the caller on a slow store.
type Gateway interface {
	Notify(ctx context.Context, msg Message)
	Push(ctx context.Context, event RealtimeEvent)
}

type realtimePublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	ChannelKey(parts ...string) string
}

// DispatcherConfig tunes the dispatcher.
type DispatcherConfig struct {
	Timeout time.Duration
	Channel string
}

// Dispatcher persists in-app notifications and publishes realtime events over Redis.
type Dispatcher struct {
	repo      Repository
	publisher realtimePublisher
	logg      *logger.Logger
	timeout   time.Duration
	channel   string
	now       func() time.Time
	inflight  sync.WaitGroup
}

func NewDispatcher(repo Repository, publisher realtimePublisher, logg *logger.Logger, cfg DispatcherConfig) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Channel == "" {
		cfg.Channel = "realtime"
	}
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		logg:      logg,
		timeout:   cfg.Timeout,
		channel:   cfg.Channel,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Notify persists msg on a background goroutine and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if msg.UserID == uuid.Nil {
		return
	}
	row := &models.Notification{
		ID:        uuid.New(),
		UserID:    msg.UserID,
		Type:      msg.Type,
		Title:     msg.Title,
		Message:   msg.Body,
		OrderID:   msg.OrderID,
		CreatedAt: d.now(),
	}
	d.dispatch(ctx, func(ctx context.Context) {
		if err := d.repo.Create(ctx, row); err != nil {
			ctx = d.logg.WithFields(ctx, map[string]any{
				"notification_type": string(msg.Type),
				"recipient_id":      msg.UserID.String(),
			})
			d.logg.Error(ctx, "notification persist failed", err)
		}
	})
}

// Push encodes the event on the caller's goroutine, so sent_at follows call
// order, and publishes it in the background.
func (d *Dispatcher) Push(ctx context.Context, event RealtimeEvent) {
	if d.publisher == nil || event.UserID == uuid.Nil {
		return
	}
	payload, err := json.Marshal(realtimeEnvelope{
		Event:  event.Event,
		UserID: event.UserID,
		Data:   event.Payload,
		SentAt: d.now(),
	})
	if err != nil {
		d.logg.Error(ctx, "realtime payload encode failed", err)
		return
	}
	channel := d.publisher.ChannelKey(d.channel, event.UserID.String())
	d.dispatch(ctx, func(ctx context.Context) {
		if err := d.publisher.Publish(ctx, channel, payload); err != nil {
			ctx = d.logg.WithFields(ctx, map[string]any{
				"event":   event.Event,
				"channel": channel,
			})
			d.logg.Warn(ctx, "realtime publish failed: "+err.Error())
		}
	})
}

// Wait blocks until every delivery started so far has finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, deliver func(context.Context)) {
	ctx, cancel := d.detach(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.logg.Error(ctx, "notification delivery panicked", fmt.Errorf("%v", r))
			}
		}()
		deliver(ctx)
	}()
}

// detach keeps delivery alive after the originating request returns while
// still bounding it by the dispatch timeout.
func (d *Dispatcher) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
}

type realtimeEnvelope struct {
	Event  string    `json:"event"`
	UserID uuid.UUID `json:"user_id"`
	Data   any       `json:"data,omitempty"`
	SentAt time.Time `json:"sent_at"`
}
