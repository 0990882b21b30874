// Package notificationstest provides an in-memory notifications.Gateway.
package notificationstest

import (
	"context"
	"sync"

	"github.com/angelmondragon/fooddash-backend/internal/notifications"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/google/uuid"
)

// Recorder captures every message and event it is handed.
type Recorder struct {
	mu       sync.Mutex
	messages []notifications.Message
	events   []notifications.RealtimeEvent
}

func (r *Recorder) Notify(_ context.Context, msg notifications.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *Recorder) Push(_ context.Context, event notifications.RealtimeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Messages() []notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Message(nil), r.messages...)
}

func (r *Recorder) Events() []notifications.RealtimeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.RealtimeEvent(nil), r.events...)
}

// MessagesOfType filters captured messages by type and, when userID is not
// nil, by recipient.
func (r *Recorder) MessagesOfType(kind enums.NotificationType, userID uuid.UUID) []notifications.Message {
	var out []notifications.Message
	for _, msg := range r.Messages() {
		if msg.Type != kind {
			continue
		}
		if userID != uuid.Nil && msg.UserID != userID {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// EventsNamed filters captured realtime events by name.
func (r *Recorder) EventsNamed(name string) []notifications.RealtimeEvent {
	var out []notifications.RealtimeEvent
	for _, ev := range r.Events() {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.events = nil
}
