package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"venueflow/internal/metrics"
)

type Type string

const (
	TypeSubmitted            Type = "event_submitted"
	TypeApprovalRequired     Type = "approval_required"
	TypeApproved             Type = "event_approved"
	TypeStageAdvanced        Type = "stage_advanced"
	TypeRejected             Type = "event_rejected"
	TypeModificationRequired Type = "modification_required"
	TypeAllocationFailed     Type = "allocation_failed"
	TypeResourcesReleased    Type = "resources_released"
)

type Notification struct {
	UserID  string         `json:"userId"`
	EventID *string        `json:"eventId,omitempty"`
	Type    Type           `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

// ForEvent is a convenience for notifications about one event.
func ForEvent(userID, eventID string, typ Type, title, message string, data map[string]any) Notification {
	id := eventID
	return Notification{UserID: userID, EventID: &id, Type: typ, Title: title, Message: message, Data: data}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the process log. Used in dev and as the
// fallback when no transport is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	eventID := ""
	if n.EventID != nil {
		eventID = *n.EventID
	}
	log.Printf("notify user=%s event=%s type=%s title=%q", n.UserID, eventID, n.Type, n.Title)
	return nil
}

// Dispatcher delivers notifications queued during a committed transaction.
// Delivery failures are logged and counted, never returned: a notification
// that cannot be sent must not undo the state change it describes.
type Dispatcher struct {
	Notifier Notifier
	Metrics  *metrics.Metrics
	Timeout  time.Duration
	Now      func() time.Time
}

func NewDispatcher(n Notifier, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{Notifier: n, Metrics: m, Timeout: 5 * time.Second, Now: time.Now}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ns []Notification) {
	if d == nil || d.Notifier == nil || len(ns) == 0 {
		return
	}
	// The request may be finishing; delivery still gets its own budget.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.Timeout)
	defer cancel()

	for _, n := range ns {
		if n.SentAt.IsZero() && d.Now != nil {
			n.SentAt = d.Now()
		}
		if err := d.Notifier.Notify(ctx, n); err != nil {
			log.Printf("notify failed user=%s type=%s err=%v", n.UserID, n.Type, err)
			d.Metrics.NotificationFailed(string(n.Type))
		}
	}
}
