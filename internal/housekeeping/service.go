package housekeeping

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"venueflow/internal/apperr"
	"venueflow/internal/audit"
	"venueflow/internal/booking"
	"venueflow/internal/event"
	"venueflow/internal/metrics"
	"venueflow/internal/notify"
	"venueflow/internal/store"
)

// Service runs the periodic, idempotent booking cleanups. Each call uses its
// own transaction; running one again when nothing is left to do is a no-op.
type Service struct {
	Store      store.Store
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

func NewService(st store.Store, d *notify.Dispatcher, m *metrics.Metrics) *Service {
	return &Service{Store: st, Dispatcher: d, Metrics: m, Now: time.Now, NewID: uuid.NewString}
}

// ReleaseResourcesForEvent cancels every active booking of an event whose end
// time has passed, resets its resource requests and marks it Completed.
func (s *Service) ReleaseResourcesForEvent(ctx context.Context, eventID string) (booking.Released, error) {
	return s.releaseAt(ctx, eventID, s.Now())
}

func (s *Service) releaseAt(ctx context.Context, eventID string, now time.Time) (booking.Released, error) {
	var (
		released booking.Released
		queued   []notify.Notification
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		queued = nil
		var err error
		released, err = s.release(ctx, tx, eventID, now, &queued)
		return err
	})
	if err != nil {
		return booking.Released{}, err
	}
	s.Metrics.Released("event_ended", released.Venues, released.Resources)
	s.Dispatcher.Dispatch(ctx, queued)
	return released, nil
}

// ReleaseEnded releases every approved or running event that ended by now,
// judging each event against now rather than the service clock.
// Events are released one transaction at a time; the first failure stops the
// sweep and is returned with the ids processed so far.
func (s *Service) ReleaseEnded(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.Store.WithReadOnlyTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ListEndedEventIDs(ctx, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	done := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := s.releaseAt(ctx, id, now); err != nil {
			return done, fmt.Errorf("release event %s: %w", id, err)
		}
		done = append(done, id)
	}
	return done, nil
}

func (s *Service) release(ctx context.Context, tx store.Tx, eventID string, now time.Time, queued *[]notify.Notification) (booking.Released, error) {
	ev, err := tx.GetEventForUpdate(ctx, eventID)
	if err != nil {
		return booking.Released{}, err
	}
	if now.Before(ev.EndTime) {
		return booking.Released{}, apperr.NotReady("event %s ends at %s", ev.ID, ev.EndTime.Format(time.RFC3339))
	}

	released, err := tx.CancelBookingsForEvent(ctx, ev.ID, now)
	if err != nil {
		return booking.Released{}, err
	}
	if released.Total() == 0 {
		return released, nil
	}

	if err := tx.ResetResourceRequests(ctx, ev.ID); err != nil {
		return booking.Released{}, err
	}
	if ev.Status == event.StatusApproved || ev.Status == event.StatusRunning {
		if err := tx.UpdateEventStatus(ctx, ev.ID, event.StatusCompleted); err != nil {
			return booking.Released{}, err
		}
	}
	entry := audit.NewEntry(s.NewID(), ev.ID, audit.EntryBookingsReleased, audit.SystemActor, released, now)
	if err := tx.InsertLedgerEntry(ctx, &entry); err != nil {
		return booking.Released{}, err
	}

	*queued = append(*queued, notify.ForEvent(ev.CoordinatorID, ev.ID, notify.TypeResourcesReleased,
		"Bookings released", fmt.Sprintf("%q has ended; its venue and resources were released.", ev.Title),
		map[string]any{"venues": released.Venues, "resources": released.Resources}))
	log.Printf("housekeeping released event=%s venues=%d resources=%d", ev.ID, released.Venues, released.Resources)
	return released, nil
}

// CleanupStaleProvisionalBookings cancels provisional holds created before cutoff.
func (s *Service) CleanupStaleProvisionalBookings(ctx context.Context, cutoff time.Time) (booking.Released, error) {
	var released booking.Released
	now := s.Now()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		released, err = tx.CancelStaleProvisionalBookings(ctx, cutoff, now)
		if err != nil || released.Total() == 0 {
			return err
		}
		entry := audit.NewEntry(s.NewID(), "", audit.EntryProvisionalExpired, audit.SystemActor,
			map[string]any{"cutoff": cutoff, "venues": released.Venues, "resources": released.Resources}, now)
		return tx.InsertLedgerEntry(ctx, &entry)
	})
	if err != nil {
		return booking.Released{}, err
	}
	s.Metrics.Released("provisional_expired", released.Venues, released.Resources)
	if released.Total() > 0 {
		log.Printf("housekeeping expired provisional bookings venues=%d resources=%d cutoff=%s",
			released.Venues, released.Resources, cutoff.Format(time.RFC3339))
	}
	return released, nil
}
