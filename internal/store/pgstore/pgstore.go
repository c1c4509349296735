// Package pgstore implements store.Store on Postgres through pgx.
package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"venueflow/internal/audit"
	"venueflow/internal/booking"
	"venueflow/internal/event"
	"venueflow/internal/resource"
	"venueflow/internal/store"
	"venueflow/internal/user"
	"venueflow/internal/venue"
	"venueflow/pkg/db"
)

type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
	onRetry    func()
}

// New returns a Store over pool. onRetry may be nil.
func New(pool *pgxpool.Pool, maxRetries int, onRetry func()) *Store {
	return &Store{pool: pool, maxRetries: maxRetries, onRetry: onRetry}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return db.WithSerializableTx(ctx, s.pool, db.RetryPolicy{MaxRetries: s.maxRetries, OnRetry: s.onRetry}, func(tx pgx.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

func (s *Store) WithReadOnlyTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return db.WithSerializableTx(ctx, s.pool, db.RetryPolicy{MaxRetries: s.maxRetries, ReadOnly: true, OnRetry: s.onRetry}, func(tx pgx.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// Tx adapts a pgx.Tx (or a pgx savepoint) to store.Tx.
type Tx struct {
	tx pgx.Tx
}

// Savepoint uses pgx pseudo nested transactions, which are SQL savepoints.
func (t *Tx) Savepoint(ctx context.Context, fn func(tx store.Tx) error) error {
	nested, err := t.tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = nested.Rollback(ctx) }()

	if err := fn(&Tx{tx: nested}); err != nil {
		return err
	}
	return nested.Commit(ctx)
}

func (t *Tx) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return event.Get(ctx, t.tx, id)
}

func (t *Tx) GetEventForUpdate(ctx context.Context, id string) (*event.Event, error) {
	return event.GetForUpdate(ctx, t.tx, id)
}

func (t *Tx) UpdateEventStage(ctx context.Context, id string, stage event.Stage, status event.Status, rejectionReason *string) error {
	return event.UpdateStage(ctx, t.tx, id, stage, status, rejectionReason)
}

func (t *Tx) UpdateEventStatus(ctx context.Context, id string, status event.Status) error {
	return event.UpdateStatus(ctx, t.tx, id, status)
}

func (t *Tx) ListEndedEventIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	return event.ListEndedIDs(ctx, t.tx, cutoff)
}

func (t *Tx) ListResourceRequests(ctx context.Context, eventID string) ([]event.ResourceRequest, error) {
	return event.ListRequests(ctx, t.tx, eventID)
}

func (t *Tx) MarkResourceRequestAllocated(ctx context.Context, requestID string, quantity int) error {
	return event.MarkRequestAllocated(ctx, t.tx, requestID, quantity)
}

func (t *Tx) ResetResourceRequests(ctx context.Context, eventID string) error {
	return event.ResetRequests(ctx, t.tx, eventID)
}

func (t *Tx) GetUser(ctx context.Context, id string) (*user.User, error) {
	return user.Get(ctx, t.tx, id)
}

func (t *Tx) ListActiveUsersByRole(ctx context.Context, role user.Role, scope user.Scope) ([]user.User, error) {
	return user.ListActiveByRole(ctx, t.tx, role, scope)
}

func (t *Tx) ListCandidateVenues(ctx context.Context, f venue.Filter) ([]venue.Venue, error) {
	return venue.ListCandidates(ctx, t.tx, f)
}

func (t *Tx) GetResource(ctx context.Context, id string) (*resource.Resource, error) {
	return resource.Get(ctx, t.tx, id)
}

func (t *Tx) ListOverlappingVenueBookings(ctx context.Context, venueID string, w event.Window) ([]booking.VenueBooking, error) {
	return booking.ListOverlappingVenue(ctx, t.tx, venueID, w)
}

func (t *Tx) ListOverlappingResourceBookings(ctx context.Context, resourceID string, w event.Window) ([]booking.ResourceBooking, error) {
	return booking.ListOverlappingResource(ctx, t.tx, resourceID, w)
}

func (t *Tx) InsertVenueBooking(ctx context.Context, b *booking.VenueBooking) error {
	return booking.InsertVenue(ctx, t.tx, b)
}

func (t *Tx) InsertResourceBooking(ctx context.Context, b *booking.ResourceBooking) error {
	return booking.InsertResource(ctx, t.tx, b)
}

func (t *Tx) CancelBookingsForEvent(ctx context.Context, eventID string, at time.Time) (booking.Released, error) {
	return booking.CancelForEvent(ctx, t.tx, eventID, at)
}

func (t *Tx) CancelStaleProvisionalBookings(ctx context.Context, cutoff, at time.Time) (booking.Released, error) {
	return booking.CancelStaleProvisional(ctx, t.tx, cutoff, at)
}

func (t *Tx) InsertApprovalStep(ctx context.Context, s *audit.ApprovalStep) error {
	return audit.InsertStep(ctx, t.tx, s)
}

func (t *Tx) ListApprovalSteps(ctx context.Context, eventID string) ([]audit.ApprovalStep, error) {
	return audit.ListSteps(ctx, t.tx, eventID)
}

func (t *Tx) InsertLedgerEntry(ctx context.Context, e *audit.Entry) error {
	return audit.InsertEntry(ctx, t.tx, e)
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*Tx)(nil)
)
