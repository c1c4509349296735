// Package store defines the persistence boundary of the approval and
// allocation core. A Tx is the single transactional scope every helper in a
// call chain shares; nothing outside a Tx reads or writes core state.
package store

import (
	"context"
	"time"

	"venueflow/internal/audit"
	"venueflow/internal/booking"
	"venueflow/internal/event"
	"venueflow/internal/resource"
	"venueflow/internal/user"
	"venueflow/internal/venue"
)

type Store interface {
	// WithTx runs fn in a serializable read-write transaction, retrying the
	// whole closure on serialization failures. fn must be safe to re-run.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// WithReadOnlyTx runs fn in a serializable read-only transaction.
	WithReadOnlyTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// Savepoint runs fn in a nested scope. If fn returns an error every write
	// made inside it is undone and the error is returned; the outer scope
	// stays usable.
	Savepoint(ctx context.Context, fn func(tx Tx) error) error

	GetEvent(ctx context.Context, id string) (*event.Event, error)
	GetEventForUpdate(ctx context.Context, id string) (*event.Event, error)
	UpdateEventStage(ctx context.Context, id string, stage event.Stage, status event.Status, rejectionReason *string) error
	UpdateEventStatus(ctx context.Context, id string, status event.Status) error
	ListEndedEventIDs(ctx context.Context, cutoff time.Time) ([]string, error)

	ListResourceRequests(ctx context.Context, eventID string) ([]event.ResourceRequest, error)
	MarkResourceRequestAllocated(ctx context.Context, requestID string, quantity int) error
	ResetResourceRequests(ctx context.Context, eventID string) error

	GetUser(ctx context.Context, id string) (*user.User, error)
	ListActiveUsersByRole(ctx context.Context, role user.Role, scope user.Scope) ([]user.User, error)

	ListCandidateVenues(ctx context.Context, f venue.Filter) ([]venue.Venue, error)
	GetResource(ctx context.Context, id string) (*resource.Resource, error)

	ListOverlappingVenueBookings(ctx context.Context, venueID string, w event.Window) ([]booking.VenueBooking, error)
	ListOverlappingResourceBookings(ctx context.Context, resourceID string, w event.Window) ([]booking.ResourceBooking, error)
	InsertVenueBooking(ctx context.Context, b *booking.VenueBooking) error
	InsertResourceBooking(ctx context.Context, b *booking.ResourceBooking) error
	CancelBookingsForEvent(ctx context.Context, eventID string, at time.Time) (booking.Released, error)
	CancelStaleProvisionalBookings(ctx context.Context, cutoff, at time.Time) (booking.Released, error)

	InsertApprovalStep(ctx context.Context, s *audit.ApprovalStep) error
	ListApprovalSteps(ctx context.Context, eventID string) ([]audit.ApprovalStep, error)
	InsertLedgerEntry(ctx context.Context, e *audit.Entry) error
}
