package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"venueflow/internal/event"
)

// ListOverlappingVenue returns confirmed bookings of venueID strictly overlapping w.
func ListOverlappingVenue(ctx context.Context, tx pgx.Tx, venueID string, w event.Window) ([]VenueBooking, error) {
	const q = `
SELECT id, event_id, venue_id, start_time, end_time, status, created_at, cancelled_at
FROM venue_bookings
WHERE venue_id = $1
  AND status = 'confirmed'
  AND start_time < $3
  AND end_time > $2
ORDER BY start_time ASC, id ASC
`
	rows, err := tx.Query(ctx, q, venueID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list overlapping venue bookings: %w", err)
	}
	defer rows.Close()

	var out []VenueBooking
	for rows.Next() {
		var b VenueBooking
		if err := rows.Scan(&b.ID, &b.EventID, &b.VenueID, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.CancelledAt); err != nil {
			return nil, fmt.Errorf("scan venue booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListOverlappingResource returns confirmed bookings of resourceID strictly overlapping w.
func ListOverlappingResource(ctx context.Context, tx pgx.Tx, resourceID string, w event.Window) ([]ResourceBooking, error) {
	const q = `
SELECT id, event_id, resource_id, quantity, start_time, end_time, status, created_at, cancelled_at
FROM resource_bookings
WHERE resource_id = $1
  AND status = 'confirmed'
  AND start_time < $3
  AND end_time > $2
ORDER BY start_time ASC, id ASC
`
	rows, err := tx.Query(ctx, q, resourceID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list overlapping resource bookings: %w", err)
	}
	defer rows.Close()

	var out []ResourceBooking
	for rows.Next() {
		var b ResourceBooking
		if err := rows.Scan(&b.ID, &b.EventID, &b.ResourceID, &b.Quantity, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.CancelledAt); err != nil {
			return nil, fmt.Errorf("scan resource booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func InsertVenue(ctx context.Context, tx pgx.Tx, b *VenueBooking) error {
	const q = `
INSERT INTO venue_bookings (id, event_id, venue_id, start_time, end_time, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at
`
	return tx.QueryRow(ctx, q, b.ID, b.EventID, b.VenueID, b.StartTime, b.EndTime, string(b.Status)).Scan(&b.CreatedAt)
}

func InsertResource(ctx context.Context, tx pgx.Tx, b *ResourceBooking) error {
	const q = `
INSERT INTO resource_bookings (id, event_id, resource_id, quantity, start_time, end_time, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at
`
	return tx.QueryRow(ctx, q, b.ID, b.EventID, b.ResourceID, b.Quantity, b.StartTime, b.EndTime, string(b.Status)).Scan(&b.CreatedAt)
}

// CancelForEvent cancels every non-cancelled booking held by eventID.
func CancelForEvent(ctx context.Context, tx pgx.Tx, eventID string, at time.Time) (Released, error) {
	const qVenue = `
UPDATE venue_bookings
SET status = 'cancelled', cancelled_at = $2
WHERE event_id = $1 AND status <> 'cancelled'
`
	const qResource = `
UPDATE resource_bookings
SET status = 'cancelled', cancelled_at = $2
WHERE event_id = $1 AND status <> 'cancelled'
`
	var out Released
	tag, err := tx.Exec(ctx, qVenue, eventID, at)
	if err != nil {
		return out, fmt.Errorf("cancel venue bookings: %w", err)
	}
	out.Venues = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, qResource, eventID, at)
	if err != nil {
		return out, fmt.Errorf("cancel resource bookings: %w", err)
	}
	out.Resources = int(tag.RowsAffected())
	return out, nil
}

// CancelStaleProvisional cancels provisional bookings created before cutoff.
func CancelStaleProvisional(ctx context.Context, tx pgx.Tx, cutoff, at time.Time) (Released, error) {
	const qVenue = `
UPDATE venue_bookings
SET status = 'cancelled', cancelled_at = $2
WHERE status = 'provisional' AND created_at < $1
`
	const qResource = `
UPDATE resource_bookings
SET status = 'cancelled', cancelled_at = $2
WHERE status = 'provisional' AND created_at < $1
`
	var out Released
	tag, err := tx.Exec(ctx, qVenue, cutoff, at)
	if err != nil {
		return out, fmt.Errorf("expire provisional venue bookings: %w", err)
	}
	out.Venues = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, qResource, cutoff, at)
	if err != nil {
		return out, fmt.Errorf("expire provisional resource bookings: %w", err)
	}
	out.Resources = int(tag.RowsAffected())
	return out, nil
}
