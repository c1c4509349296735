package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"venueflow/internal/apperr"
)

const selectColumns = `
id, title, start_time, end_time, participant_count, COALESCE(venue_type_preference,''),
school_id, department_id, coordinator_id, status, approval_stage, COALESCE(rejection_reason,''),
created_at, updated_at`

func scan(row pgx.Row) (*Event, error) {
	var e Event
	var stage string
	if err := row.Scan(
		&e.ID, &e.Title, &e.StartTime, &e.EndTime, &e.ParticipantCount, &e.VenueTypePreference,
		&e.SchoolID, &e.DepartmentID, &e.CoordinatorID, &e.Status, &stage, &e.RejectionReason,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st, err := ParseStage(stage)
	if err != nil {
		return nil, err
	}
	e.Stage = st
	return &e, nil
}

func Get(ctx context.Context, tx pgx.Tx, id string) (*Event, error) {
	q := `SELECT ` + selectColumns + ` FROM events WHERE id = $1`
	return getOne(ctx, tx, q, id)
}

// GetForUpdate row-locks the event for the rest of the transaction.
func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Event, error) {
	q := `SELECT ` + selectColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return getOne(ctx, tx, q, id)
}

func getOne(ctx context.Context, tx pgx.Tx, q, id string) (*Event, error) {
	e, err := scan(tx.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("event %s", id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// UpdateStage writes stage and status together so they cannot drift apart.
// rejectionReason is left untouched when nil.
func UpdateStage(ctx context.Context, tx pgx.Tx, id string, stage Stage, status Status, rejectionReason *string) error {
	const q = `
UPDATE events
SET approval_stage = $2,
    status = $3,
    rejection_reason = COALESCE($4, rejection_reason),
    updated_at = NOW()
WHERE id = $1
`
	tag, err := tx.Exec(ctx, q, id, stage.String(), string(status), rejectionReason)
	if err != nil {
		return fmt.Errorf("update event stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event %s", id)
	}
	return nil
}

func UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status Status) error {
	const q = `UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := tx.Exec(ctx, q, id, string(status))
	return err
}

// ListEndedIDs returns approved or running events whose window closed before cutoff.
func ListEndedIDs(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]string, error) {
	const q = `
SELECT id
FROM events
WHERE status IN ('Approved', 'Running') AND end_time <= $1
ORDER BY end_time ASC, id ASC
`
	rows, err := tx.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list ended events: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func Insert(ctx context.Context, tx pgx.Tx, e *Event) error {
	const q = `
INSERT INTO events (id, title, start_time, end_time, participant_count, venue_type_preference,
                    school_id, department_id, coordinator_id, status, approval_stage)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7, $8, $9, $10, $11)
RETURNING created_at, updated_at
`
	return tx.QueryRow(ctx, q,
		e.ID, e.Title, e.StartTime, e.EndTime, e.ParticipantCount, e.VenueTypePreference,
		e.SchoolID, e.DepartmentID, e.CoordinatorID, string(e.Status), e.Stage.String(),
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func ListRequests(ctx context.Context, tx pgx.Tx, eventID string) ([]ResourceRequest, error) {
	const q = `
SELECT id, event_id, resource_id, quantity, is_allocated, allocated_quantity
FROM resource_requests
WHERE event_id = $1
ORDER BY id ASC
`
	rows, err := tx.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list resource requests: %w", err)
	}
	defer rows.Close()

	var out []ResourceRequest
	for rows.Next() {
		var r ResourceRequest
		if err := rows.Scan(&r.ID, &r.EventID, &r.ResourceID, &r.Quantity, &r.IsAllocated, &r.AllocatedQuantity); err != nil {
			return nil, fmt.Errorf("scan resource request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func MarkRequestAllocated(ctx context.Context, tx pgx.Tx, requestID string, quantity int) error {
	const q = `
UPDATE resource_requests
SET is_allocated = TRUE, allocated_quantity = $2
WHERE id = $1
`
	_, err := tx.Exec(ctx, q, requestID, quantity)
	return err
}

func ResetRequests(ctx context.Context, tx pgx.Tx, eventID string) error {
	const q = `
UPDATE resource_requests
SET is_allocated = FALSE, allocated_quantity = 0
WHERE event_id = $1 AND is_allocated
`
	_, err := tx.Exec(ctx, q, eventID)
	return err
}

func InsertRequest(ctx context.Context, tx pgx.Tx, r *ResourceRequest) error {
	const q = `
INSERT INTO resource_requests (id, event_id, resource_id, quantity)
VALUES ($1, $2, $3, $4)
`
	_, err := tx.Exec(ctx, q, r.ID, r.EventID, r.ResourceID, r.Quantity)
	return err
}
