package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"venueflow/internal/event"
)

func InsertStep(ctx context.Context, tx pgx.Tx, s *ApprovalStep) error {
	const q = `
INSERT INTO approval_steps (id, event_id, stage, action, actor_id, comments, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7)
`
	_, err := tx.Exec(ctx, q, s.ID, s.EventID, s.Stage.String(), string(s.Action), s.ActorID, s.Comments, s.CreatedAt)
	return err
}

func ListSteps(ctx context.Context, tx pgx.Tx, eventID string) ([]ApprovalStep, error) {
	const q = `
SELECT id, event_id, stage, action, actor_id, COALESCE(comments,''), created_at
FROM approval_steps
WHERE event_id = $1
ORDER BY created_at ASC, seq ASC
`
	rows, err := tx.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list approval steps: %w", err)
	}
	defer rows.Close()

	var out []ApprovalStep
	for rows.Next() {
		var s ApprovalStep
		var stage string
		if err := rows.Scan(&s.ID, &s.EventID, &stage, &s.Action, &s.ActorID, &s.Comments, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval step: %w", err)
		}
		if s.Stage, err = event.ParseStage(stage); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func InsertEntry(ctx context.Context, tx pgx.Tx, e *Entry) error {
	var s *string
	if len(e.Metadata) > 0 {
		str := string(e.Metadata)
		s = &str
	}
	const q = `
INSERT INTO ledger_entries (id, event_id, kind, actor, metadata, created_at)
VALUES ($1, NULLIF($2,''), $3, $4, CAST($5 AS jsonb), $6)
`
	_, err := tx.Exec(ctx, q, e.ID, e.EventID, string(e.Kind), e.Actor, s, e.CreatedAt)
	return err
}
