package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"venueflow/internal/apperr"
)

func Get(ctx context.Context, tx pgx.Tx, id string) (*Resource, error) {
	const q = `
SELECT id, name, total_quantity, unit, is_active
FROM resources
WHERE id = $1
`
	var r Resource
	if err := tx.QueryRow(ctx, q, id).Scan(&r.ID, &r.Name, &r.TotalQuantity, &r.Unit, &r.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("resource %s", id)
		}
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return &r, nil
}

func Insert(ctx context.Context, tx pgx.Tx, r *Resource) error {
	const q = `
INSERT INTO resources (id, name, total_quantity, unit, is_active)
VALUES ($1, $2, $3, $4, $5)
`
	_, err := tx.Exec(ctx, q, r.ID, r.Name, r.TotalQuantity, r.Unit, r.IsActive)
	return err
}
