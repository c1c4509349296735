package venue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ListCandidates returns bookable venues for f in allocation order.
func ListCandidates(ctx context.Context, tx pgx.Tx, f Filter) ([]Venue, error) {
	const q = `
SELECT id, name, capacity, type, is_active, under_maintenance
FROM venues
WHERE is_active
  AND NOT under_maintenance
  AND capacity >= $1
  AND ($2 = '' OR type = $2)
ORDER BY capacity ASC, name ASC
`
	rows, err := tx.Query(ctx, q, f.MinCapacity, f.Type)
	if err != nil {
		return nil, fmt.Errorf("list candidate venues: %w", err)
	}
	defer rows.Close()

	var out []Venue
	for rows.Next() {
		var v Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Capacity, &v.Type, &v.IsActive, &v.UnderMaintenance); err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func Insert(ctx context.Context, tx pgx.Tx, v *Venue) error {
	const q = `
INSERT INTO venues (id, name, capacity, type, is_active, under_maintenance)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err := tx.Exec(ctx, q, v.ID, v.Name, v.Capacity, v.Type, v.IsActive, v.UnderMaintenance)
	return err
}
