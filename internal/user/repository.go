package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"venueflow/internal/apperr"
)

const selectColumns = `id, name, email, role, COALESCE(school_id,''), COALESCE(department_id,''), is_active, created_at`

func scan(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.SchoolID, &u.DepartmentID, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func Get(ctx context.Context, tx pgx.Tx, id string) (*User, error) {
	q := `SELECT ` + selectColumns + ` FROM users WHERE id = $1`
	u, err := scan(tx.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user %s", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListActiveByRole returns active users holding role inside scope, ordered by id.
func ListActiveByRole(ctx context.Context, tx pgx.Tx, role Role, scope Scope) ([]User, error) {
	q := `SELECT ` + selectColumns + ` FROM users WHERE is_active AND role = $1`
	args := []any{string(role)}
	switch scope.Kind {
	case ScopeDepartment:
		q += ` AND department_id = $2`
		args = append(args, scope.ID)
	case ScopeSchool:
		q += ` AND school_id = $2`
		args = append(args, scope.ID)
	}
	q += ` ORDER BY id ASC`

	rows, err := tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func Insert(ctx context.Context, tx pgx.Tx, u *User) error {
	const q = `
INSERT INTO users (id, name, email, role, school_id, department_id, is_active)
VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), $7)
RETURNING created_at
`
	return tx.QueryRow(ctx, q, u.ID, u.Name, u.Email, string(u.Role), u.SchoolID, u.DepartmentID, u.IsActive).Scan(&u.CreatedAt)
}
