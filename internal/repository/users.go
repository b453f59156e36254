// internal/repository/users.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Users is the account directory. The execution core only ever needs an
// existence check; credentials and sessions belong to the account service.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

// Exists reports whether the account id is known.
func (r *Users) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user %d: %w", id, err)
	}
	return exists, nil
}
