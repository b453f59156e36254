// internal/models/user.go
package models

import "time"

// User is an account record. The execution core only ever checks existence;
// credentials live with the account service and are not handled here.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
