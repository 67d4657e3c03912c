package model

import "time"

// User is a registered account. Uploads may optionally be associated with one.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RegisteredAt time.Time `json:"registered_at"`
}
