package auth

import (
	"time"

	"github.com/supplyhub/supplyhub/internal/shared"
)

// User represents an account able to sign in.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         shared.Role
	SupplierID   string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor converts the account into the identity carried through requests.
func (u User) Actor() shared.Actor {
	return shared.Actor{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, SupplierID: u.SupplierID}
}

// Session is an issued bearer token.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Actor     shared.Actor `json:"actor"`
}
