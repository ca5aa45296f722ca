package models

import (
	"time"
)

// Role is the closed set of authorization levels. A distinct type keeps
// role checks exhaustive and typo-proof.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

type User struct {
	ID           int64
	Email        string // normalized: lowercase, trimmed
	Username     string // defaults to the local part of the email
	PasswordHash string
	Role         Role // defaults to RoleUser
	CreatedAt    time.Time
}
