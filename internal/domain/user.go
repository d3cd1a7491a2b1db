package domain

import "time"

// Role is the authorization level carried in a user's tokens.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUsuario Role = "usuario"
	RoleGuest   Role = "invitado"
)

// User represents an entry of the credential directory.
type User struct {
	Username     string
	PasswordHash string
	Name         string
	Email        string
	Role         Role
	CreatedAt    time.Time
}

// Profile is the part of a User that may leave the authority.
type Profile struct {
	Username string `json:"username"`
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	Role     Role   `json:"rol"`
}

func (u User) Profile() Profile {
	return Profile{
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
	}
}
