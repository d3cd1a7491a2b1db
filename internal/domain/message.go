package domain

import "time"

// AnonymousUser tags messages written without a resolvable token.
const AnonymousUser = "anónimo"

// Message is a short text stored by the resource service.
type Message struct {
	ID        int64
	Body      string
	Author    string
	Username  string
	CreatedAt time.Time
}

// Caller is an identity resolved from a bearer token.
type Caller struct {
	Username string `json:"username"`
	Role     Role   `json:"rol"`
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
