package domain

import "time"

// Employee doubles as the credential record for the identity provider:
// PasswordHash is bcrypt and never leaves the service (stripped before any
// API response).
type Employee struct {
	ID           string    `json:"-"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	IsAdmin      bool      `json:"isAdmin"`
	IsSales      bool      `json:"isSales"`
	Position     string    `json:"position,omitempty"`
	HireDate     time.Time `json:"hireDate"`
	CreatedAt    time.Time `json:"createdAt"`
	PasswordHash string    `json:"passwordHash,omitempty"`
}

func (e Employee) Claims() Claims {
	return Claims{Administrator: e.IsAdmin, Sales: e.IsSales}
}

// Sanitized returns a copy safe to serialize to clients.
func (e Employee) Sanitized() Employee {
	e.PasswordHash = ""
	return e
}
