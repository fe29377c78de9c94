package domain

import "time"

// AdminRole is the role name that overrides permission checks in Can.
const AdminRole = "admin"

type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is a named capability, conventionally "action:resource" or a
// bare "action". A resource of "*" acts as a wildcard for that action.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
