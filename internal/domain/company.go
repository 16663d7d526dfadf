package domain

import "time"

type Company struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Role is a company-scoped role. Permissions maps keys from the company
// vocabulary to grant bits.
type Role struct {
	ID           string
	CompanyID    string
	Name         string
	Description  string
	IsSystemRole bool
	Permissions  map[string]bool
	CreatedAt    time.Time
}

type CompanyUser struct {
	ID          string
	CompanyID   string
	Email       string
	DisplayName string
	RoleID      *string
	IsActive    bool
	CreatedAt   time.Time
}
