package domain

import "time"

// Variable is a named value usable by flows; keys are unique per project.
type Variable struct {
	ID          string
	ProjectID   string
	FolderID    string
	Key         string
	Value       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Element is a captured page element with prioritized locators.
type Element struct {
	ID        string
	ProjectID string
	FolderID  string
	Name      string
	PageURL   string
	CreatedAt time.Time
}

type ElementLocator struct {
	ID            string
	ElementID     string
	SelectorType  string
	SelectorValue string
	Priority      int
	IsActive      bool
	CreatedAt     time.Time
}
