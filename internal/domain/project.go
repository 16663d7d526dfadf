package domain

import "time"

type Project struct {
	ID          string
	CompanyID   string
	Name        string
	Description string
	Status      ProjectStatus

	// Feature flags gating whole subsystems.
	FlowsEnabled          bool
	TestCasesEnabled      bool
	TestPlanningEnabled   bool
	TemplateNeedsApproval bool
	ElementCaptureEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectRole is a project-scoped role; its Permissions keys come from the
// project vocabulary, which is independent of the company one.
type ProjectRole struct {
	ID          string
	ProjectID   string
	Name        string
	Permissions map[string]bool
	CreatedAt   time.Time
}

// ProjectUser is a membership: one company user, one project, one role.
type ProjectUser struct {
	ID            string
	ProjectID     string
	CompanyUserID string
	RoleID        string
	IsActive      bool
}

// PlanningConfig carries the per-project display names of hierarchy
// levels 1-5 (e.g. Sprint/Epic/Story/Task).
type PlanningConfig struct {
	ID         string
	ProjectID  string
	LevelNames [5]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
