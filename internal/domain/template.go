package domain

import "time"

// ProcessTemplate is a versioned planning configuration bundle. Once the
// status reaches CREATED or ACTIVATED the template is locked and edits go
// through a clone instead of mutating in place.
type ProcessTemplate struct {
	ID            string
	CompanyID     string
	Name          string
	Description   string
	VersionNumber int
	Status        TemplateStatus
	IsLocked      bool
	CreatedBy     *string
	ReviewerID    *string
	RejectionNote *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Locked reports whether the template may no longer be mutated in place.
func (t ProcessTemplate) Locked() bool {
	return t.IsLocked || t.Status == TemplateCreated || t.Status == TemplateActivated
}

// EntityType is one level of a template's planning hierarchy. LevelOrder
// defines depth: a child item's entity type must have a strictly larger
// level order than its parent's.
type EntityType struct {
	ID                    string
	TemplateID            string
	InternalKey           string
	DisplayName           string
	LevelOrder            int
	AllowChildren         bool
	AllowExecutionBinding bool
	AllowDependencies     bool
	AllowTimeTracking     bool
	WorkflowID            *string
	CreatedAt             time.Time
}

// FieldDefinition is a custom field on an entity type. FieldKey and
// FieldType are immutable once created.
type FieldDefinition struct {
	ID               string
	EntityTypeID     string
	FieldKey         string
	DisplayName      string
	FieldType        FieldType
	IsRequired       bool
	IsExecutionField bool
	IsEditable       bool
	FieldOrder       int
	Options          []string
	DefaultValueJSON *string
	CreatedAt        time.Time
}

type WorkflowDefinition struct {
	ID             string
	EntityTypeID   string
	InitialStateID *string
	CreatedAt      time.Time
}

type WorkflowState struct {
	ID         string
	WorkflowID string
	Name       string
	IsFinal    bool
	StateOrder int
}

// WorkflowTransition authorizes moving between two states of one workflow.
// AllowedRoles lists project permission keys; holding any one of them
// authorizes the transition.
type WorkflowTransition struct {
	ID           string
	WorkflowID   string
	FromStateID  string
	ToStateID    string
	AllowedRoles []string
	CreatedAt    time.Time
}

type TimeTrackingRule struct {
	ID                    string
	EntityTypeID          string
	StartMode             TrackingMode
	StopMode              TrackingMode
	AllowMultipleSessions bool
}

// TemplateBinding links a project to a template. At most one binding per
// project is active at a time.
type TemplateBinding struct {
	ID          string
	ProjectID   string
	TemplateID  string
	IsActive    bool
	ActivatedBy *string
	ActivatedAt time.Time
}
