package domain

import "time"

// PlanningItem is a hierarchy node instantiated from an entity type.
// Path is declared but intentionally left empty at creation; hierarchy
// ordering never depends on it.
type PlanningItem struct {
	ID            string
	ProjectID     string
	EntityTypeID  string
	ParentID      *string
	Title         string
	Description   string
	Path          string
	StatusStateID *string
	OwnerID       *string
	CreatedBy     *string
	AssigneeIDs   []string
	StartDate     *time.Time
	EndDate       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItemFieldValue is the typed value of one custom field on one item,
// stored as JSON and validated against the field definition's type.
type ItemFieldValue struct {
	ID                string
	ItemID            string
	FieldDefinitionID string
	ValueJSON         string
}

// PlanningDependency is a directed edge source -> target. The graph is
// kept acyclic at every insertion.
type PlanningDependency struct {
	ID           string
	SourceItemID string
	TargetItemID string
	Type         DependencyType
	CreatedAt    time.Time
}

// ExecutionBinding links an item to a flow and/or test case; one binding
// per item, re-binding replaces it.
type ExecutionBinding struct {
	ID            string
	ItemID        string
	FlowID        *string
	TestCaseID    *string
	ExecutionMode string
	AutoTrigger   bool
}

// TimeSession is one tracked span of work on an item by an assigned user.
type TimeSession struct {
	ID              string
	ItemID          string
	ProjectUserID   string
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds int
}

// Open reports whether the session has not been stopped yet.
func (s TimeSession) Open() bool { return s.EndedAt == nil }
