package domain

import "time"

// Flow is a manual-test flow. Versions are append-only; CurrentVersion
// points at the newest one.
type Flow struct {
	ID             string
	ProjectID      string
	FolderID       *string
	Name           string
	Description    string
	CurrentVersion int
	Status         VersionedStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FlowVersion is an immutable snapshot of a flow's steps. StepsJSON is a
// JSON array of objects each carrying action_key, execution_notes and a
// parameters object.
type FlowVersion struct {
	ID                 string
	FlowID             string
	VersionNumber      int
	StepsJSON          string
	CreatedFromVersion *int
	CreatedAt          time.Time
}

// FlowStep is the decoded shape of one StepsJSON entry.
type FlowStep struct {
	ActionKey      string         `json:"action_key"`
	ExecutionNotes string         `json:"execution_notes"`
	Parameters     map[string]any `json:"parameters"`
}

type TestCase struct {
	ID             string
	ProjectID      string
	FolderID       string
	Name           string
	Description    string
	Status         VersionedStatus
	CurrentVersion *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TestCaseVersion snapshots a test case: three JSON arrays, immutable
// once written.
type TestCaseVersion struct {
	ID                   string
	TestCaseID           string
	VersionNumber        int
	PreConditionsJSON    string
	StepsJSON            string
	ExpectedOutcomesJSON string
	CreatedFromVersion   *int
	CreatedAt            time.Time
}
