package domain

type TemplateStatus string

const (
	TemplateDraft           TemplateStatus = "DRAFT"
	TemplateSubmitted       TemplateStatus = "SUBMITTED"
	TemplateApprovalPending TemplateStatus = "APPROVAL_PENDING"
	TemplateApproved        TemplateStatus = "APPROVED"
	TemplateRejected        TemplateStatus = "REJECTED"
	TemplateCreated         TemplateStatus = "CREATED"
	TemplateActivated       TemplateStatus = "ACTIVATED"
)

// TemplateAction is a lifecycle verb applied to a process template.
type TemplateAction string

const (
	ActionSubmit         TemplateAction = "submit"
	ActionAssignReviewer TemplateAction = "assign_reviewer"
	ActionApprove        TemplateAction = "approve"
	ActionReject         TemplateAction = "reject"
	ActionCreate         TemplateAction = "create"
	ActionSave           TemplateAction = "save"
)

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "ACTIVE"
	ProjectArchived ProjectStatus = "ARCHIVED"
)

type FieldType string

const (
	FieldText       FieldType = "text"
	FieldLongText   FieldType = "long_text"
	FieldNumber     FieldType = "number"
	FieldDate       FieldType = "date"
	FieldDateTime   FieldType = "datetime"
	FieldSelect     FieldType = "select"
	FieldMultiSel   FieldType = "multi_select"
	FieldUser       FieldType = "user"
	FieldMultiUser  FieldType = "multi_user"
	FieldBoolean    FieldType = "boolean"
	FieldJSON       FieldType = "json"
)

// ValidFieldTypes is the canonical set of accepted field type strings.
var ValidFieldTypes = map[FieldType]bool{
	FieldText: true, FieldLongText: true, FieldNumber: true,
	FieldDate: true, FieldDateTime: true, FieldSelect: true,
	FieldMultiSel: true, FieldUser: true, FieldMultiUser: true,
	FieldBoolean: true, FieldJSON: true,
}

// SelectFieldTypes are the field types that require a non-empty option list.
var SelectFieldTypes = map[FieldType]bool{
	FieldSelect: true, FieldMultiSel: true,
}

type DependencyType string

const (
	DependencyBlocks  DependencyType = "BLOCKS"
	DependencyRelates DependencyType = "RELATES"
)

type TrackingMode string

const (
	TrackManual         TrackingMode = "MANUAL"
	TrackStatusChange   TrackingMode = "STATUS_CHANGE"
	TrackExecutionStart TrackingMode = "EXECUTION_START"
	TrackExecutionEnd   TrackingMode = "EXECUTION_END"
)

// ValidStartModes and ValidStopModes split the tracking-mode vocabulary by
// which end of a session the mode governs.
var ValidStartModes = map[TrackingMode]bool{
	TrackManual: true, TrackStatusChange: true, TrackExecutionStart: true,
}

var ValidStopModes = map[TrackingMode]bool{
	TrackManual: true, TrackStatusChange: true, TrackExecutionEnd: true,
}

// VersionedStatus is shared by flows and test cases.
type VersionedStatus string

const (
	VersionedDraft    VersionedStatus = "DRAFT"
	VersionedSaved    VersionedStatus = "SAVED"
	VersionedArchived VersionedStatus = "ARCHIVED"
)

type FolderStatus string

const (
	FolderActive   FolderStatus = "ACTIVE"
	FolderArchived FolderStatus = "ARCHIVED"
)

// FolderFamily selects which folder tree a folder operation works on.
type FolderFamily string

const (
	FolderFlows     FolderFamily = "flow"
	FolderTestCases FolderFamily = "test_case"
	FolderVariables FolderFamily = "variable"
	FolderElements  FolderFamily = "element"
)
