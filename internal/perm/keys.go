// Package perm holds the closed permission vocabularies and the
// deny-by-default resolver. Company and project scopes are independent:
// a project check never falls back to a company role.
package perm

// Permission keys. Some keys appear in both scope vocabularies; each is
// declared once.
const (
	// Company administration.
	CanManageCompany   = "can_manage_company"
	CanManageUsers     = "can_manage_users"
	CanManageRoles     = "can_manage_roles"
	CanViewAllProjects = "can_view_all_projects"
	CanCreateProject   = "can_create_project"

	// Project visibility and management.
	CanViewProject        = "can_view_project"
	CanEditProject        = "can_edit_project"
	CanManageProjectUsers = "can_manage_project_users"

	// Flows.
	CanViewFlows   = "can_view_flows"
	CanCreateFlows = "can_create_flows"
	CanEditFlows   = "can_edit_flows"

	// Test cases.
	CanViewTestCases   = "can_view_test_cases"
	CanCreateTestCases = "can_create_test_cases"
	CanEditTestCases   = "can_edit_test_cases"

	// Builder and execution.
	CanUseBuilder   = "can_use_builder"
	CanExecuteTests = "can_execute_tests"

	// Reports.
	CanViewReports     = "can_view_reports"
	CanDownloadReports = "can_download_reports"

	// Elements.
	CanCaptureElements = "can_capture_elements"

	// Process templates.
	CanCreateTemplates  = "can_create_templates"
	CanEditTemplates    = "can_edit_templates"
	CanSubmitTemplates  = "can_submit_templates"
	CanApproveTemplates = "can_approve_templates"

	// Planning items.
	CanCreatePlanningItems = "can_create_planning_items"
	CanEditPlanningItems   = "can_edit_planning_items"
	CanTrackTime           = "can_track_time"
	CanBindExecution       = "can_bind_execution"
)

// companyKeys is the canonical company-scope vocabulary.
var companyKeys = map[string]bool{
	CanManageCompany:   true,
	CanManageUsers:     true,
	CanManageRoles:     true,
	CanViewAllProjects: true,
	CanCreateProject:   true,
	CanViewFlows:       true,
	CanCreateFlows:     true,
	CanEditFlows:       true,
	CanViewTestCases:   true,
	CanCreateTestCases: true,
	CanEditTestCases:   true,
	CanUseBuilder:      true,
	CanExecuteTests:    true,
	CanViewReports:     true,
	CanDownloadReports: true,
}

// projectKeys is the canonical project-scope vocabulary.
var projectKeys = map[string]bool{
	CanViewProject:        true,
	CanEditProject:        true,
	CanManageProjectUsers: true,

	CanViewFlows:   true,
	CanCreateFlows: true,
	CanEditFlows:   true,

	CanViewTestCases:   true,
	CanCreateTestCases: true,
	CanEditTestCases:   true,

	CanUseBuilder:      true,
	CanExecuteTests:    true,
	CanViewReports:     true,
	CanCaptureElements: true,

	CanCreateTemplates:  true,
	CanEditTemplates:    true,
	CanSubmitTemplates:  true,
	CanApproveTemplates: true,

	CanCreatePlanningItems: true,
	CanEditPlanningItems:   true,
	CanTrackTime:           true,
	CanBindExecution:       true,
}

// KnownCompanyKey reports whether key belongs to the company vocabulary.
func KnownCompanyKey(key string) bool { return companyKeys[key] }

// KnownProjectKey reports whether key belongs to the project vocabulary.
func KnownProjectKey(key string) bool { return projectKeys[key] }

// CompanyKeys returns the company vocabulary in no particular order.
func CompanyKeys() []string {
	keys := make([]string, 0, len(companyKeys))
	for k := range companyKeys {
		keys = append(keys, k)
	}
	return keys
}

// ProjectKeys returns the project vocabulary in no particular order.
func ProjectKeys() []string {
	keys := make([]string, 0, len(projectKeys))
	for k := range projectKeys {
		keys = append(keys, k)
	}
	return keys
}
