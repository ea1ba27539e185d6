package models

// ApplySuggestionRequest is the body of POST /api/project/apply-suggestion.
type ApplySuggestionRequest struct {
	FilePath    string `json:"filePath"`
	CodeUpdated string `json:"codeUpdated"`
}

// RestoreBackupRequest is the body of POST /api/project/restore-backup.
type RestoreBackupRequest struct {
	FilePath string `json:"filePath"`
}

// VerifyBuildRequest is the body of POST /api/project/verify-build.
type VerifyBuildRequest struct {
	Path string `json:"path"`
}

// SuggestRequest is the body of POST /api/ai/suggest.
type SuggestRequest struct {
	FileName      string `json:"fileName"`
	Code          string `json:"code"`
	Warning       string `json:"warning"`
	TargetVersion int    `json:"targetVersion,omitempty"`
}

// AuditFixRequest is the body of POST /api/ai/audit-fix.
type AuditFixRequest struct {
	Module string `json:"module"`
	Title  string `json:"title"`
}

// FrameworkMigrationRequest is the body of POST /api/ai/framework-migration.
type FrameworkMigrationRequest struct {
	ProjectPath   string         `json:"projectPath"`
	ProjectSource *ProjectSource `json:"projectSource,omitempty"`
	Target        string         `json:"target,omitempty"` // "flutter" or "react"
}

// AngularToReactRequest is the body of POST /api/ai/angular-to-react.
type AngularToReactRequest struct {
	ComponentTS  string `json:"componentTs"`
	TemplateHTML string `json:"templateHtml"`
	Styles       string `json:"styles"`
	ServiceCode  string `json:"serviceCode,omitempty"`
}

// WarningsResponse is returned by GET /api/project/warnings.
type WarningsResponse struct {
	Warnings     []Warning   `json:"warnings"`
	Skipped      []FileIssue `json:"skipped,omitempty"`
	InvalidRules []RuleIssue `json:"invalidRules,omitempty"`
	RuleCount    int         `json:"ruleCount"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
