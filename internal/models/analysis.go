package models

// MigrationSuggestion is the model's rewrite of a single flagged file.
type MigrationSuggestion struct {
	CodeUpdated     string `json:"codeUpdated"`
	Explanation     string `json:"explanation"`
	SuggestedPrompt string `json:"suggestedPrompt"`
}

// AuditFix is the model's remediation for a vulnerable dependency.
type AuditFix struct {
	Fix         string `json:"fix"`
	Explanation string `json:"explanation"`
}

// GeneratedFile is one file of a migrated project proposed by the model.
type GeneratedFile struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Content  string `json:"content"`
}

// FrameworkMigration is the model's proposal for a whole-project migration.
type FrameworkMigration struct {
	ProjectStructure string          `json:"projectStructure"`
	FileList         []GeneratedFile `json:"fileList"`
	MigrationNotes   string          `json:"migrationNotes"`
	Dependencies     string          `json:"dependencies"`
}

// ReactConversion is the model's conversion of one Angular component.
type ReactConversion struct {
	ReactComponent string `json:"reactComponent"`
	Explanation    string `json:"explanation"`
}

// ProjectSource tells the framework migration where the project comes from.
type ProjectSource struct {
	Type   string `json:"type"` // "upload" or "git"
	GitURL string `json:"gitUrl,omitempty"`
}
