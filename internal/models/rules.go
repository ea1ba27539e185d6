package models

// MigrationRule describes one deprecated pattern to look for. Rules come from
// the model or from the rule cache and are treated as untrusted input.
type MigrationRule struct {
	Title          string   `json:"title"`
	Reason         string   `json:"reason"`
	FileTypes      []string `json:"fileTypes"`
	Pattern        string   `json:"pattern"`
	Recommendation string   `json:"recommendation"`
}

// RuleSet is the ordered list of rules for one (from, to) version pair.
type RuleSet []MigrationRule

// Warning is one (file, rule) match produced by a scan.
type Warning struct {
	FilePath    string `json:"filePath"`
	Description string `json:"description"`
}

// FileIssue records a file the scanner had to skip.
type FileIssue struct {
	FilePath string `json:"filePath"`
	Reason   string `json:"reason"`
}

// RuleIssue records a rule whose pattern could not be compiled.
type RuleIssue struct {
	Title   string `json:"title"`
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// BackupRecord describes the result of applying new content to a file. The
// backup file itself is the record; there is no separate index.
type BackupRecord struct {
	FilePath   string `json:"filePath"`
	BackupPath string `json:"backup"`
	Diff       string `json:"diff,omitempty"`
	Unchanged  bool   `json:"unchanged,omitempty"`
}
