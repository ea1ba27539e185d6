package models

// ProjectSummary identifies an uploaded project.
type ProjectSummary struct {
	ID             string `json:"id"`
	OriginalFolder string `json:"originalFolder"`
}

// UploadResult is returned once an archive has been extracted.
type UploadResult struct {
	ID          string `json:"id"`
	ProjectPath string `json:"projectPath"`
	Files       int    `json:"files"`
}

// ProjectInfo is what package.json says about the project.
type ProjectInfo struct {
	Version         string            `json:"version"`
	AngularMajor    int               `json:"angularMajor"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
	Path            string            `json:"path"`
}

// BuildResult is the outcome of running the project's build command.
type BuildResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}
