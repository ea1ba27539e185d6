package models

// ProjectFile is a source file collected for a prompt.
type ProjectFile struct {
	FilePath string `json:"filePath"` // relative, slash-separated
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Content  string `json:"content"`
}

// ProjectDigest is what the service knows about a project when building a
// whole-project prompt.
type ProjectDigest struct {
	ProjectPath string
	Files       []ProjectFile
	Skipped     []FileIssue
	Truncated   bool
}

// Paths lists the collected files in walk order.
func (d *ProjectDigest) Paths() []string {
	paths := make([]string, 0, len(d.Files))
	for _, f := range d.Files {
		paths = append(paths, f.FilePath)
	}
	return paths
}
