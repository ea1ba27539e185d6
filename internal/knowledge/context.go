package knowledge

import (
	"fmt"
	"strings"

	"ngmigrate/internal/files"
	"ngmigrate/internal/models"
)

// Structure renders the collected paths as an indented tree.
func Structure(d *models.ProjectDigest) string {
	return files.RenderTree(d.Paths())
}

// FilesBlock renders every collected file with its path and type.
func FilesBlock(d *models.ProjectDigest) string {
	var sb strings.Builder
	for i, f := range d.Files {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "File: %s\nType: %s\nContent:\n%s", f.FilePath, f.FileType, f.Content)
	}
	if d.Truncated {
		sb.WriteString("\n\n(Some files were left out because the project is too large.)")
	}
	return sb.String()
}
