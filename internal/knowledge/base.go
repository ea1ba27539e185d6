// Package knowledge gathers the project files that are sent to the model for
// whole-project migrations.
package knowledge

import (
	"context"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/files"
	"ngmigrate/internal/models"
)

// Builder collects project files into a digest bounded by a character budget.
type Builder struct {
	explorer    *files.Explorer
	maxFileSize int64
	budget      int
}

// NewBuilder creates a builder. budget <= 0 disables the cap.
func NewBuilder(explorer *files.Explorer, maxFileSize int64, budget int) *Builder {
	return &Builder{explorer: explorer, maxFileSize: maxFileSize, budget: budget}
}

// Build reads every included file under projectPath. Files that cannot be
// read are listed in Skipped. Once the budget is spent the remaining files
// are left out and Truncated is set.
func (b *Builder) Build(ctx context.Context, projectPath string) (*models.ProjectDigest, error) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		logrus.Warnf("Could not resolve absolute path for %s: %v", projectPath, err)
		absPath = projectPath
	}

	paths, err := b.explorer.CollectProjectFiles(absPath)
	if err != nil {
		return nil, apperr.New(apperr.NotFound, "collect project files", err).WithPath(projectPath)
	}

	digest := &models.ProjectDigest{ProjectPath: absPath, Files: []models.ProjectFile{}}
	used := 0
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := files.ReadFileContent(filepath.Join(absPath, filepath.FromSlash(rel)), b.maxFileSize)
		if err != nil {
			digest.Skipped = append(digest.Skipped, models.FileIssue{FilePath: rel, Reason: err.Error()})
			continue
		}
		if b.budget > 0 && used+len(content) > b.budget {
			digest.Truncated = true
			logrus.Warnf("Project digest budget of %d characters reached at %s, %d files left out", b.budget, rel, len(paths)-len(digest.Files)-len(digest.Skipped))
			break
		}
		used += len(content)
		digest.Files = append(digest.Files, models.ProjectFile{
			FilePath: rel,
			FileName: path.Base(rel),
			FileType: path.Ext(rel),
			Content:  content,
		})
	}

	logrus.Infof("Collected %d files (%d characters) from %s", len(digest.Files), used, absPath)
	return digest, nil
}
