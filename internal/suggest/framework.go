package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/knowledge"
	"ngmigrate/internal/models"
	"ngmigrate/internal/prompts"
)

// FrameworkMigration asks for the whole project rewritten for another
// framework. projectPath must already be resolved by the caller. progress
// may be nil.
func (s *Service) FrameworkMigration(ctx context.Context, projectPath string, req models.FrameworkMigrationRequest, progress ProgressFunc) (*models.FrameworkMigration, error) {
	const op = "framework migration"
	if progress == nil {
		progress = func(string, string) {}
	}

	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = s.opts.DefaultTarget
	}
	if target != prompts.TargetFlutter && target != prompts.TargetReact {
		return nil, apperr.Newf(apperr.InvalidInput, op, "unsupported target %q (want flutter or react)", req.Target)
	}

	source := models.ProjectSource{Type: SourceUpload}
	if req.ProjectSource != nil {
		source = *req.ProjectSource
	}

	var instruction string
	switch source.Type {
	case SourceGit:
		if strings.TrimSpace(source.GitURL) == "" {
			return nil, apperr.Newf(apperr.InvalidInput, op, "gitUrl is required for git sources")
		}
		instruction = prompts.GitSource(source.GitURL)

	case SourceUpload, "":
		progress("collect", "Reading project files...")
		digest, err := s.digests.Build(ctx, projectPath)
		if err != nil {
			return nil, err
		}
		if len(digest.Files) == 0 {
			return nil, apperr.Newf(apperr.InvalidInput, op, "no migratable files found in project").WithPath(projectPath)
		}
		progress("collect", fmt.Sprintf("Collected %d files", len(digest.Files)))
		instruction = prompts.UploadedSource(knowledge.Structure(digest), knowledge.FilesBlock(digest))

	default:
		return nil, apperr.Newf(apperr.InvalidInput, op, "unknown project source %q", source.Type)
	}

	progress("generate", fmt.Sprintf("Asking the model for a %s migration...", target))
	logrus.WithFields(logrus.Fields{"project": projectPath, "target": target, "source": source.Type}).Info("Starting framework migration")

	var out models.FrameworkMigration
	if _, err := s.complete(ctx, op, prompts.SystemFor(target), prompts.FrameworkMigration(target, instruction), &out); err != nil {
		return nil, err
	}
	if out.FileList == nil {
		out.FileList = []models.GeneratedFile{}
	}

	progress("parse", fmt.Sprintf("Received %d generated files", len(out.FileList)))
	return &out, nil
}
