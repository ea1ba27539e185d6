// Package suggest asks the model for code rewrites: single-file Angular
// upgrades, dependency audit fixes and whole-project framework migrations.
package suggest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/knowledge"
	"ngmigrate/internal/llm"
	"ngmigrate/internal/models"
	"ngmigrate/internal/prompts"
)

// Source types for framework migrations.
const (
	SourceUpload = "upload"
	SourceGit    = "git"
)

// ProgressFunc receives progress updates from long-running operations.
type ProgressFunc func(step, message string)

// Options configures a Service.
type Options struct {
	Timeout       time.Duration
	TargetVersion int
	DefaultTarget string
}

// Service calls the model and decodes its replies.
type Service struct {
	client  llm.Client
	digests *knowledge.Builder
	opts    Options
}

// NewService creates a suggestion service.
func NewService(client llm.Client, digests *knowledge.Builder, opts Options) *Service {
	if opts.DefaultTarget == "" {
		opts.DefaultTarget = prompts.TargetFlutter
	}
	return &Service{client: client, digests: digests, opts: opts}
}

// complete sends one prompt and decodes the JSON reply into dest. It returns
// the raw reply so callers can fall back when decoding fails.
func (s *Service) complete(ctx context.Context, op, system, prompt string, dest any) (string, error) {
	if s.client == nil {
		return "", apperr.Newf(apperr.UpstreamUnavailable, op, "no model backend configured")
	}
	callCtx, cancel := llm.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	logrus.WithFields(logrus.Fields{"op": op, "backend": s.client.Backend(), "model": s.client.Model()}).Debug("Calling model")
	reply, err := s.client.Complete(callCtx, system, prompt)
	if err != nil {
		return "", err
	}
	if err := llm.Decode(reply, dest); err != nil {
		var perr *llm.ParseError
		if errors.As(err, &perr) {
			return reply, apperr.New(apperr.InvalidUpstreamResponse, op, err).WithDetails(perr.Raw)
		}
		return reply, apperr.New(apperr.InvalidUpstreamResponse, op, err)
	}
	return reply, nil
}

func required(op string, fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apperr.Newf(apperr.InvalidInput, op, "missing required parameters: %s", strings.Join(missing, ", "))
}

// SuggestMigration asks for an upgraded version of one flagged file. When the
// reply is not JSON the first fenced code block is used as the new code.
func (s *Service) SuggestMigration(ctx context.Context, req models.SuggestRequest) (*models.MigrationSuggestion, error) {
	const op = "suggest migration"
	if err := required(op, map[string]string{"fileName": req.FileName, "code": req.Code, "warning": req.Warning}); err != nil {
		return nil, err
	}
	target := req.TargetVersion
	if target <= 0 {
		target = s.opts.TargetVersion
	}

	var out models.MigrationSuggestion
	reply, err := s.complete(ctx, op, prompts.MigrationSystem, prompts.FileMigration(req.FileName, req.Code, req.Warning, target), &out)
	if err != nil {
		if !apperr.IsKind(err, apperr.InvalidUpstreamResponse) {
			return nil, err
		}
		code, rest, ok := llm.ExtractCodeBlock(reply)
		if !ok {
			return nil, err
		}
		logrus.Warnf("Model reply for %s was not JSON, using its code block", req.FileName)
		return &models.MigrationSuggestion{CodeUpdated: code, Explanation: rest}, nil
	}
	if out.CodeUpdated == "" {
		return nil, apperr.Newf(apperr.InvalidUpstreamResponse, op, "reply has no codeUpdated").WithDetails(reply)
	}
	return &out, nil
}

// AuditFix asks how to remediate a vulnerable dependency.
func (s *Service) AuditFix(ctx context.Context, req models.AuditFixRequest) (*models.AuditFix, error) {
	const op = "audit fix"
	if err := required(op, map[string]string{"module": req.Module, "title": req.Title}); err != nil {
		return nil, err
	}

	var out models.AuditFix
	if _, err := s.complete(ctx, op, prompts.AuditSystem, prompts.AuditFix(req.Module, req.Title), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AngularToReact converts one component.
func (s *Service) AngularToReact(ctx context.Context, req models.AngularToReactRequest) (*models.ReactConversion, error) {
	const op = "angular to react"
	if err := required(op, map[string]string{"componentTs": req.ComponentTS, "templateHtml": req.TemplateHTML}); err != nil {
		return nil, err
	}

	var out models.ReactConversion
	prompt := prompts.AngularToReact(req.ComponentTS, req.TemplateHTML, req.Styles, req.ServiceCode)
	if _, err := s.complete(ctx, op, prompts.ComponentSystem, prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
