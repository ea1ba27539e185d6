package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"ngmigrate/config"
	"ngmigrate/internal/apperr"
	"ngmigrate/internal/backup"
	"ngmigrate/internal/files"
	"ngmigrate/internal/knowledge"
	"ngmigrate/internal/llm"
	"ngmigrate/internal/models"
	"ngmigrate/internal/projects"
	"ngmigrate/internal/rules"
	"ngmigrate/internal/scanner"
	"ngmigrate/internal/suggest"
)

// Server wires the services to the HTTP routes.
type Server struct {
	workspace      *projects.Workspace
	rules          *rules.Provider
	scanner        *scanner.Scanner
	applier        *backup.Applier
	suggest        *suggest.Service
	maxUploadBytes int64
}

// NewServerFromConfig builds every service from cfg. A missing model backend
// is logged; the AI routes then fail with an upstream error.
func NewServerFromConfig(cfg *config.Config) (*Server, func(), error) {
	client, err := llm.NewClient(llm.Config{
		Backend:         cfg.LLM.Backend,
		Model:           cfg.LLM.Model,
		Host:            cfg.LLM.Host,
		APIKey:          cfg.LLM.APIKey,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		MaxPromptLength: cfg.Analysis.MaxPromptLength,
	})
	if err != nil {
		logrus.Warnf("Model backend unavailable, AI routes will fail: %v", err)
		client = nil
	}

	cache, err := rules.NewCache(cfg.Rules.Store, cfg.Rules.Dir, cfg.Rules.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open rule cache: %w", err)
	}
	cleanup := func() {}
	if c, ok := cache.(io.Closer); ok {
		cleanup = func() {
			if err := c.Close(); err != nil {
				logrus.Warnf("Closing rule cache: %v", err)
			}
		}
	}

	workspace, err := projects.NewWorkspace(cfg.Projects.Root, projects.Options{
		BuildCommand:    cfg.Projects.BuildCommand,
		BuildTimeout:    cfg.Projects.BuildTimeout,
		MaxFileSize:     cfg.Analysis.MaxFileReadSize,
		MaxExtractBytes: cfg.Projects.MaxExtractBytes,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	explorer := files.NewExplorer(cfg.Explorer, cfg.Scan.IgnoreGlobs)
	digests := knowledge.NewBuilder(explorer, cfg.Analysis.MaxFileReadSize, cfg.Analysis.MaxPromptLength)

	return &Server{
		workspace: workspace,
		rules:     rules.NewProvider(cache, client, cfg.LLM.Timeout),
		scanner:   scanner.New(cfg.Scan.IgnoreGlobs),
		applier:   backup.NewApplier(),
		suggest: suggest.NewService(client, digests, suggest.Options{
			Timeout:       cfg.LLM.Timeout,
			TargetVersion: cfg.Analysis.DefaultTargetVersion,
			DefaultTarget: cfg.Analysis.DefaultMigrationGoal,
		}),
		maxUploadBytes: cfg.Server.MaxUploadBytes,
	}, cleanup, nil
}

// Routes registers every handler behind the CORS middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, corsMiddleware(h))
	}

	handle("/health", healthCheckHandler)

	handle("/api/project/upload", s.uploadHandler)
	handle("/api/project/list", s.listProjectsHandler)
	handle("/api/project/info", s.projectInfoHandler)
	handle("/api/project/warnings", s.warningsHandler)
	handle("/api/project/file", s.fileContentHandler)
	handle("/api/project/apply-suggestion", s.applySuggestionHandler)
	handle("/api/project/backups", s.listBackupsHandler)
	handle("/api/project/restore-backup", s.restoreBackupHandler)
	handle("/api/project/verify-build", s.verifyBuildHandler)

	handle("/api/ai/rules", s.rulesHandler)
	handle("/api/ai/suggest", s.suggestHandler)
	handle("/api/ai/audit-fix", s.auditFixHandler)
	handle("/api/ai/framework-migration", s.frameworkMigrationHandler)
	handle("/api/ai/framework-migration/stream", s.frameworkMigrationStreamHandler)
	handle("/api/ai/angular-to-react", s.angularToReactHandler)

	return mux
}

// CORS middleware to handle cross-origin requests
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Cache-Control")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: fmt.Sprintf("Only %s method is allowed", method)})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("Writing response: %v", err)
	}
}

// writeError maps err to a status code and the uniform error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	entry := logrus.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.Debugf("Request rejected: %v", err)
	}
	writeJSON(w, status, models.ErrorResponse{Error: err.Error(), Details: apperr.DetailsOf(err)})
}

func badRequest(op, format string, args ...any) error {
	return apperr.Newf(apperr.InvalidInput, op, format, args...)
}

// decodeBody reads a JSON request body into dest.
func decodeBody(r *http.Request, dest any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("decode request", "request body is empty")
		}
		return badRequest("decode request", "invalid JSON body: %v", err)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, badRequest("parse query", "missing '%s' parameter", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("parse query", "'%s' must be an integer, got %q", name, raw)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
