package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"ngmigrate/internal/models"
	"ngmigrate/internal/suggest"
)

func (s *Server) rulesHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	from, err := queryInt(r, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := queryInt(r, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	set, err := s.rules.GetRules(r.Context(), from, to, queryBool(r, "refresh"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.RuleSet{"rules": set})
}

func (s *Server) suggestHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.SuggestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.suggest.SuggestMigration(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) auditFixHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.AuditFixRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.suggest.AuditFix(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) angularToReactHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.AngularToReactRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.suggest.AngularToReact(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// frameworkRequest decodes and resolves a framework migration request. Git
// sources skip path resolution since the project is referenced by URL.
func (s *Server) frameworkRequest(r *http.Request) (models.FrameworkMigrationRequest, string, error) {
	var req models.FrameworkMigrationRequest
	if err := decodeBody(r, &req); err != nil {
		return req, "", err
	}
	if req.ProjectPath == "" {
		return req, "", badRequest("framework migration", "missing required parameter: projectPath")
	}
	if req.ProjectSource != nil && req.ProjectSource.Type == suggest.SourceGit {
		return req, req.ProjectPath, nil
	}
	path, err := s.workspace.Resolve(req.ProjectPath)
	return req, path, err
}

func (s *Server) frameworkMigrationHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	req, path, err := s.frameworkRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.suggest.FrameworkMigration(r.Context(), path, req, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) frameworkMigrationStreamHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	// Set headers for Server-Sent Events
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	req, path, err := s.frameworkRequest(r)
	if err != nil {
		sendSSEError(w, err)
		return
	}

	sendSSEEvent(w, ProgressEvent{Type: "progress", Step: "start", Message: "Starting framework migration..."})

	res, err := s.suggest.FrameworkMigration(r.Context(), path, req, func(step, message string) {
		sendSSEEvent(w, ProgressEvent{Type: "step", Step: step, Message: message})
	})
	if err != nil {
		if r.Context().Err() != nil {
			logrus.Infof("Client went away during framework migration: %v", context.Cause(r.Context()))
			return
		}
		sendSSEError(w, err)
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		sendSSEError(w, fmt.Errorf("encode result: %w", err))
		return
	}
	sendSSEEvent(w, ProgressEvent{Type: "result", Step: "complete", Message: "Migration completed successfully!", Data: string(data)})
}
