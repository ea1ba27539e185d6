package main

import (
	"errors"
	"net/http"
	"strings"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/backup"
	"ngmigrate/internal/models"
)

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "Uploaded archive is too large."})
			return
		}
		writeError(w, r, badRequest("upload project", "error parsing multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("project")
	if err != nil {
		writeError(w, r, badRequest("upload project", "no file was uploaded in field 'project'"))
		return
	}
	defer file.Close()

	res, err := s.workspace.Upload(file, header.Size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		models.UploadResult
	}{"Project successfully extracted.", res})
}

func (s *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	list, err := s.workspace.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) projectInfoHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	projectPath := r.URL.Query().Get("path")
	if projectPath == "" {
		writeError(w, r, badRequest("project info", "missing 'path' parameter"))
		return
	}
	info, err := s.workspace.Info(projectPath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) warningsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	projectPath := r.URL.Query().Get("path")
	if projectPath == "" {
		writeError(w, r, badRequest("warnings", "missing 'path' parameter"))
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

	// A missing project must not trigger a model call.
	root, err := s.workspace.ProjectDir(projectPath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	set, err := s.rules.GetRules(r.Context(), from, to, queryBool(r, "refresh"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.scanner.Scan(r.Context(), root, set)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.WarningsResponse{
		Warnings:     result.Warnings,
		Skipped:      result.Skipped,
		InvalidRules: result.InvalidRules,
		RuleCount:    len(set),
	})
}

func (s *Server) fileContentHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	projectPath, file := q.Get("path"), q.Get("file")
	if projectPath == "" || file == "" {
		writeError(w, r, badRequest("file content", "missing required query params: 'path' and 'file'"))
		return
	}
	code, err := s.workspace.FileContent(projectPath, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (s *Server) applySuggestionHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.ApplySuggestionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.FilePath == "" || req.CodeUpdated == "" {
		writeError(w, r, badRequest("apply suggestion", "missing required parameters: filePath and codeUpdated"))
		return
	}

	path, err := s.workspace.Resolve(req.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	record, err := s.applier.Apply(path, req.CodeUpdated)
	if err != nil {
		writeError(w, r, err)
		return
	}

	message := "File updated successfully."
	if record.Unchanged {
		message = "File already up to date."
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		models.BackupRecord
	}{message, record})
}

func (s *Server) listBackupsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	projectPath := r.URL.Query().Get("path")
	if projectPath == "" {
		writeError(w, r, badRequest("list backups", "missing 'path' parameter"))
		return
	}
	root, err := s.workspace.Resolve(projectPath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	backups, err := backup.ListBackups(root)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"backups": backups})
}

func (s *Server) restoreBackupHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.RestoreBackupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	// The suffix is checked before the path touches the filesystem.
	if !strings.HasSuffix(req.FilePath, backup.Suffix) {
		writeError(w, r, apperr.Newf(apperr.InvalidBackupPath, "restore backup", "a valid %s file is required for restoration", backup.Suffix).WithPath(req.FilePath))
		return
	}

	path, err := s.workspace.Resolve(req.FilePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	restored, err := s.applier.Restore(path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Backup restored successfully.",
		"restoredTo": restored,
	})
}

func (s *Server) verifyBuildHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req models.VerifyBuildRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Path == "" {
		writeError(w, r, badRequest("verify build", "missing project path"))
		return
	}
	res, err := s.workspace.VerifyBuild(r.Context(), req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
