package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ngmigrate/config"
	"ngmigrate/internal/apperr"
	"ngmigrate/internal/backup"
	"ngmigrate/internal/files"
	"ngmigrate/internal/knowledge"
	"ngmigrate/internal/models"
	"ngmigrate/internal/projects"
	"ngmigrate/internal/prompts"
	"ngmigrate/internal/rules"
	"ngmigrate/internal/scanner"
	"ngmigrate/internal/suggest"
)

const httpRules = `[{"title":"Legacy Http","reason":"removed","fileTypes":[".ts"],"pattern":"@angular/http","recommendation":"Use HttpClient"}]`

type fakeClient struct {
	respond func(system, prompt string) (string, error)
	calls   int
}

func (f *fakeClient) Complete(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	return f.respond(system, prompt)
}

func (f *fakeClient) Model() string   { return "fake" }
func (f *fakeClient) Backend() string { return "fake" }

func defaultResponder(system, _ string) (string, error) {
	switch system {
	case prompts.RulesSystem:
		return httpRules, nil
	case prompts.MigrationSystem:
		return `{"codeUpdated":"new code","explanation":"why","suggestedPrompt":"next"}`, nil
	case prompts.AuditSystem:
		return `{"fix":"npm install x@latest","explanation":"patched"}`, nil
	default:
		return `{"projectStructure":"lib/","fileList":[],"migrationNotes":"n","dependencies":"d"}`, nil
	}
}

func newTestServer(t *testing.T, client *fakeClient) (*Server, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "projects")
	ws, err := projects.NewWorkspace(root, projects.Options{BuildCommand: []string{"sh", "-c", "echo ok"}, BuildTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	digests := knowledge.NewBuilder(files.NewExplorer(config.Default().Explorer, nil), 1<<16, 0)
	return &Server{
		workspace:      ws,
		rules:          rules.NewProvider(rules.NewMemoryCache(), client, time.Second),
		scanner:        scanner.New(nil),
		applier:        backup.NewApplier(),
		suggest:        suggest.NewService(client, digests, suggest.Options{Timeout: time.Second, TargetVersion: 17}),
		maxUploadBytes: 1 << 20,
	}, ws.Root()
}

func writeProjectFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return full
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndCORS(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{respond: defaultResponder})
	h := s.Routes()

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	rec = do(t, h, http.MethodOptions, "/api/project/apply-suggestion", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("preflight = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/project/apply-suggestion", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method = %d", rec.Code)
	}
}

func TestUploadListInfo(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{respond: defaultResponder})
	h := s.Routes()

	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	w, _ := zw.Create("shop/package.json")
	w.Write([]byte(`{"dependencies":{"@angular/core":"~14.2.0"}}`))
	zw.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("project", "shop.zip")
	part.Write(archive.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/project/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body.String())
	}
	uploaded := decode[models.UploadResult](t, rec)

	rec = do(t, h, http.MethodGet, "/api/project/list", nil)
	list := decode[[]models.ProjectSummary](t, rec)
	if len(list) != 1 || list[0].OriginalFolder != "shop" {
		t.Errorf("list = %+v", list)
	}

	rec = do(t, h, http.MethodGet, "/api/project/info?path="+uploaded.ID, nil)
	info := decode[models.ProjectInfo](t, rec)
	if rec.Code != http.StatusOK || info.AngularMajor != 14 {
		t.Errorf("info = %d %+v", rec.Code, info)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{respond: defaultResponder})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/project/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("upload without file = %d", rec.Code)
	}
}

func TestWarnings(t *testing.T) {
	client := &fakeClient{respond: defaultResponder}
	s, root := newTestServer(t, client)
	h := s.Routes()
	writeProjectFile(t, root, "p1/src/app.service.ts", "import { Http } from '@angular/http';")
	writeProjectFile(t, root, "p1/src/app.component.html", "@angular/http")

	rec := do(t, h, http.MethodGet, "/api/project/warnings?path=p1&from=4&to=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("warnings = %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.WarningsResponse](t, rec)
	if len(resp.Warnings) != 1 || resp.Warnings[0].FilePath != "src/app.service.ts" {
		t.Errorf("warnings = %+v", resp.Warnings)
	}
	if resp.Warnings[0].Description != "Legacy Http: Use HttpClient" || resp.RuleCount != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}

	do(t, h, http.MethodGet, "/api/project/warnings?path=p1&from=4&to=5", nil)
	if client.calls != 1 {
		t.Errorf("rules fetched %d times, want 1", client.calls)
	}
}

func TestWarnings_Errors(t *testing.T) {
	client := &fakeClient{respond: defaultResponder}
	s, root := newTestServer(t, client)
	h := s.Routes()
	writeProjectFile(t, root, "p1/src/app.ts", "x")
	writeProjectFile(t, root, "notes.txt", "x")

	testCases := []struct {
		name   string
		target string
		status int
	}{
		{"missing path", "/api/project/warnings?from=1&to=2", http.StatusBadRequest},
		{"missing to", "/api/project/warnings?path=p1&from=1", http.StatusBadRequest},
		{"bad from", "/api/project/warnings?path=p1&from=x&to=2", http.StatusBadRequest},
		{"negative version", "/api/project/warnings?path=p1&from=-1&to=2", http.StatusBadRequest},
		{"outside root", "/api/project/warnings?path=../..&from=1&to=2", http.StatusForbidden},
		{"missing project", "/api/project/warnings?path=nope&from=1&to=2", http.StatusNotFound},
		{"project is a file", "/api/project/warnings?path=notes.txt&from=1&to=2", http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tc.target, nil)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if resp := decode[models.ErrorResponse](t, rec); resp.Error == "" {
				t.Error("error body should carry a message")
			}
		})
	}
	if client.calls != 0 {
		t.Errorf("rejected requests reached the model %d times", client.calls)
	}
}

func TestApplyRestoreBackups(t *testing.T) {
	s, root := newTestServer(t, &fakeClient{respond: defaultResponder})
	h := s.Routes()
	file := writeProjectFile(t, root, "p1/src/app.ts", "old")

	rec := do(t, h, http.MethodPost, "/api/project/apply-suggestion", models.ApplySuggestionRequest{FilePath: "p1/src/app.ts", CodeUpdated: "new"})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply = %d %s", rec.Code, rec.Body.String())
	}
	record := decode[models.BackupRecord](t, rec)
	if !strings.HasSuffix(record.BackupPath, filepath.Join("p1", "src", "app.ts.bak")) {
		t.Errorf("backup = %q", record.BackupPath)
	}
	if got, _ := os.ReadFile(file); string(got) != "new" {
		t.Errorf("file = %q", got)
	}

	rec = do(t, h, http.MethodGet, "/api/project/backups?path=p1", nil)
	backups := decode[map[string][]string](t, rec)["backups"]
	if len(backups) != 1 || !strings.HasSuffix(backups[0], "app.ts.bak") {
		t.Errorf("backups = %v", backups)
	}

	rec = do(t, h, http.MethodPost, "/api/project/restore-backup", models.RestoreBackupRequest{FilePath: "p1/src/app.ts"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("restore without suffix = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/project/restore-backup", models.RestoreBackupRequest{FilePath: record.BackupPath})
	if rec.Code != http.StatusOK {
		t.Fatalf("restore = %d %s", rec.Code, rec.Body.String())
	}
	if got, _ := os.ReadFile(file); string(got) != "old" {
		t.Errorf("restored file = %q", got)
	}
}

func TestApply_Errors(t *testing.T) {
	s, _ := newTestServer(t, &fakeClient{respond: defaultResponder})
	h := s.Routes()

	testCases := []struct {
		name   string
		body   any
		status int
	}{
		{"missing fields", models.ApplySuggestionRequest{FilePath: "p1/a.ts"}, http.StatusBadRequest},
		{"missing file", models.ApplySuggestionRequest{FilePath: "p1/a.ts", CodeUpdated: "x"}, http.StatusNotFound},
		{"outside root", models.ApplySuggestionRequest{FilePath: "/etc/hosts", CodeUpdated: "x"}, http.StatusForbidden},
		{"bad json", "not an object", http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/project/apply-suggestion", tc.body)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestFileContentAndVerifyBuild(t *testing.T) {
	s, root := newTestServer(t, &fakeClient{respond: defaultResponder})
	h := s.Routes()
	writeProjectFile(t, root, "p1/src/main.ts", "bootstrap()")

	rec := do(t, h, http.MethodGet, "/api/project/file?path=p1&file=src/main.ts", nil)
	if got := decode[map[string]string](t, rec)["code"]; got != "bootstrap()" {
		t.Errorf("code = %q", got)
	}

	rec = do(t, h, http.MethodPost, "/api/project/verify-build", models.VerifyBuildRequest{Path: "p1"})
	res := decode[models.BuildResult](t, rec)
	if rec.Code != http.StatusOK || !res.Success || !strings.Contains(res.Output, "ok") {
		t.Errorf("verify = %d %+v", rec.Code, res)
	}

	rec = do(t, h, http.MethodPost, "/api/project/verify-build", models.VerifyBuildRequest{Path: "../../.."})
	if rec.Code != http.StatusForbidden {
		t.Errorf("verify outside = %d", rec.Code)
	}
}

func TestAIRoutes(t *testing.T) {
	s, root := newTestServer(t, &fakeClient{respond: defaultResponder})
	h := s.Routes()
	writeProjectFile(t, root, "p1/src/main.ts", "bootstrap()")

	rec := do(t, h, http.MethodGet, "/api/ai/rules?from=4&to=5", nil)
	if got := decode[map[string]models.RuleSet](t, rec)["rules"]; len(got) != 1 {
		t.Errorf("rules = %+v", got)
	}

	rec = do(t, h, http.MethodPost, "/api/ai/suggest", models.SuggestRequest{FileName: "a.ts", Code: "x", Warning: "w"})
	if got := decode[models.MigrationSuggestion](t, rec); got.CodeUpdated != "new code" {
		t.Errorf("suggest = %+v", got)
	}

	rec = do(t, h, http.MethodPost, "/api/ai/audit-fix", models.AuditFixRequest{Module: "x", Title: "t"})
	if got := decode[models.AuditFix](t, rec); got.Fix != "npm install x@latest" {
		t.Errorf("audit fix = %+v", got)
	}

	rec = do(t, h, http.MethodPost, "/api/ai/audit-fix", models.AuditFixRequest{Module: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("audit fix without title = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/ai/framework-migration", models.FrameworkMigrationRequest{ProjectPath: "p1"})
	if got := decode[models.FrameworkMigration](t, rec); rec.Code != http.StatusOK || got.Dependencies != "d" {
		t.Errorf("framework migration = %d %+v", rec.Code, got)
	}
}

func TestAIRoutes_UpstreamFailure(t *testing.T) {
	client := &fakeClient{respond: func(string, string) (string, error) {
		return "", apperr.Newf(apperr.UpstreamUnavailable, "fake", "status 502").WithDetails("bad gateway")
	}}
	s, _ := newTestServer(t, client)

	rec := do(t, s.Routes(), http.MethodPost, "/api/ai/suggest", models.SuggestRequest{FileName: "a.ts", Code: "x", Warning: "w"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[models.ErrorResponse](t, rec)
	if resp.Details != "bad gateway" {
		t.Errorf("details = %v", resp.Details)
	}
}

func TestFrameworkMigrationStream(t *testing.T) {
	s, root := newTestServer(t, &fakeClient{respond: defaultResponder})
	writeProjectFile(t, root, "p1/src/main.ts", "bootstrap()")

	rec := do(t, s.Routes(), http.MethodPost, "/api/ai/framework-migration/stream", models.FrameworkMigrationRequest{ProjectPath: "p1", Target: "react"})
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	var events []ProgressEvent
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatal(err)
		}
		events = append(events, ev)
	}
	if len(events) < 3 {
		t.Fatalf("expected several events, got %+v", events)
	}
	last := events[len(events)-1]
	if last.Type != "result" || !strings.Contains(last.Data, `"dependencies":"d"`) {
		t.Errorf("last event = %+v", last)
	}

	rec = do(t, s.Routes(), http.MethodPost, "/api/ai/framework-migration/stream", models.FrameworkMigrationRequest{})
	if !strings.Contains(rec.Body.String(), `"type":"error"`) || !strings.Contains(rec.Body.String(), `"status":400`) {
		t.Errorf("error stream = %s", rec.Body.String())
	}
}

func TestNewServerFromConfig_NoBackend(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Backend = "disabled"
	cfg.Rules.Store = rules.StoreMemory
	cfg.Projects.Root = filepath.Join(t.TempDir(), "projects")

	s, cleanup, err := NewServerFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	rec := do(t, s.Routes(), http.MethodGet, "/api/ai/rules?from=1&to=2", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
