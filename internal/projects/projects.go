// Package projects manages the workspace of uploaded Angular projects.
package projects

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/files"
	"ngmigrate/internal/models"
)

const macOSMetadataDir = "__MACOSX"

// Options configures a Workspace.
type Options struct {
	BuildCommand []string
	BuildTimeout time.Duration
	MaxFileSize  int64

	// MaxExtractBytes caps the decompressed size of one archive. Zero means no cap.
	MaxExtractBytes int64
}

// Workspace owns the projects directory.
type Workspace struct {
	resolver *files.Resolver
	opts     Options
}

// NewWorkspace creates the projects directory if needed.
func NewWorkspace(root string, opts Options) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create projects dir %s: %w", root, err)
	}
	resolver, err := files.NewResolver(root)
	if err != nil {
		return nil, fmt.Errorf("resolve projects dir %s: %w", root, err)
	}
	if len(opts.BuildCommand) == 0 {
		opts.BuildCommand = []string{"npm", "run", "build"}
	}
	return &Workspace{resolver: resolver, opts: opts}, nil
}

// Root returns the absolute projects directory.
func (w *Workspace) Root() string { return w.resolver.Root() }

// Resolve maps a user-supplied path into the projects directory.
func (w *Workspace) Resolve(p string) (string, error) {
	return w.resolver.Resolve(p)
}

// ProjectDir resolves p and requires it to be an existing directory.
func (w *Workspace) ProjectDir(p string) (string, error) {
	dir, err := w.Resolve(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", apperr.Newf(apperr.NotFound, "open project", "project does not exist").WithPath(p)
	case err != nil:
		return "", apperr.New(apperr.FileSystemError, "open project", err).WithPath(dir)
	case !info.IsDir():
		return "", apperr.Newf(apperr.InvalidInput, "open project", "not a directory").WithPath(p)
	}
	return dir, nil
}

// Upload extracts a zip archive into a fresh project directory. Entries that
// would land outside it are rejected and nothing is kept.
func (w *Workspace) Upload(archive io.ReaderAt, size int64) (models.UploadResult, error) {
	const op = "upload project"

	zr, err := zip.NewReader(archive, size)
	if err != nil {
		return models.UploadResult{}, apperr.New(apperr.InvalidInput, op, fmt.Errorf("not a zip archive: %w", err))
	}

	id := uuid.New().String()
	dest := filepath.Join(w.Root(), id)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return models.UploadResult{}, apperr.New(apperr.FileSystemError, op, err).WithPath(dest)
	}

	count, err := extract(zr, dest, w.opts.MaxExtractBytes)
	if err != nil {
		os.RemoveAll(dest)
		return models.UploadResult{}, err
	}

	logrus.WithFields(logrus.Fields{"id": id, "files": count}).Info("Project successfully extracted")
	return models.UploadResult{ID: id, ProjectPath: dest, Files: count}, nil
}

func extract(zr *zip.Reader, dest string, budget int64) (int, error) {
	const op = "extract archive"
	count := 0
	remaining := budget

	for _, f := range zr.File {
		name := filepath.ToSlash(f.Name)
		if name == macOSMetadataDir || strings.HasPrefix(name, macOSMetadataDir+"/") {
			continue
		}
		if strings.HasPrefix(name, "/") || filepath.IsAbs(f.Name) || (len(name) > 1 && name[1] == ':') {
			return 0, apperr.Newf(apperr.InvalidInput, op, "absolute entry path %q", f.Name)
		}

		target := filepath.Join(dest, filepath.FromSlash(name))
		if !files.Within(dest, target) {
			return 0, apperr.Newf(apperr.InvalidInput, op, "entry %q escapes the project directory", f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return 0, apperr.New(apperr.FileSystemError, op, err).WithPath(target)
			}
		case mode&fs.ModeSymlink != 0:
			logrus.Warnf("Skipping symlink entry %s", f.Name)
		default:
			written, err := extractFile(f, target, remaining, budget > 0)
			if errors.Is(err, errExtractBudget) {
				return 0, apperr.Newf(apperr.InvalidInput, op, "archive expands beyond %d bytes", budget)
			}
			if err != nil {
				return 0, apperr.New(apperr.FileSystemError, op, err).WithPath(target)
			}
			remaining -= written
			count++
		}
	}
	return count, nil
}

var errExtractBudget = errors.New("extraction budget exceeded")

// extractFile writes one entry and returns the number of bytes written. When
// limited is set, at most remaining bytes may be written; the header's
// declared size is not trusted.
func extractFile(f *zip.File, target string, remaining int64, limited bool) (int64, error) {
	if limited && int64(f.UncompressedSize64) > remaining {
		return 0, errExtractBudget
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	perm := f.Mode().Perm() | 0o600
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}

	var n int64
	if limited {
		n, err = io.CopyN(out, rc, remaining+1)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if err == nil && n > remaining {
			err = errExtractBudget
		}
	} else {
		n, err = io.Copy(out, rc)
	}
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}

// List returns every project directory with the name of its first
// subdirectory, which is usually the folder that was zipped.
func (w *Workspace) List() ([]models.ProjectSummary, error) {
	entries, err := os.ReadDir(w.Root())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.ProjectSummary{}, nil
		}
		return nil, apperr.New(apperr.FileSystemError, "list projects", err).WithPath(w.Root())
	}

	projects := []models.ProjectSummary{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		summary := models.ProjectSummary{ID: e.Name(), OriginalFolder: "unknown"}
		children, err := os.ReadDir(filepath.Join(w.Root(), e.Name()))
		if err != nil {
			logrus.Warnf("Could not read project %s: %v", e.Name(), err)
		}
		for _, c := range children {
			if c.IsDir() && c.Name() != macOSMetadataDir {
				summary.OriginalFolder = c.Name()
				break
			}
		}
		projects = append(projects, summary)
	}
	return projects, nil
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Info reads the first package.json found in the project.
func (w *Workspace) Info(projectPath string) (models.ProjectInfo, error) {
	const op = "project info"

	dir, err := w.Resolve(projectPath)
	if err != nil {
		return models.ProjectInfo{}, err
	}
	pkgPath, err := files.FindPackageJSON(dir)
	if err != nil {
		return models.ProjectInfo{}, err
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return models.ProjectInfo{}, apperr.New(apperr.FileSystemError, op, err).WithPath(pkgPath)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return models.ProjectInfo{}, apperr.New(apperr.FileSystemError, op, fmt.Errorf("failed to read package.json: %w", err)).WithPath(pkgPath)
	}
	if pkg.Dependencies == nil {
		pkg.Dependencies = map[string]string{}
	}

	version, ok := pkg.Dependencies["@angular/core"]
	if !ok {
		version = "Not detected"
	}
	return models.ProjectInfo{
		Version:         version,
		AngularMajor:    MajorVersion(version),
		Dependencies:    pkg.Dependencies,
		DevDependencies: pkg.DevDependencies,
		Path:            pkgPath,
	}, nil
}

// MajorVersion extracts the major version from an npm range such as
// "^15.2.0" or "~14.0.0". It returns 0 when none can be read.
func MajorVersion(version string) int {
	s := strings.TrimLeft(strings.TrimSpace(version), "^~>=<v ")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// FileContent reads a file relative to the project directory.
func (w *Workspace) FileContent(projectPath, file string) (string, error) {
	dir, err := w.Resolve(projectPath)
	if err != nil {
		return "", err
	}
	full, err := w.resolver.Join(dir, file)
	if err != nil {
		return "", err
	}
	return files.ReadFileContent(full, w.opts.MaxFileSize)
}

// VerifyBuild runs the build command inside the project. A failing build is
// reported in the result, not as an error.
func (w *Workspace) VerifyBuild(ctx context.Context, projectPath string) (models.BuildResult, error) {
	dir, err := w.ProjectDir(projectPath)
	if err != nil {
		return models.BuildResult{}, err
	}

	if w.opts.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.BuildTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, w.opts.BuildCommand[0], w.opts.BuildCommand[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second
	logrus.WithField("dir", dir).Infof("Running %s", strings.Join(w.opts.BuildCommand, " "))

	out, err := cmd.CombinedOutput()
	if err != nil {
		output := string(out)
		if ctx.Err() != nil {
			output += fmt.Sprintf("\nbuild timed out after %s", w.opts.BuildTimeout)
		} else if output == "" {
			output = err.Error()
		}
		logrus.WithError(err).Warn("Build failed")
		return models.BuildResult{Success: false, Output: output}, nil
	}
	return models.BuildResult{Success: true, Output: string(out)}, nil
}
