package files

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
)

// Resolver maps user-supplied paths onto the projects directory and rejects
// anything that would land outside it.
type Resolver struct {
	root string
}

// NewResolver creates a resolver rooted at root. The root is stored with its
// symlinks resolved so it compares equal to resolved request paths.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Resolver{root: resolveExisting(filepath.Clean(abs))}, nil
}

// Root returns the absolute projects directory.
func (r *Resolver) Root() string { return r.root }

// Resolve returns the absolute, cleaned form of p. Relative paths are taken
// from the projects directory. Symlinks are resolved up to the deepest
// existing ancestor, so a missing file still gets its real location.
func (r *Resolver) Resolve(p string) (string, error) {
	const op = "resolve path"
	if strings.TrimSpace(p) == "" {
		return "", apperr.Newf(apperr.InvalidInput, op, "path is required")
	}

	if !filepath.IsAbs(p) {
		p = filepath.Join(r.root, p)
	}
	p = resolveExisting(filepath.Clean(p))

	if !Within(r.root, p) {
		logrus.Warnf("Rejected path outside projects directory: %s", p)
		return "", apperr.Newf(apperr.Forbidden, op, "access outside the projects directory is not allowed").WithPath(p)
	}
	return p, nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of p and
// appends the missing remainder unchanged.
func resolveExisting(p string) string {
	cur, rest := p, ""
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// Join resolves name inside the already-resolved base directory.
func (r *Resolver) Join(base, name string) (string, error) {
	const op = "resolve path"
	if filepath.IsAbs(name) {
		return "", apperr.Newf(apperr.InvalidInput, op, "file must be relative to the project").WithPath(name)
	}
	full := filepath.Join(base, name)
	if !Within(base, full) {
		return "", apperr.Newf(apperr.Forbidden, op, "file escapes the project directory").WithPath(name)
	}
	return r.Resolve(full)
}

// Within reports whether target is root or lies below it. Both must be clean.
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// FindPackageJSON returns the first package.json found depth-first under
// root, skipping node_modules.
func FindPackageJSON(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if d.IsDir() && d.Name() == "node_modules" {
			return filepath.SkipDir
		}
		if !d.IsDir() && d.Name() == "package.json" {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.New(apperr.NotFound, "find package.json", err).WithPath(root)
		}
		return "", apperr.New(apperr.FileSystemError, "find package.json", err).WithPath(root)
	}
	if found == "" {
		return "", apperr.Newf(apperr.NotFound, "find package.json", "no package.json in project").WithPath(root)
	}
	return found, nil
}

// FileExists reports whether p exists and is not a directory.
func FileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
