package files

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ngmigrate/config"
)

// Explorer lists the project files worth sending to the model.
type Explorer struct {
	ignoreDirs   map[string]bool
	ignorePrefix []string
	includeExts  map[string]bool
	ignoreGlobs  []string
}

// NewExplorer builds an explorer from the explorer and scan settings.
func NewExplorer(cfg config.ExplorerConfig, ignoreGlobs []string) *Explorer {
	e := &Explorer{
		ignoreDirs:   make(map[string]bool),
		ignorePrefix: cfg.IgnorePrefixes,
		includeExts:  make(map[string]bool),
		ignoreGlobs:  ignoreGlobs,
	}
	for _, dir := range cfg.IgnoreDirs {
		e.ignoreDirs[dir] = true
	}
	for _, ext := range cfg.IncludeExtensions {
		e.includeExts[strings.ToLower(ext)] = true
	}
	return e
}

func (e *Explorer) skip(name, rel string) bool {
	if e.ignoreDirs[name] {
		return true
	}
	for _, prefix := range e.ignorePrefix {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, g := range e.ignoreGlobs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// CollectProjectFiles returns the slash-separated paths, relative to root, of
// every included file. Symlinked directories are not followed.
func (e *Explorer) CollectProjectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if e.skip(d.Name(), rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if e.includeExts[strings.ToLower(path.Ext(d.Name()))] {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot list directory '%s': %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// RenderTree draws an indented tree from sorted slash-separated paths.
func RenderTree(paths []string) string {
	var b strings.Builder
	var prev []string
	for _, p := range paths {
		parts := strings.Split(p, "/")
		common := 0
		for common < len(prev)-1 && common < len(parts)-1 && prev[common] == parts[common] {
			common++
		}
		for i := common; i < len(parts); i++ {
			b.WriteString(strings.Repeat("  ", i))
			b.WriteString(parts[i])
			if i < len(parts)-1 {
				b.WriteString("/")
			}
			b.WriteString("\n")
		}
		prev = parts
	}
	return b.String()
}
