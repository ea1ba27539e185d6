// Package scanner walks a project tree and matches migration rules against
// file contents.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/models"
)

// Result is the outcome of one scan.
type Result struct {
	Warnings     []models.Warning   `json:"warnings"`
	Skipped      []models.FileIssue `json:"skipped,omitempty"`
	InvalidRules []models.RuleIssue `json:"invalidRules,omitempty"`
	FilesScanned int                `json:"filesScanned"`
}

// Scanner holds the walk options. The zero value visits every file.
type Scanner struct {
	IgnoreGlobs []string
}

// New creates a scanner that prunes paths matching any of the doublestar globs.
func New(ignoreGlobs []string) *Scanner {
	return &Scanner{IgnoreGlobs: ignoreGlobs}
}

type compiledRule struct {
	rule models.MigrationRule
	re   *regexp.Regexp
	exts []string
}

type frame struct {
	dir       string
	rel       string
	entries   []os.DirEntry
	next      int
	ancestors []string
}

// Scan walks root depth-first and returns one warning per (file, rule) pair
// with at least one match. Warnings follow traversal order, then rule order.
func (s *Scanner) Scan(ctx context.Context, root string, rules models.RuleSet) (*Result, error) {
	const op = "scan"
	result := &Result{Warnings: []models.Warning{}}

	compiled := compileRules(rules, result)
	wanted := make(map[string]bool)
	for _, cr := range compiled {
		for _, ext := range cr.exts {
			wanted[ext] = true
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.New(apperr.ScanRootUnavailable, op, err).WithPath(root)
	}
	rootReal, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, apperr.New(apperr.ScanRootUnavailable, op, err).WithPath(root)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, apperr.New(apperr.ScanRootUnavailable, op, err).WithPath(root)
	}

	visited := map[string]bool{rootReal: true}
	stack := []*frame{{dir: abs, entries: entries, ancestors: []string{rootReal}}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, apperr.New(apperr.ScanAborted, op, err).WithPath(root)
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		entry := top.entries[top.next]
		top.next++

		full := filepath.Join(top.dir, entry.Name())
		rel := path.Join(top.rel, entry.Name())
		if s.ignored(rel) {
			continue
		}

		info, err := os.Stat(full)
		if err != nil {
			result.Skipped = append(result.Skipped, issue(rel, err))
			continue
		}

		if info.IsDir() {
			real, err := filepath.EvalSymlinks(full)
			if err != nil {
				result.Skipped = append(result.Skipped, issue(rel, err))
				continue
			}
			if slices.Contains(top.ancestors, real) {
				return nil, apperr.Newf(apperr.ScanAborted, op, "symlink cycle: %s resolves to %s", rel, real).WithPath(root)
			}
			if visited[real] {
				logrus.Debugf("Skipping %s, already visited as %s", rel, real)
				continue
			}
			visited[real] = true

			children, err := os.ReadDir(full)
			if err != nil {
				result.Skipped = append(result.Skipped, issue(rel, err))
				continue
			}
			ancestors := append(slices.Clip(top.ancestors), real)
			stack = append(stack, &frame{dir: full, rel: rel, entries: children, ancestors: ancestors})
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}
		ext := Ext(entry.Name())
		if !wanted[ext] {
			continue
		}
		s.scanFile(full, rel, ext, compiled, result)
	}

	logrus.WithFields(logrus.Fields{
		"root":     root,
		"files":    result.FilesScanned,
		"warnings": len(result.Warnings),
		"skipped":  len(result.Skipped),
	}).Info("Scan finished")
	return result, nil
}

func (s *Scanner) scanFile(full, rel, ext string, compiled []compiledRule, result *Result) {
	data, err := os.ReadFile(full)
	if err != nil {
		result.Skipped = append(result.Skipped, issue(rel, err))
		return
	}
	if !utf8.Valid(data) {
		result.Skipped = append(result.Skipped, issue(rel, fmt.Errorf("content is not valid UTF-8")))
		return
	}
	result.FilesScanned++

	content := string(data)
	for _, cr := range compiled {
		if !slices.Contains(cr.exts, ext) {
			continue
		}
		if cr.re.MatchString(content) {
			result.Warnings = append(result.Warnings, models.Warning{
				FilePath:    rel,
				Description: cr.rule.Title + ": " + cr.rule.Recommendation,
			})
		}
	}
}

func (s *Scanner) ignored(rel string) bool {
	for _, g := range s.IgnoreGlobs {
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// compileRules compiles each pattern once. Rules with invalid patterns are
// reported on result and left out.
func compileRules(rules models.RuleSet, result *Result) []compiledRule {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			logrus.Warnf("Skipping rule %q: %v", r.Title, err)
			result.InvalidRules = append(result.InvalidRules, models.RuleIssue{
				Title:   r.Title,
				Pattern: r.Pattern,
				Reason:  err.Error(),
			})
			continue
		}
		compiled = append(compiled, compiledRule{rule: r, re: re, exts: r.FileTypes})
	}
	return compiled
}

func issue(rel string, err error) models.FileIssue {
	logrus.Warnf("Skipping %s: %v", rel, err)
	return models.FileIssue{
		FilePath: rel,
		Reason:   apperr.New(apperr.FileUnreadable, "read", err).Error(),
	}
}

// Ext returns the extension of name including the dot. A name whose only dot
// is the leading one has no extension.
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return name[i:]
}
