// Package backup applies rewritten content to project files, keeping a
// single ".bak" copy of the previous content next to each file.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
	"ngmigrate/internal/diff"
	"ngmigrate/internal/models"
)

// Suffix is appended to a file path to name its backup.
const Suffix = ".bak"

// Applier serializes writes per file path.
type Applier struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewApplier() *Applier {
	return &Applier{locks: make(map[string]*sync.Mutex)}
}

func (a *Applier) lock(path string) func() {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	a.mu.Lock()
	l, ok := a.locks[path]
	if !ok {
		l = &sync.Mutex{}
		a.locks[path] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Apply copies the current content of path to path+".bak" and replaces it
// with newContent. When the file already holds newContent nothing is written
// and any existing backup is left alone.
func (a *Applier) Apply(path, newContent string) (models.BackupRecord, error) {
	const op = "apply suggestion"
	record := models.BackupRecord{FilePath: path}

	unlock := a.lock(path)
	defer unlock()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return record, apperr.New(apperr.NotFound, op, err).WithPath(path)
		}
		return record, apperr.New(apperr.FileSystemError, op, err).WithPath(path)
	}
	if !info.Mode().IsRegular() {
		return record, apperr.Newf(apperr.NotFound, op, "not a regular file").WithPath(path)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		return record, apperr.New(apperr.FileSystemError, op, err).WithPath(path)
	}

	backupPath := path + Suffix
	if bytes.Equal(current, []byte(newContent)) {
		record.Unchanged = true
		if _, err := os.Stat(backupPath); err == nil {
			record.BackupPath = backupPath
		}
		logrus.Debugf("Content of %s unchanged, nothing written", path)
		return record, nil
	}

	if err := writeAtomic(backupPath, current, info.Mode().Perm()); err != nil {
		return record, apperr.New(apperr.FileSystemError, op, err).WithPath(backupPath)
	}
	if err := writeAtomic(path, []byte(newContent), info.Mode().Perm()); err != nil {
		return record, apperr.New(apperr.FileSystemError, op, err).WithPath(path)
	}

	record.BackupPath = backupPath
	record.Diff = diff.Unified(filepath.Base(path), string(current), newContent, diff.DefaultMaxBytes)
	logrus.Infof("Applied suggestion to %s (backup %s)", path, backupPath)
	return record, nil
}

// Restore copies a backup over the file it was taken from and returns that
// file's path. The backup is kept.
func (a *Applier) Restore(backupPath string) (string, error) {
	const op = "restore backup"

	if !strings.HasSuffix(backupPath, Suffix) || len(backupPath) == len(Suffix) {
		return "", apperr.Newf(apperr.InvalidBackupPath, op, "path must end with %s", Suffix).WithPath(backupPath)
	}
	original := strings.TrimSuffix(backupPath, Suffix)

	unlock := a.lock(original)
	defer unlock()

	info, err := os.Stat(backupPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.New(apperr.NotFound, op, err).WithPath(backupPath)
		}
		return "", apperr.New(apperr.FileSystemError, op, err).WithPath(backupPath)
	}
	if !info.Mode().IsRegular() {
		return "", apperr.Newf(apperr.NotFound, op, "not a regular file").WithPath(backupPath)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return "", apperr.New(apperr.FileSystemError, op, err).WithPath(backupPath)
	}

	mode := info.Mode().Perm()
	if orig, err := os.Stat(original); err == nil {
		mode = orig.Mode().Perm()
	}
	if err := writeAtomic(original, data, mode); err != nil {
		return "", apperr.New(apperr.FileSystemError, op, err).WithPath(original)
	}

	logrus.Infof("Restored %s from %s", original, backupPath)
	return original, nil
}

// ListBackups returns the absolute paths of all backups under root, sorted.
func ListBackups(root string) ([]string, error) {
	const op = "list backups"

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, apperr.New(apperr.FileSystemError, op, err).WithPath(root)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.NotFound, op, err).WithPath(root)
		}
		return nil, apperr.New(apperr.FileSystemError, op, err).WithPath(root)
	}

	backups := []string{}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) && d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), Suffix) {
			backups = append(backups, p)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.New(apperr.FileSystemError, op, err).WithPath(root)
	}
	sort.Strings(backups)
	return backups, nil
}

// writeAtomic writes data to a temp sibling of path and renames it into place.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
