// Package files reads, lists and locates files inside project directories.
package files

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"ngmigrate/internal/apperr"
)

const binarySniffLen = 1024

// ReadFileContent reads a text file. Files larger than maxSize keep their
// head and tail around a truncation marker; maxSize <= 0 disables the cap.
func ReadFileContent(absFilepath string, maxSize int64) (string, error) {
	const op = "read file"

	fileInfo, err := os.Stat(absFilepath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.New(apperr.NotFound, op, err).WithPath(absFilepath)
		}
		return "", apperr.New(apperr.FileSystemError, op, err).WithPath(absFilepath)
	}
	if fileInfo.IsDir() {
		return "", apperr.Newf(apperr.InvalidInput, op, "path is a directory, not a file").WithPath(absFilepath)
	}

	binary, err := IsBinary(absFilepath)
	if err != nil {
		return "", apperr.New(apperr.FileUnreadable, op, err).WithPath(absFilepath)
	}
	if binary {
		return "", apperr.Newf(apperr.InvalidInput, op, "file %q appears to be binary", filepath.Base(absFilepath)).WithPath(absFilepath)
	}

	content, err := os.ReadFile(absFilepath)
	if err != nil {
		return "", apperr.New(apperr.FileUnreadable, op, err).WithPath(absFilepath)
	}

	size := int64(len(content))
	if maxSize > 0 && size > maxSize {
		logrus.Warnf("File '%s' (%d bytes) is too large. Reading partially.", filepath.Base(absFilepath), size)
		half := int(maxSize) / 2
		return fmt.Sprintf("%s\n\n[... content truncated (file too large) ...]\n\n%s", content[:half], content[len(content)-half:]), nil
	}

	logrus.Debugf("Read complete file '%s' (%d bytes).", filepath.Base(absFilepath), size)
	return string(content), nil
}

// IsBinary reports whether the first bytes of the file contain a NUL byte.
func IsBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, binarySniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
