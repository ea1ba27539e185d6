// Package diff renders unified diffs between two versions of a file.
package diff

import (
	"fmt"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// DefaultMaxBytes caps the combined input size before the diff is omitted.
const DefaultMaxBytes = 1 << 20

// Unified returns a unified diff from oldContent to newContent labelled with
// name. An empty string means the contents are equal.
func Unified(name, oldContent, newContent string, maxBytes int) string {
	if oldContent == newContent {
		return ""
	}
	if maxBytes > 0 && len(oldContent)+len(newContent) > maxBytes {
		return fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ diff omitted: content too large @@\n", name, name)
	}
	s, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldContent),
		B:        difflib.SplitLines(newContent),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return s
}
