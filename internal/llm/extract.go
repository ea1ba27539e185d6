package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/muhammadmuzzammil1998/jsonc"
)

var errNoJSON = errors.New("no JSON value found in response")

// ParseError is returned when a model reply cannot be decoded. Raw keeps the
// untouched reply so it can be forwarded as diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %v (raw: %s)", e.Err, truncate(e.Raw, 200))
}

func (e *ParseError) Unwrap() error { return e.Err }

var fenceRegex = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n(.*?)```")

// ExtractJSON pulls the first balanced JSON object or array out of text.
// Fenced code blocks are preferred over surrounding prose. Braces inside
// string literals are ignored.
func ExtractJSON(text string) (string, bool) {
	if trimmed := strings.TrimSpace(text); json.Valid([]byte(trimmed)) && isContainer(trimmed) {
		return trimmed, true
	}
	for _, m := range fenceRegex.FindAllStringSubmatch(text, -1) {
		if candidate, ok := firstBalanced(m[1]); ok {
			return candidate, true
		}
	}
	return firstBalanced(text)
}

// firstBalanced tries every '{' or '[' in order and returns the first span
// that closes and decodes.
func firstBalanced(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		end := matchingEnd(s, start)
		if end < 0 {
			continue
		}
		candidate := s[start:end]
		if json.Valid([]byte(candidate)) || json.Valid(jsonc.ToJSON([]byte(candidate))) {
			return candidate, true
		}
	}
	return "", false
}

func isContainer(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// matchingEnd returns the index just past the bracket closing s[start], or -1.
func matchingEnd(s string, start int) int {
	var stack []byte
	inString := false
	escape := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// Decode extracts the JSON value embedded in a model reply and unmarshals it
// into dest. Comments and trailing commas are tolerated.
func Decode(text string, dest any) error {
	candidate, ok := ExtractJSON(text)
	if !ok {
		return &ParseError{Raw: text, Err: errNoJSON}
	}
	if err := json.Unmarshal([]byte(candidate), dest); err == nil {
		return nil
	}
	if err := json.Unmarshal(jsonc.ToJSON([]byte(candidate)), dest); err != nil {
		return &ParseError{Raw: text, Err: err}
	}
	return nil
}

// ExtractCodeBlock returns the body of the first fenced code block and the
// text around it.
func ExtractCodeBlock(text string) (code, rest string, ok bool) {
	loc := fenceRegex.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", strings.TrimSpace(text), false
	}
	code = strings.TrimSpace(text[loc[2]:loc[3]])
	rest = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	return code, rest, true
}
