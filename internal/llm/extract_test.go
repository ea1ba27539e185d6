package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "Plain array",
			input:    `[{"title":"a"}]`,
			expected: `[{"title":"a"}]`,
			ok:       true,
		},
		{
			name:     "Fenced json block",
			input:    "Here you go:\n```json\n{\"fix\": \"npm i x\"}\n```\nThanks",
			expected: `{"fix": "npm i x"}`,
			ok:       true,
		},
		{
			name:     "Prose around object",
			input:    `Sure! The answer is {"a": {"b": [1, 2]}} and that is all.`,
			expected: `{"a": {"b": [1, 2]}}`,
			ok:       true,
		},
		{
			name:     "Braces inside strings",
			input:    `result: {"pattern": "\\{\\}", "note": "a } b"}`,
			expected: `{"pattern": "\\{\\}", "note": "a } b"}`,
			ok:       true,
		},
		{
			name:     "Bracketed prose before JSON",
			input:    `[note] see below {"x": 1}`,
			expected: `{"x": 1}`,
			ok:       true,
		},
		{
			name:     "Whole reply is JSON with code inside",
			input:    "{\"codeUpdated\": \"```ts\\nconst a = {};\\n```\"}",
			expected: "{\"codeUpdated\": \"```ts\\nconst a = {};\\n```\"}",
			ok:       true,
		},
		{
			name:  "Pure prose",
			input: "I cannot help with that.",
			ok:    false,
		},
		{
			name:  "Unterminated",
			input: `{"a": [1, 2`,
			ok:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v (got %q)", ok, tc.ok, got)
			}
			if ok && got != tc.expected {
				t.Errorf("expected: %q, got: %q", tc.expected, got)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	var out struct {
		Fix         string `json:"fix"`
		Explanation string `json:"explanation"`
	}
	reply := "```json\n{\n  // the command\n  \"fix\": \"npm install lodash@latest\",\n  \"explanation\": \"patched\"\n}\n```"
	if err := Decode(reply, &out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out.Fix != "npm install lodash@latest" || out.Explanation != "patched" {
		t.Errorf("Decode() = %+v", out)
	}
}

func TestDecode_ParseError(t *testing.T) {
	var out []string
	err := Decode("no json here", &out)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Raw != "no json here" {
		t.Errorf("Raw = %q", perr.Raw)
	}

	// Shape mismatch is also a parse error.
	err = Decode(`{"a": 1}`, &out)
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError for shape mismatch, got %v", err)
	}
}

func TestExtractCodeBlock(t *testing.T) {
	reply := "Updated code:\n```typescript\nimport { HttpClient } from '@angular/common/http';\n```\nHttp was removed."
	code, rest, ok := ExtractCodeBlock(reply)
	if !ok {
		t.Fatal("expected a code block")
	}
	if code != "import { HttpClient } from '@angular/common/http';" {
		t.Errorf("code = %q", code)
	}
	if rest != "Updated code:\n\nHttp was removed." {
		t.Errorf("rest = %q", rest)
	}

	if _, _, ok := ExtractCodeBlock("nothing fenced"); ok {
		t.Error("expected no code block")
	}
}
