// Package prompts holds the request templates sent to the language model.
package prompts

import (
	"fmt"
	"strings"
)

// System messages, one per call site.
const (
	RulesSystem     = "You are an expert in Angular migrations. Respond only with JSON."
	MigrationSystem = "You are a senior Angular migration expert."
	AuditSystem     = "You are a Node.js security expert."
	FlutterSystem   = "You are a senior Angular to Flutter migration expert."
	ReactSystem     = "You are a senior Angular to React migration expert."
	ComponentSystem = "You are a senior developer skilled in Angular and React."
)

// MigrationRules asks for the breaking changes between two Angular versions
// as a JSON array of searchable rules.
func MigrationRules(fromVersion, toVersion int) string {
	return fmt.Sprintf(`
Provide a list of **breaking changes**, **deprecations**, and **API changes** when migrating from Angular %d to Angular %d.

Format the response as a JSON array with this schema:
[
  {
    "title": "Description of the change",
    "reason": "Why the change happened",
    "fileTypes": [".ts", ".html"],
    "pattern": "String to look for or regex",
    "recommendation": "What should be done instead"
  }
]
Only include concrete patterns that can be searched programmatically.
Patterns must be valid RE2 regular expressions (no lookahead or backreferences).
`, fromVersion, toVersion)
}

// FileMigration asks for a rewrite of one flagged file.
func FileMigration(fileName, code, warning string, targetVersion int) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are an expert Angular developer assisting in migrating legacy Angular code to Angular %[1]d.

I have the following file named: %[2]s

`+"```ts\n%[3]s\n```"+`

During static analysis, we identified this issue:

%[4]s

Please provide a structured migration suggestion in the following JSON format:

{
  "codeUpdated": "The updated Angular %[1]d-compliant code.",
  "explanation": "A clear and concise explanation of the changes made and why they are necessary.",
  "suggestedPrompt": "A long, helpful follow-up prompt the user can use to refine or adjust the migration."
}

Ensure the updated code follows best practices recommended in Angular %[1]d, including module imports, HttpClient usage, RxJS operators, and strict typing where applicable. Do not include Markdown formatting or extra explanation outside the JSON.
`, targetVersion, fileName, code, warning))
}

// AuditFix asks for a remediation of a vulnerable npm dependency.
func AuditFix(dependency, advisory string) string {
	return strings.TrimSpace(fmt.Sprintf(`
I have a project with a vulnerable dependency: **%[1]s**.

Security Advisory:
%[2]s

Please provide a solution in the following JSON format:

{
  "fix": "exact npm command to fix the vulnerability (e.g., npm install %[1]s@latest or npm uninstall %[1]s)",
  "explanation": "Explain why this fix resolves the issue and any impact it may have"
}

Respond with only valid JSON, no extra text.
`, dependency, advisory))
}

// AngularToReact asks for the conversion of a single component.
func AngularToReact(componentTS, templateHTML, styles, serviceCode string) string {
	var b strings.Builder
	b.WriteString("I need you to help me convert an Angular component to React.\n\n")
	b.WriteString("Here is the Angular component TypeScript logic:\n```ts\n" + componentTS + "\n```\n\n")
	b.WriteString("Here is the Angular template (HTML):\n```html\n" + templateHTML + "\n```\n\n")
	b.WriteString("Here are the component styles:\n```css\n" + styles + "\n```\n\n")
	if serviceCode != "" {
		b.WriteString("This component uses a service:\n```ts\n" + serviceCode + "\n```\n\n")
	}
	b.WriteString(`Please convert this component to a React functional component using React hooks and best practices. The final result should include:
- A '.tsx' file with component logic and JSX
- A suggestion for how to organize the styles (CSS module or styled-components)
- Any changes in state management or services as needed

Return the result in this JSON format:
{
  "reactComponent": "The .tsx file code",
  "explanation": "Explanation of the changes and how it maps from Angular to React"
}`)
	return b.String()
}
