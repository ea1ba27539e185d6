package prompts

import (
	"fmt"
	"strings"
)

// Migration targets for whole-project migrations.
const (
	TargetFlutter = "flutter"
	TargetReact   = "react"
)

type frameworkTarget struct {
	name         string
	requirements []string
	fileExample  string
	depsFile     string
}

var frameworkTargets = map[string]frameworkTarget{
	TargetFlutter: {
		name: "Dart and Flutter",
		requirements: []string{
			"Maintain the same functionality as the original Angular application",
			"Use Flutter widgets equivalent to Angular components",
			"Implement proper state management using MVVM pattern",
			"Convert TypeScript logic to Dart",
			"Adapt Angular services to Dart/Flutter patterns",
			"Convert HTML templates to Flutter widget trees",
			"Transform CSS/SCSS styling to Flutter styling approaches",
		},
		fileExample: `"fileName": "filename.dart",
      "fileType": ".dart"`,
		depsFile: "pubspec.yaml",
	},
	TargetReact: {
		name: "React",
		requirements: []string{
			"Maintain the same functionality as the original Angular application",
			"Use React functional components and hooks",
			"Replace Angular services with hooks or context providers",
			"Replace RxJS-based state with React state or a store where appropriate",
			"Convert HTML templates to JSX",
			"Keep styles as CSS modules",
		},
		fileExample: `"fileName": "Component.tsx",
      "fileType": ".tsx"`,
		depsFile: "package.json",
	},
}

// SystemFor returns the system message for a migration target.
func SystemFor(target string) string {
	if target == TargetReact {
		return ReactSystem
	}
	return FlutterSystem
}

// FrameworkMigration asks for a whole-project migration. sourceInstruction
// describes the project (inline files or a git URL).
func FrameworkMigration(target, sourceInstruction string) string {
	t, ok := frameworkTargets[target]
	if !ok {
		t = frameworkTargets[TargetFlutter]
	}

	var reqs strings.Builder
	for i, r := range t.requirements {
		fmt.Fprintf(&reqs, "%d. %s\n", i+1, r)
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are an expert Angular and %[1]s developer assisting in migrating legacy Angular code to %[1]s.
%[2]s

Analyze this Angular project and provide a new %[1]s project. Ensure the updated code follows best practices recommended in %[1]s.

Key requirements:
%[3]s
Provide a structured migration suggestion in the following JSON format:
{
  "projectStructure": "The complete project structure including directories and files for the new project",
  "fileList": [
    {
      "filePath": "relative/path/to/file",
      %[4]s,
      "content": "complete file content here"
    }
  ],
  "migrationNotes": "Important notes about the migration process and any manual steps required",
  "dependencies": "List of dependencies that need to be added to %[5]s"
}
`, t.name, sourceInstruction, reqs.String(), t.fileExample, t.depsFile))
}

// GitSource describes a project referenced by URL.
func GitSource(gitURL string) string {
	return fmt.Sprintf("I have the following Angular project %s.", gitURL)
}

// UploadedSource inlines the project structure and file contents.
func UploadedSource(structure, filesContent string) string {
	return fmt.Sprintf(`I have the following Angular project structure:
%s
Here are all the project files with their content:
%s`, structure, filesContent)
}
